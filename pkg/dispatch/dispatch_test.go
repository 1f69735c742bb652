package dispatch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/miaokela/dbeat/pkg/core"
	"github.com/miaokela/dbeat/pkg/dispatch"
	"github.com/miaokela/dbeat/pkg/storage"
)

func newTestStore(t *testing.T) *storage.GormStorage {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	s := storage.NewGormStorage(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSubmit_RecordsPendingRun(t *testing.T) {
	store := newTestStore(t)
	d := dispatch.NewRunLogDispatcher(store)
	ctx := context.Background()

	runID, err := d.Submit(ctx, "tasks.email.send",
		[]any{"user@example.com"},
		map[string]any{"template": "welcome"},
		core.SubmitOptions{Queue: "email"})
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	run, err := store.GetRun(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "tasks.email.send", run.TaskName)
	assert.Equal(t, "email", run.Queue)
	assert.Equal(t, core.RunPending, run.Status)
	assert.JSONEq(t, `["user@example.com"]`, run.Args)
	assert.JSONEq(t, `{"template":"welcome"}`, run.Kwargs)
	assert.Nil(t, run.DoneAt)
}

func TestSubmit_UniqueRunIDs(t *testing.T) {
	store := newTestStore(t)
	d := dispatch.NewRunLogDispatcher(store)
	ctx := context.Background()

	first, err := d.Submit(ctx, "tasks.noop", nil, nil, core.SubmitOptions{})
	require.NoError(t, err)
	second, err := d.Submit(ctx, "tasks.noop", nil, nil, core.SubmitOptions{})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestSubmit_NilArgumentsMarshalToEmpty(t *testing.T) {
	store := newTestStore(t)
	d := dispatch.NewRunLogDispatcher(store)
	ctx := context.Background()

	runID, err := d.Submit(ctx, "tasks.noop", nil, nil, core.SubmitOptions{})
	require.NoError(t, err)

	run, err := store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, "[]", run.Args)
	assert.Equal(t, "{}", run.Kwargs)
}
