package dbeat_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	dbeat "github.com/miaokela/dbeat"
)

func newFacadeStore(t *testing.T) *dbeat.GormStorage {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	store := dbeat.NewGormStorage(db)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

// End-to-end through the facade: define a job through the admin service,
// run the loop briefly, and observe the run record and persisted stats.
func TestDefineAndRunJob(t *testing.T) {
	store := newFacadeStore(t)
	ctx := context.Background()

	adm := dbeat.NewAdmin(store, nil)
	interval, err := adm.CreateInterval(ctx, 30, dbeat.PeriodSeconds)
	require.NoError(t, err)

	_, err = adm.CreateJob(ctx, dbeat.CreateJobParams{
		Name:       "heartbeat",
		Task:       "tasks.system.heartbeat",
		IntervalID: &interval.ID,
		Enabled:    true,
	})
	require.NoError(t, err)

	sched := dbeat.New(store, dbeat.NewRunLogDispatcher(store),
		dbeat.MaxInterval(50*time.Millisecond),
		dbeat.SyncEvery(10*time.Millisecond))

	runCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	err = sched.Start(runCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	runs, err := adm.ListRuns(ctx, "tasks.system.heartbeat", "", 0, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1, "a 30s job fires once in a short window")
	assert.Equal(t, dbeat.RunPending, runs[0].Status)

	job, err := adm.GetJobByName(ctx, "heartbeat")
	require.NoError(t, err)
	assert.Equal(t, 1, job.TotalRunCount)
	require.NotNil(t, job.LastRunAt)
}

func TestEditWhileRunning(t *testing.T) {
	store := newFacadeStore(t)
	ctx := context.Background()

	adm := dbeat.NewAdmin(store, nil)
	interval, err := adm.CreateInterval(ctx, 1, dbeat.PeriodHours)
	require.NoError(t, err)

	job, err := adm.CreateJob(ctx, dbeat.CreateJobParams{
		Name:       "report",
		Task:       "tasks.report",
		IntervalID: &interval.ID,
		Enabled:    true,
	})
	require.NoError(t, err)

	sched := dbeat.New(store, dbeat.NewRunLogDispatcher(store))
	sched.Tick(ctx)
	require.Equal(t, 1, sched.Len())

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, adm.DisableJob(ctx, job.ID))

	sched.Tick(ctx)
	assert.Equal(t, 0, sched.Len(), "the disable is picked up without a restart")
}

func TestScheduleHelpers(t *testing.T) {
	now := time.Date(2026, 2, 8, 9, 0, 0, 0, time.UTC)

	every := dbeat.Every(time.Minute)
	assert.True(t, every.IsDue(now.Add(-2*time.Minute), now).Due)

	cron, err := dbeat.Crontab("0", "9", "*", "*", "*", "UTC")
	require.NoError(t, err)
	assert.True(t, cron.IsDue(now.Add(-24*time.Hour), now).Due)

	_, err = dbeat.Crontab("99", "*", "*", "*", "*", "UTC")
	assert.ErrorIs(t, err, dbeat.ErrInvalidCrontab)
}
