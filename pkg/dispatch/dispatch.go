// Package dispatch provides Dispatcher implementations. The scheduler only
// depends on the core.Dispatcher interface; real broker integrations live
// outside this module.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/miaokela/dbeat/pkg/core"
)

// RunLogDispatcher records each submission as a pending run row in storage.
// Execution-side hooks transition the row through STARTED and into a
// terminal state; this dispatcher only creates it.
type RunLogDispatcher struct {
	store core.Storage
}

// NewRunLogDispatcher creates a dispatcher that logs submissions to store.
func NewRunLogDispatcher(store core.Storage) *RunLogDispatcher {
	return &RunLogDispatcher{store: store}
}

// Submit records the invocation and returns its run ID.
func (d *RunLogDispatcher) Submit(ctx context.Context, target string, args []any, kwargs map[string]any, opts core.SubmitOptions) (string, error) {
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("dbeat: marshal args: %w", err)
	}
	kwargsJSON, err := json.Marshal(kwargs)
	if err != nil {
		return "", fmt.Errorf("dbeat: marshal kwargs: %w", err)
	}

	run := &core.JobRun{
		RunID:    uuid.New().String(),
		TaskName: target,
		Args:     string(argsJSON),
		Kwargs:   string(kwargsJSON),
		Queue:    opts.Queue,
		Status:   core.RunPending,
	}
	if err := d.store.RecordRun(ctx, run); err != nil {
		return "", fmt.Errorf("dbeat: record run: %w", err)
	}
	return run.RunID, nil
}
