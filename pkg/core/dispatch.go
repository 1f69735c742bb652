package core

import (
	"context"
	"time"
)

// SubmitOptions carries routing options derived from a job's queue,
// priority and expiry fields.
type SubmitOptions struct {
	Queue    string
	Priority *int
	Expires  *time.Time
}

// Dispatcher submits a job invocation to the external queue. Submission is
// fire-and-forget: the scheduler never waits for execution, and a returned
// error does not undo the job's advance (at-most-once attempt semantics).
type Dispatcher interface {
	Submit(ctx context.Context, target string, args []any, kwargs map[string]any, opts SubmitOptions) (runID string, err error)
}
