// Package admin provides the mutation side of the scheduler: CRUD over
// jobs and schedules, run-now, run-record queries, retention cleanup and
// statistics. Every successful mutation bumps the shared change marker (via
// storage) so a running scheduler picks the edit up on its next check.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/miaokela/dbeat/pkg/core"
	"github.com/miaokela/dbeat/pkg/validate"
)

// Service wraps storage with boundary validation. It is safe to use from a
// different goroutine or process than the scheduler; coordination happens
// entirely through the store and the change marker.
type Service struct {
	store      core.Storage
	dispatcher core.Dispatcher
	logger     *slog.Logger
}

// NewService creates an admin service. The dispatcher is used only by
// RunNow and may be nil if immediate dispatch is not needed.
func NewService(store core.Storage, dispatcher core.Dispatcher) *Service {
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		logger:     slog.Default(),
	}
}

// SetLogger overrides the default slog logger.
func (s *Service) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Schedules
// ──────────────────────────────────────────────────────────────────────────────

// CreateInterval validates and stores an interval schedule. Duplicate
// (every, period) pairs return the existing row.
func (s *Service) CreateInterval(ctx context.Context, every int, period core.Period) (*core.IntervalSchedule, error) {
	if err := validate.Interval(every, period); err != nil {
		return nil, err
	}
	return s.store.CreateInterval(ctx, every, period)
}

// DeleteInterval removes an interval schedule.
func (s *Service) DeleteInterval(ctx context.Context, id uint) error {
	return s.store.DeleteInterval(ctx, id)
}

// ListIntervals returns all interval schedules.
func (s *Service) ListIntervals(ctx context.Context) ([]*core.IntervalSchedule, error) {
	return s.store.ListIntervals(ctx)
}

// CreateCrontab validates and stores a crontab schedule.
func (s *Service) CreateCrontab(ctx context.Context, crontab *core.CrontabSchedule) (*core.CrontabSchedule, error) {
	if err := validate.Crontab(crontab); err != nil {
		return nil, err
	}
	if err := s.store.CreateCrontab(ctx, crontab); err != nil {
		return nil, err
	}
	return crontab, nil
}

// DeleteCrontab removes a crontab schedule.
func (s *Service) DeleteCrontab(ctx context.Context, id uint) error {
	return s.store.DeleteCrontab(ctx, id)
}

// ListCrontabs returns all crontab schedules.
func (s *Service) ListCrontabs(ctx context.Context) ([]*core.CrontabSchedule, error) {
	return s.store.ListCrontabs(ctx)
}

// ──────────────────────────────────────────────────────────────────────────────
// Jobs
// ──────────────────────────────────────────────────────────────────────────────

// CreateJobParams describes a new periodic job. Exactly one of IntervalID
// and CrontabID must be set.
type CreateJobParams struct {
	Name       string
	Task       string
	IntervalID *uint
	CrontabID  *uint
	Args       []any
	Kwargs     map[string]any
	Queue      string
	Priority   *int
	Expires    *time.Time
	OneOff     bool
	StartTime  *time.Time
	Enabled    bool

	Description string
}

// CreateJob validates and stores a job definition.
func (s *Service) CreateJob(ctx context.Context, params CreateJobParams) (*core.PeriodicJob, error) {
	if err := validate.JobName(params.Name); err != nil {
		return nil, err
	}
	if err := validate.TaskPath(params.Task); err != nil {
		return nil, err
	}
	if err := validate.QueueName(params.Queue); err != nil {
		return nil, err
	}
	if err := validate.Priority(params.Priority); err != nil {
		return nil, err
	}
	switch {
	case params.IntervalID == nil && params.CrontabID == nil:
		return nil, core.ErrNoSchedule
	case params.IntervalID != nil && params.CrontabID != nil:
		return nil, core.ErrBothSchedules
	}

	args, err := json.Marshal(orEmptyArgs(params.Args))
	if err != nil {
		return nil, fmt.Errorf("dbeat: marshal args: %w", err)
	}
	kwargs, err := json.Marshal(orEmptyKwargs(params.Kwargs))
	if err != nil {
		return nil, fmt.Errorf("dbeat: marshal kwargs: %w", err)
	}

	job := &core.PeriodicJob{
		Name:        params.Name,
		Task:        params.Task,
		IntervalID:  params.IntervalID,
		CrontabID:   params.CrontabID,
		Args:        string(args),
		Kwargs:      string(kwargs),
		Queue:       params.Queue,
		Priority:    params.Priority,
		Expires:     params.Expires,
		OneOff:      params.OneOff,
		StartTime:   params.StartTime,
		Enabled:     params.Enabled,
		Description: params.Description,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info("job created", "job", job.Name, "task", job.Task)
	return job, nil
}

// jobUpdateFields is the allowlist of columns UpdateJob may touch. The run
// statistics are owned by the scheduler and deliberately absent.
var jobUpdateFields = map[string]struct{}{
	"name": {}, "task": {}, "interval_id": {}, "crontab_id": {},
	"args": {}, "kwargs": {}, "queue": {}, "priority": {},
	"expires": {}, "one_off": {}, "start_time": {}, "enabled": {},
	"description": {},
}

// UpdateJob applies a partial update. Changing the schedule reference resets
// the job's last run so the new schedule takes effect immediately.
func (s *Service) UpdateJob(ctx context.Context, id uint, fields map[string]any) (*core.PeriodicJob, error) {
	for key, value := range fields {
		if _, ok := jobUpdateFields[key]; !ok {
			return nil, fmt.Errorf("%w: %q", core.ErrUnknownJobField, key)
		}
		switch key {
		case "name":
			if name, ok := value.(string); ok {
				if err := validate.JobName(name); err != nil {
					return nil, err
				}
			}
		case "task":
			if task, ok := value.(string); ok {
				if err := validate.TaskPath(task); err != nil {
					return nil, err
				}
			}
		case "queue":
			if queue, ok := value.(string); ok {
				if err := validate.QueueName(queue); err != nil {
					return nil, err
				}
			}
		case "priority":
			if err := validate.Priority(asPriority(value)); err != nil {
				return nil, err
			}
		}
	}
	return s.store.UpdateJob(ctx, id, fields)
}

// DeleteJob removes a job definition.
func (s *Service) DeleteJob(ctx context.Context, id uint) error {
	return s.store.DeleteJob(ctx, id)
}

// GetJob retrieves a job by ID, nil if absent.
func (s *Service) GetJob(ctx context.Context, id uint) (*core.PeriodicJob, error) {
	return s.store.GetJob(ctx, id)
}

// GetJobByName retrieves a job by name, nil if absent.
func (s *Service) GetJobByName(ctx context.Context, name string) (*core.PeriodicJob, error) {
	return s.store.GetJobByName(ctx, name)
}

// ListJobs returns jobs, optionally filtered by enabled state.
func (s *Service) ListJobs(ctx context.Context, enabled *bool, limit, offset int) ([]*core.PeriodicJob, error) {
	return s.store.ListJobs(ctx, enabled, limit, offset)
}

// EnableJob turns a job on.
func (s *Service) EnableJob(ctx context.Context, id uint) error {
	_, err := s.store.UpdateJob(ctx, id, map[string]any{"enabled": true})
	return err
}

// DisableJob turns a job off without deleting it.
func (s *Service) DisableJob(ctx context.Context, id uint) error {
	_, err := s.store.UpdateJob(ctx, id, map[string]any{"enabled": false})
	return err
}

// RunNow submits a job immediately, bypassing its schedule. The job's run
// statistics are not advanced; only the regular loop does that.
func (s *Service) RunNow(ctx context.Context, id uint) (string, error) {
	if s.dispatcher == nil {
		return "", fmt.Errorf("dbeat: no dispatcher configured")
	}

	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return "", err
	}
	if job == nil {
		return "", core.ErrJobNotFound
	}

	runID, err := s.dispatcher.Submit(ctx, job.Task, job.DecodeArgs(), job.DecodeKwargs(), job.SubmitOptions())
	if err != nil {
		return "", err
	}
	s.logger.Info("job dispatched manually", "job", job.Name, "run_id", runID)
	return runID, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Run records
// ──────────────────────────────────────────────────────────────────────────────

// GetRun retrieves a run record, nil if absent.
func (s *Service) GetRun(ctx context.Context, runID string) (*core.JobRun, error) {
	return s.store.GetRun(ctx, runID)
}

// ListRuns returns run records, newest first.
func (s *Service) ListRuns(ctx context.Context, taskName string, status core.RunStatus, limit, offset int) ([]*core.JobRun, error) {
	return s.store.ListRuns(ctx, taskName, status, limit, offset)
}

// CleanupOldRuns deletes run records older than the retention window and
// returns the number removed.
func (s *Service) CleanupOldRuns(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	purged, err := s.store.PurgeRunsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		s.logger.Info("purged old run records", "count", purged)
	}
	return purged, nil
}

// Statistics summarizes jobs and run history.
func (s *Service) Statistics(ctx context.Context) (*core.Statistics, error) {
	return s.store.Statistics(ctx)
}

// asPriority normalizes the shapes a priority value arrives in (plain int,
// *int, or float64 from decoded JSON) so the range check cannot be bypassed.
func asPriority(value any) *int {
	switch p := value.(type) {
	case int:
		return &p
	case *int:
		return p
	case float64:
		n := int(p)
		return &n
	}
	return nil
}

func orEmptyArgs(args []any) []any {
	if args == nil {
		return []any{}
	}
	return args
}

func orEmptyKwargs(kwargs map[string]any) map[string]any {
	if kwargs == nil {
		return map[string]any{}
	}
	return kwargs
}
