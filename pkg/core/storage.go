package core

import (
	"context"
	"time"
)

// Storage defines the persistence layer for periodic jobs, schedules, the
// change marker and run records. Mutating methods are required to bump the
// change marker as their last side effect; the scheduler relies on that to
// detect external edits.
type Storage interface {
	// Migrate creates the necessary database tables.
	Migrate(ctx context.Context) error

	// Scheduler-facing surface
	LoadEnabledJobs(ctx context.Context) ([]*PeriodicJob, error)
	SaveRunStats(ctx context.Context, name string, lastRunAt time.Time, totalRunCount int) error
	ChangeMarker(ctx context.Context) (time.Time, error)
	BumpChangeMarker(ctx context.Context) error

	// Interval schedules
	CreateInterval(ctx context.Context, every int, period Period) (*IntervalSchedule, error)
	GetInterval(ctx context.Context, id uint) (*IntervalSchedule, error)
	ListIntervals(ctx context.Context) ([]*IntervalSchedule, error)
	DeleteInterval(ctx context.Context, id uint) error

	// Crontab schedules
	CreateCrontab(ctx context.Context, crontab *CrontabSchedule) error
	GetCrontab(ctx context.Context, id uint) (*CrontabSchedule, error)
	ListCrontabs(ctx context.Context) ([]*CrontabSchedule, error)
	DeleteCrontab(ctx context.Context, id uint) error

	// Periodic jobs
	CreateJob(ctx context.Context, job *PeriodicJob) error
	GetJob(ctx context.Context, id uint) (*PeriodicJob, error)
	GetJobByName(ctx context.Context, name string) (*PeriodicJob, error)
	ListJobs(ctx context.Context, enabled *bool, limit, offset int) ([]*PeriodicJob, error)
	UpdateJob(ctx context.Context, id uint, fields map[string]any) (*PeriodicJob, error)
	DeleteJob(ctx context.Context, id uint) error

	// Run records
	RecordRun(ctx context.Context, run *JobRun) error
	UpdateRunStatus(ctx context.Context, runID string, status RunStatus, result, traceback, worker string) error
	GetRun(ctx context.Context, runID string) (*JobRun, error)
	ListRuns(ctx context.Context, taskName string, status RunStatus, limit, offset int) ([]*JobRun, error)
	PurgeRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Statistics
	Statistics(ctx context.Context) (*Statistics, error)
}
