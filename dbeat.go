// Package dbeat is a database-backed periodic job scheduler.
//
// Job definitions are rows in a database, editable at runtime through the
// admin service; a long-running scheduler polls the store, decides what is
// due, and dispatches to a queue adapter. Edits made elsewhere are noticed
// through a shared change-marker row, so the scheduler and the admin side
// never share memory or locks.
//
// This is the main package users should import. It re-exports the public
// types from the pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	// Create storage and scheduler
//	db, _ := gorm.Open(sqlite.Open("beat.db"), &gorm.Config{})
//	store := dbeat.NewGormStorage(db)
//	store.Migrate(context.Background())
//
//	// Define a job: every 10 seconds
//	adm := dbeat.NewAdmin(store, nil)
//	interval, _ := adm.CreateInterval(ctx, 10, dbeat.PeriodSeconds)
//	adm.CreateJob(ctx, dbeat.CreateJobParams{
//	    Name:       "ping",
//	    Task:       "tasks.ping",
//	    IntervalID: &interval.ID,
//	    Enabled:    true,
//	})
//
//	// Run the loop until cancelled
//	sched := dbeat.New(store, dbeat.NewRunLogDispatcher(store))
//	sched.Start(ctx)
package dbeat

import (
	"time"

	"gorm.io/gorm"

	"github.com/miaokela/dbeat/pkg/admin"
	"github.com/miaokela/dbeat/pkg/core"
	"github.com/miaokela/dbeat/pkg/dispatch"
	"github.com/miaokela/dbeat/pkg/entry"
	"github.com/miaokela/dbeat/pkg/schedule"
	"github.com/miaokela/dbeat/pkg/scheduler"
	"github.com/miaokela/dbeat/pkg/storage"
)

// Type aliases for the public API
type (
	// IntervalSchedule runs a job every N units of time.
	IntervalSchedule = core.IntervalSchedule

	// CrontabSchedule runs a job on a cron pattern in a named timezone.
	CrontabSchedule = core.CrontabSchedule

	// PeriodicJob is a persisted description of a recurring task.
	PeriodicJob = core.PeriodicJob

	// JobRun records one invocation attempt.
	JobRun = core.JobRun

	// RunStatus is the lifecycle state of a single invocation.
	RunStatus = core.RunStatus

	// Period is the time unit of an IntervalSchedule.
	Period = core.Period

	// Statistics summarizes the job table and run history.
	Statistics = core.Statistics

	// Storage defines the persistence contract.
	Storage = core.Storage

	// Dispatcher submits job invocations to the external queue.
	Dispatcher = core.Dispatcher

	// SubmitOptions carries queue, priority and expiry routing options.
	SubmitOptions = core.SubmitOptions

	// Schedule decides whether a job is due given its last fire time.
	Schedule = schedule.Schedule

	// State is the result of a due-ness check.
	State = schedule.State

	// Entry combines a job definition with its resolved schedule and
	// policy gates.
	Entry = entry.Entry

	// Scheduler is the polling control loop.
	Scheduler = scheduler.Scheduler

	// Option configures a Scheduler.
	Option = scheduler.Option

	// GormStorage implements Storage using GORM.
	GormStorage = storage.GormStorage

	// PoolOption configures database connection pooling.
	PoolOption = storage.PoolOption

	// Admin is the mutation-side service: CRUD, run-now, retention.
	Admin = admin.Service

	// CreateJobParams describes a new periodic job.
	CreateJobParams = admin.CreateJobParams

	// RunLogDispatcher records submissions as pending run rows.
	RunLogDispatcher = dispatch.RunLogDispatcher
)

// Interval period constants
const (
	PeriodDays         = core.PeriodDays
	PeriodHours        = core.PeriodHours
	PeriodMinutes      = core.PeriodMinutes
	PeriodSeconds      = core.PeriodSeconds
	PeriodMicroseconds = core.PeriodMicroseconds
)

// Run status constants
const (
	RunPending = core.RunPending
	RunStarted = core.RunStarted
	RunSuccess = core.RunSuccess
	RunFailure = core.RunFailure
	RunRetry   = core.RunRetry
	RunRevoked = core.RunRevoked
)

// Error variables
var (
	ErrNoSchedule       = core.ErrNoSchedule
	ErrBothSchedules    = core.ErrBothSchedules
	ErrJobNotFound      = core.ErrJobNotFound
	ErrDuplicateJobName = core.ErrDuplicateJobName
	ErrInvalidTimezone  = core.ErrInvalidTimezone
	ErrInvalidCrontab   = core.ErrInvalidCrontab
)

// New creates a scheduler over the given store and dispatcher.
func New(store Storage, dispatcher Dispatcher, opts ...Option) *Scheduler {
	return scheduler.New(store, dispatcher, opts...)
}

// NewGormStorage creates a new GORM-backed storage.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return storage.NewGormStorage(db)
}

// NewGormStorageWithPool creates a GORM-backed storage with connection
// pooling configured.
func NewGormStorageWithPool(db *gorm.DB, opts ...PoolOption) (*GormStorage, error) {
	return storage.NewGormStorageWithPool(db, opts...)
}

// NewAdmin creates the mutation-side service. The dispatcher is only needed
// for RunNow and may be nil.
func NewAdmin(store Storage, dispatcher Dispatcher) *Admin {
	return admin.NewService(store, dispatcher)
}

// NewRunLogDispatcher creates a dispatcher that records each submission as
// a pending run row in store.
func NewRunLogDispatcher(store Storage) *RunLogDispatcher {
	return dispatch.NewRunLogDispatcher(store)
}

// Every creates a fixed-interval schedule.
func Every(d time.Duration) Schedule {
	return schedule.Every(d)
}

// Crontab creates a schedule from the five cron fields and an IANA timezone.
func Crontab(minute, hour, dayOfMonth, monthOfYear, dayOfWeek, timezone string) (Schedule, error) {
	return schedule.Crontab(minute, hour, dayOfMonth, monthOfYear, dayOfWeek, timezone)
}

// Scheduler option functions

// MaxInterval caps the sleep between scheduler ticks.
func MaxInterval(d time.Duration) Option {
	return scheduler.MaxInterval(d)
}

// SyncEvery sets the cadence of statistics flushes.
func SyncEvery(d time.Duration) Option {
	return scheduler.SyncEvery(d)
}
