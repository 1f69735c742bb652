// Package entry provides the runtime wrapper around one persisted job: the
// policy gates (enabled, start time, expiry, one-off) layered over its
// resolved schedule, and the pure post-fire successor transition.
package entry

import (
	"time"

	"github.com/miaokela/dbeat/pkg/core"
	"github.com/miaokela/dbeat/pkg/schedule"
)

const (
	// disabledRecheck is how soon a disabled or unresolvable entry is
	// looked at again.
	disabledRecheck = 5 * time.Second

	// dormantRecheck is how soon an expired or spent one-off entry is
	// looked at again. Such entries are never auto-deleted here.
	dormantRecheck = 24 * time.Hour

	// crontabLookback stands in for a missing last run on crontab jobs, so
	// a freshly created job is raw-due immediately rather than waiting out
	// a full logical period.
	crontabLookback = 24 * time.Hour
)

// Entry combines a PeriodicJob with its resolved schedule. Entries are
// immutable: Advance returns a successor instead of mutating in place, so
// concurrent due-checks within a tick see a consistent view.
type Entry struct {
	job      core.PeriodicJob
	sched    schedule.Schedule
	schedErr error

	lastRunAt     time.Time
	totalRunCount int

	clock func() time.Time
}

// Option configures an Entry.
type Option func(*Entry)

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Entry) { e.clock = clock }
}

// New builds an Entry from a loaded job definition. Jobs referencing neither
// or both schedule types are rejected; callers should skip them with a log.
// An unparseable crontab pattern or timezone does not error: the entry is
// built but fails closed, reporting never-due until the definition is fixed.
func New(job *core.PeriodicJob, opts ...Option) (*Entry, error) {
	e := &Entry{
		job:           *job,
		totalRunCount: job.TotalRunCount,
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	switch {
	case job.IntervalID == nil && job.CrontabID == nil:
		return nil, core.ErrNoSchedule
	case job.IntervalID != nil && job.CrontabID != nil:
		return nil, core.ErrBothSchedules
	case job.IntervalID != nil:
		if job.Interval == nil {
			return nil, core.ErrScheduleNotFound
		}
		e.sched = schedule.Every(job.Interval.Duration())
	default:
		if job.Crontab == nil {
			return nil, core.ErrScheduleNotFound
		}
		e.sched, e.schedErr = schedule.FromCrontab(job.Crontab)
	}

	if job.LastRunAt != nil {
		e.lastRunAt = *job.LastRunAt
	} else {
		// A never-fired job is treated as having fired one full period
		// ago, making it eligible immediately (subject to the gates).
		lookback := crontabLookback
		if job.Interval != nil {
			lookback = job.Interval.Duration()
		}
		e.lastRunAt = e.clock().Add(-lookback)
	}

	return e, nil
}

// Name returns the unique job name.
func (e *Entry) Name() string { return e.job.Name }

// Target returns the task identifier submitted to the queue.
func (e *Entry) Target() string { return e.job.Task }

// MatchesTarget reports whether this entry invokes the named task.
func (e *Entry) MatchesTarget(name string) bool { return e.job.Task == name }

// LastRunAt returns the in-memory last fire time, which may be ahead of the
// persisted value until the next sync.
func (e *Entry) LastRunAt() time.Time { return e.lastRunAt }

// TotalRunCount returns the in-memory fire count.
func (e *Entry) TotalRunCount() int { return e.totalRunCount }

// Args returns the decoded positional arguments.
func (e *Entry) Args() []any { return e.job.DecodeArgs() }

// Kwargs returns the decoded keyword arguments.
func (e *Entry) Kwargs() map[string]any { return e.job.DecodeKwargs() }

// Options returns the dispatch options derived from the job definition.
func (e *Entry) Options() core.SubmitOptions { return e.job.SubmitOptions() }

// IsDue applies the gate chain, first match wins, then delegates to the
// schedule:
//
//  1. disabled jobs recheck in 5s
//  2. a future start time waits it out (at least 1s)
//  3. expired jobs are dormant, recheck daily
//  4. a one-off that has fired is dormant, recheck daily
//  5. otherwise the schedule decides
func (e *Entry) IsDue() schedule.State {
	now := e.clock()

	if !e.job.Enabled {
		return schedule.State{Due: false, Wait: disabledRecheck}
	}

	if e.job.StartTime != nil && now.Before(*e.job.StartTime) {
		wait := e.job.StartTime.Sub(now)
		if wait < time.Second {
			wait = time.Second
		}
		return schedule.State{Due: false, Wait: wait}
	}

	if e.job.Expires != nil && !now.Before(*e.job.Expires) {
		return schedule.State{Due: false, Wait: dormantRecheck}
	}

	if e.job.OneOff && e.totalRunCount > 0 {
		return schedule.State{Due: false, Wait: dormantRecheck}
	}

	// Unresolvable schedule (for example an unknown timezone) fails
	// closed: never due, rechecked on the ordinary cadence.
	if e.schedErr != nil {
		return schedule.State{Due: false, Wait: disabledRecheck}
	}

	return e.sched.IsDue(e.lastRunAt, now)
}

// Advance returns the post-fire successor: last run set to now, fire count
// incremented. The receiver is left untouched.
func (e *Entry) Advance() *Entry {
	next := *e
	next.lastRunAt = e.clock()
	next.totalRunCount = e.totalRunCount + 1
	return &next
}
