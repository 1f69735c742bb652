package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/miaokela/dbeat/pkg/core"
)

// State is the result of a due-ness check. Wait is the suggested maximum
// delay before the next check, not a guaranteed-precise wake time.
type State struct {
	Due  bool
	Wait time.Duration
}

// Schedule decides whether a job is due given its last fire time.
type Schedule interface {
	IsDue(lastRun, now time.Time) State
}

// everySchedule fires once per fixed interval.
type everySchedule struct {
	interval time.Duration
}

// Every creates a schedule that is due whenever a full interval has elapsed
// since the last run. When due, the returned wait is a full interval.
func Every(d time.Duration) Schedule {
	return &everySchedule{interval: d}
}

func (s *everySchedule) IsDue(lastRun, now time.Time) State {
	if remaining := s.interval - now.Sub(lastRun); remaining > 0 {
		return State{Due: false, Wait: remaining}
	}
	return State{Due: true, Wait: s.interval}
}

const (
	// cronWindow is the tolerance around a cron boundary within which the
	// schedule actually fires. Cron fires at discrete minute boundaries, so
	// a logically-elapsed period alone is not enough to be due.
	cronWindow = time.Second

	// cronRecheck bounds the wait reported while holding for the next
	// boundary, so clock drift cannot sleep the caller past it.
	cronRecheck = 5 * time.Second
)

// crontabSchedule fires at minute boundaries matching a cron pattern,
// evaluated against wall-clock time in loc.
type crontabSchedule struct {
	sched cron.Schedule
	loc   *time.Location
}

// Crontab creates a schedule from the five cron fields and an IANA timezone
// name. Empty fields default to "*"; an empty timezone defaults to
// core.DefaultTimezone. Unparseable patterns or timezones return an error.
func Crontab(minute, hour, dayOfMonth, monthOfYear, dayOfWeek, timezone string) (Schedule, error) {
	if timezone == "" {
		timezone = core.DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidTimezone, timezone)
	}

	fields := []*string{&minute, &hour, &dayOfMonth, &monthOfYear, &dayOfWeek}
	for _, f := range fields {
		if *f == "" {
			*f = "*"
		}
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	spec := fmt.Sprintf("%s %s %s %s %s", minute, hour, dayOfMonth, monthOfYear, dayOfWeek)
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", core.ErrInvalidCrontab, spec, err)
	}

	return &crontabSchedule{sched: sched, loc: loc}, nil
}

// FromCrontab resolves a persisted crontab row into a Schedule.
func FromCrontab(c *core.CrontabSchedule) (Schedule, error) {
	return Crontab(c.Minute, c.Hour, c.DayOfMonth, c.MonthOfYear, c.DayOfWeek, c.Timezone)
}

// IsDue is a two-stage check. First the raw cron due-ness: has an occurrence
// after lastRun already passed? Then a tight window gate: even when the
// logical period has elapsed, the schedule only fires within cronWindow of a
// matching minute boundary. Outside the window the reported wait is capped
// at cronRecheck so a boundary cannot be slept through.
func (s *crontabSchedule) IsDue(lastRun, now time.Time) State {
	now = now.In(s.loc)

	next := s.sched.Next(lastRun.In(s.loc))
	if now.Before(next) {
		return State{Due: false, Wait: next.Sub(now)}
	}

	boundary := s.sched.Next(now.Add(-cronWindow))
	if until := boundary.Sub(now); until > cronWindow {
		if until > cronRecheck {
			until = cronRecheck
		}
		return State{Due: false, Wait: until}
	}

	return State{Due: true, Wait: s.sched.Next(now).Sub(now)}
}
