// Package validate provides boundary validation for job and schedule
// definitions. Malformed definitions are rejected here, in the admin layer,
// so the scheduler core only ever sees well-formed rows.
package validate

import (
	"regexp"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/miaokela/dbeat/pkg/core"
)

// Field limits, matching the persisted column sizes.
const (
	// MaxJobNameLength is the maximum length for job names
	MaxJobNameLength = 200

	// MaxTaskPathLength is the maximum length for task paths
	MaxTaskPathLength = 200

	// MaxQueueNameLength is the maximum length for queue names
	MaxQueueNameLength = 200

	// MinPriority and MaxPriority bound the optional job priority
	MinPriority = 0
	MaxPriority = 9
)

// validTaskPath matches dotted task paths like "tasks.email.send_welcome"
var validTaskPath = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-\.]*$`)

// JobName validates a job name.
func JobName(name string) error {
	if name == "" {
		return core.ErrInvalidJobName
	}
	if len(name) > MaxJobNameLength {
		return core.ErrJobNameTooLong
	}
	return nil
}

// TaskPath validates a task identifier.
func TaskPath(path string) error {
	if path == "" {
		return core.ErrInvalidTaskPath
	}
	if len(path) > MaxTaskPathLength {
		return core.ErrTaskPathTooLong
	}
	if !validTaskPath.MatchString(path) {
		return core.ErrInvalidTaskPath
	}
	return nil
}

// QueueName validates an optional queue name. Empty means the default queue.
func QueueName(name string) error {
	if name == "" {
		return nil
	}
	if len(name) > MaxQueueNameLength {
		return core.ErrQueueNameTooLong
	}
	if !validTaskPath.MatchString(name) {
		return core.ErrInvalidQueueName
	}
	return nil
}

// Interval validates an interval schedule's fields.
func Interval(every int, period core.Period) error {
	if every <= 0 {
		return core.ErrInvalidEvery
	}
	if !period.Valid() {
		return core.ErrInvalidPeriod
	}
	return nil
}

// Priority validates an optional priority.
func Priority(p *int) error {
	if p == nil {
		return nil
	}
	if *p < MinPriority || *p > MaxPriority {
		return core.ErrInvalidPriority
	}
	return nil
}

// Timezone validates an IANA timezone name. Empty means the default.
func Timezone(tz string) error {
	if tz == "" {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return core.ErrInvalidTimezone
	}
	return nil
}

// Crontab validates a crontab schedule's pattern fields and timezone.
func Crontab(c *core.CrontabSchedule) error {
	if err := Timezone(c.Timezone); err != nil {
		return err
	}

	spec := field(c.Minute) + " " + field(c.Hour) + " " + field(c.DayOfMonth) +
		" " + field(c.MonthOfYear) + " " + field(c.DayOfWeek)
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(spec); err != nil {
		return core.ErrInvalidCrontab
	}
	return nil
}

func field(f string) string {
	if f == "" {
		return "*"
	}
	return f
}
