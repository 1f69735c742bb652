package core

import (
	"encoding/json"
	"time"
)

// DefaultTimezone is used for crontab schedules that do not name one.
const DefaultTimezone = "UTC"

// Period is the time unit of an IntervalSchedule.
type Period string

const (
	PeriodDays         Period = "days"
	PeriodHours        Period = "hours"
	PeriodMinutes      Period = "minutes"
	PeriodSeconds      Period = "seconds"
	PeriodMicroseconds Period = "microseconds"
)

// Valid reports whether p is one of the known interval units.
func (p Period) Valid() bool {
	switch p {
	case PeriodDays, PeriodHours, PeriodMinutes, PeriodSeconds, PeriodMicroseconds:
		return true
	}
	return false
}

// Duration returns the length of one unit of p.
func (p Period) Duration() time.Duration {
	switch p {
	case PeriodDays:
		return 24 * time.Hour
	case PeriodHours:
		return time.Hour
	case PeriodMinutes:
		return time.Minute
	case PeriodSeconds:
		return time.Second
	case PeriodMicroseconds:
		return time.Microsecond
	}
	return 0
}

// IntervalSchedule runs a job every N units of time.
// Rows are unique on (every, period); creating a duplicate returns the
// existing row rather than erroring.
type IntervalSchedule struct {
	ID     uint   `gorm:"primaryKey"`
	Every  int    `gorm:"not null;uniqueIndex:idx_interval_every_period"`
	Period Period `gorm:"size:24;not null;uniqueIndex:idx_interval_every_period"`
}

// Duration returns the full interval length.
func (s *IntervalSchedule) Duration() time.Duration {
	return time.Duration(s.Every) * s.Period.Duration()
}

// CrontabSchedule runs a job on a cron pattern evaluated against wall-clock
// time in Timezone. Each field accepts "*", single values, comma lists,
// ranges and step values. Multiple rows with identical patterns may exist.
type CrontabSchedule struct {
	ID          uint   `gorm:"primaryKey"`
	Minute      string `gorm:"size:240;default:'*'"`
	Hour        string `gorm:"size:96;default:'*'"`
	DayOfMonth  string `gorm:"size:124;default:'*'"`
	MonthOfYear string `gorm:"size:64;default:'*'"`
	DayOfWeek   string `gorm:"size:64;default:'*'"`
	Timezone    string `gorm:"size:64;default:'UTC'"`
}

// PeriodicJob is a persisted description of a recurring task: what to run,
// on which schedule, and with what arguments. Exactly one of IntervalID and
// CrontabID must be set. The scheduler core only updates LastRunAt and
// TotalRunCount; everything else is owned by the admin layer.
type PeriodicJob struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:200;uniqueIndex;not null"`
	Task string `gorm:"size:200;not null"`

	IntervalID *uint             `gorm:"index"`
	Interval   *IntervalSchedule `gorm:"constraint:OnDelete:SET NULL"`
	CrontabID  *uint             `gorm:"index"`
	Crontab    *CrontabSchedule  `gorm:"constraint:OnDelete:SET NULL"`

	Args   string `gorm:"type:text;default:'[]'"`
	Kwargs string `gorm:"type:text;default:'{}'"`

	Queue    string `gorm:"size:200"`
	Priority *int

	Expires   *time.Time
	OneOff    bool `gorm:"default:false"`
	StartTime *time.Time
	Enabled   bool `gorm:"default:true;index"`

	LastRunAt     *time.Time
	TotalRunCount int `gorm:"default:0"`

	Description string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// DecodeArgs returns the positional arguments. Malformed JSON yields an
// empty slice rather than an error; the admin layer validates on write.
func (j *PeriodicJob) DecodeArgs() []any {
	var args []any
	if j.Args == "" || json.Unmarshal([]byte(j.Args), &args) != nil {
		return []any{}
	}
	return args
}

// DecodeKwargs returns the keyword arguments, empty on malformed JSON.
func (j *PeriodicJob) DecodeKwargs() map[string]any {
	var kwargs map[string]any
	if j.Kwargs == "" || json.Unmarshal([]byte(j.Kwargs), &kwargs) != nil {
		return map[string]any{}
	}
	return kwargs
}

// SubmitOptions derives the dispatch options from the job's routing fields.
func (j *PeriodicJob) SubmitOptions() SubmitOptions {
	return SubmitOptions{
		Queue:    j.Queue,
		Priority: j.Priority,
		Expires:  j.Expires,
	}
}

// ScheduleChange is the singleton change-marker row (id fixed to 1).
// Every mutation to jobs or schedules bumps LastUpdate; the scheduler
// compares it against a cached baseline to decide whether to reload.
type ScheduleChange struct {
	ID         uint `gorm:"primaryKey"`
	LastUpdate time.Time
}

// ChangeMarkerID is the fixed primary key of the ScheduleChange singleton.
const ChangeMarkerID = 1

// RunStatus is the lifecycle state of a single job invocation.
type RunStatus string

const (
	RunPending RunStatus = "PENDING"
	RunStarted RunStatus = "STARTED"
	RunSuccess RunStatus = "SUCCESS"
	RunFailure RunStatus = "FAILURE"
	RunRetry   RunStatus = "RETRY"
	RunRevoked RunStatus = "REVOKED"
)

// Terminal reports whether s is a final state. DoneAt is set exactly when a
// run transitions into a terminal state.
func (s RunStatus) Terminal() bool {
	return s == RunSuccess || s == RunFailure || s == RunRevoked
}

// JobRun records one invocation attempt of a job. Rows are created by the
// dispatch side and updated by execution hooks; the scheduler core only
// reads them for retention and statistics.
type JobRun struct {
	ID        uint      `gorm:"primaryKey"`
	RunID     string    `gorm:"size:36;uniqueIndex;not null"`
	TaskName  string    `gorm:"size:255;index"`
	Args      string    `gorm:"type:text"`
	Kwargs    string    `gorm:"type:text"`
	Queue     string    `gorm:"size:200"`
	Status    RunStatus `gorm:"size:50;index;default:'PENDING'"`
	Result    string    `gorm:"type:text"`
	Traceback string    `gorm:"type:text"`
	Worker    string    `gorm:"size:100"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	DoneAt    *time.Time
}

// Statistics summarizes the job table and run history.
type Statistics struct {
	TotalJobs    int64
	EnabledJobs  int64
	DisabledJobs int64

	TotalRuns   int64
	SuccessRuns int64
	FailureRuns int64
	PendingRuns int64
}
