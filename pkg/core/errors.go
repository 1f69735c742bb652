package core

import "errors"

// Validation errors
var (
	ErrNoSchedule       = errors.New("dbeat: job must reference an interval or crontab schedule")
	ErrBothSchedules    = errors.New("dbeat: job cannot reference both an interval and a crontab schedule")
	ErrInvalidJobName   = errors.New("dbeat: invalid job name")
	ErrJobNameTooLong   = errors.New("dbeat: job name too long")
	ErrInvalidTaskPath  = errors.New("dbeat: invalid task path (must be alphanumeric, start with letter)")
	ErrTaskPathTooLong  = errors.New("dbeat: task path too long")
	ErrInvalidQueueName = errors.New("dbeat: invalid queue name")
	ErrQueueNameTooLong = errors.New("dbeat: queue name too long")
	ErrInvalidPeriod    = errors.New("dbeat: invalid interval period")
	ErrInvalidEvery     = errors.New("dbeat: interval count must be positive")
	ErrInvalidPriority  = errors.New("dbeat: priority must be between 0 and 9")
	ErrInvalidTimezone  = errors.New("dbeat: unknown timezone")
	ErrInvalidCrontab   = errors.New("dbeat: invalid crontab pattern")
)

// Lookup and mutation errors
var (
	ErrJobNotFound      = errors.New("dbeat: job not found")
	ErrScheduleNotFound = errors.New("dbeat: schedule not found")
	ErrRunNotFound      = errors.New("dbeat: run record not found")
	ErrDuplicateJobName = errors.New("dbeat: a job with that name already exists")
	ErrUnknownJobField  = errors.New("dbeat: unknown job field in update")
)
