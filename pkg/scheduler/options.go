package scheduler

import (
	"log/slog"
	"time"
)

// Option configures a Scheduler.
type Option interface {
	applyScheduler(*Scheduler)
}

type optionFunc func(*Scheduler)

func (f optionFunc) applyScheduler(s *Scheduler) { f(s) }

// MaxInterval caps how long the loop sleeps between ticks, bounding how
// stale the in-memory table can get when the change marker is the only
// signal. Default 5s.
func MaxInterval(d time.Duration) Option {
	return optionFunc(func(s *Scheduler) {
		if d > 0 {
			s.maxInterval = d
		}
	})
}

// SyncEvery sets the cadence of opportunistic dirty-statistics flushes.
// Default 5s. Flushes still happen before every reload and on shutdown.
func SyncEvery(d time.Duration) Option {
	return optionFunc(func(s *Scheduler) {
		if d > 0 {
			s.syncEvery = d
		}
	})
}

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	})
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return optionFunc(func(s *Scheduler) {
		if clock != nil {
			s.clock = clock
		}
	})
}
