package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/miaokela/dbeat/pkg/core"
	"github.com/miaokela/dbeat/pkg/entry"
)

// DefaultMaxInterval bounds the sleep between ticks.
const DefaultMaxInterval = 5 * time.Second

// DefaultSyncEvery is the cadence of opportunistic statistics flushes.
const DefaultSyncEvery = 5 * time.Second

// Scheduler is the control loop over one in-memory table of job entries.
// It is a single logical thread: one evaluation/dispatch pass at a time,
// no locking against the admin layer. The only shared state is the
// persisted store plus the change marker, which trades a bounded staleness
// window (at most maxInterval) for freedom from cross-process locks.
type Scheduler struct {
	store      core.Storage
	dispatcher core.Dispatcher
	logger     *slog.Logger
	clock      func() time.Time

	maxInterval time.Duration
	syncEvery   time.Duration

	entries map[string]*entry.Entry
	order   []string // definition order, for fair dispatch within a tick
	dirty   map[string]struct{}

	baseline   time.Time // last observed change-marker value
	loadedOnce bool
	lastSync   time.Time
}

// New creates a scheduler over the given store and dispatcher.
func New(store core.Storage, dispatcher core.Dispatcher, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:       store,
		dispatcher:  dispatcher,
		logger:      slog.Default(),
		clock:       time.Now,
		maxInterval: DefaultMaxInterval,
		syncEvery:   DefaultSyncEvery,
		entries:     make(map[string]*entry.Entry),
		dirty:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt.applyScheduler(s)
	}
	return s
}

// Len returns the number of loaded entries.
func (s *Scheduler) Len() int {
	return len(s.entries)
}

// Start runs the loop until ctx is cancelled, then performs one final
// statistics flush and returns ctx.Err(). Errors along the way are logged
// and recovered locally; nothing short of cancellation stops the loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler starting", "max_interval", s.maxInterval)

	for {
		delay := s.Tick(ctx)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			// ctx is already cancelled here; the final flush needs a live
			// context or every write in it is refused.
			s.Sync(context.WithoutCancel(ctx))
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Tick runs one pass: detect and apply external changes, flush statistics
// on cadence, dispatch every due entry, and return how long the caller may
// sleep before the next pass (never more than maxInterval).
func (s *Scheduler) Tick(ctx context.Context) time.Duration {
	if !s.loadedOnce {
		// Capture the marker before the first load: an edit racing the
		// load then still reads as newer than the baseline.
		if ts, err := s.store.ChangeMarker(ctx); err == nil {
			s.baseline = ts
		}
		s.reload(ctx)
	} else if s.changed(ctx) {
		// Flush in-flight statistics before discarding the table, so a
		// fire recorded in memory survives the reload.
		s.Sync(ctx)
		s.reload(ctx)
	} else if len(s.dirty) > 0 && s.clock().Sub(s.lastSync) >= s.syncEvery {
		s.Sync(ctx)
	}

	minWait := s.maxInterval
	for _, name := range s.order {
		e, ok := s.entries[name]
		if !ok {
			continue
		}

		state := e.IsDue()
		if state.Due {
			s.dispatch(ctx, e)
		}
		if state.Wait < minWait {
			minWait = state.Wait
		}
	}

	if minWait < 0 {
		minWait = 0
	}
	return minWait
}

// dispatch submits one due entry and installs its successor. The advance
// happens even when submission fails: a rejected submission still counts as
// fired (at-most-once attempt, never at-least-once delivery).
func (s *Scheduler) dispatch(ctx context.Context, e *entry.Entry) {
	runID, err := s.dispatcher.Submit(ctx, e.Target(), e.Args(), e.Kwargs(), e.Options())
	if err != nil {
		s.logger.Error("submit failed, counting the fire anyway",
			"job", e.Name(), "target", e.Target(), "error", err)
	} else {
		s.logger.Debug("dispatched", "job", e.Name(), "target", e.Target(), "run_id", runID)
	}

	next := e.Advance()
	s.entries[next.Name()] = next
	s.dirty[next.Name()] = struct{}{}
}

// Sync flushes the dirty entries' run statistics to storage. A failed write
// keeps that entry dirty for the next pass without blocking the others.
func (s *Scheduler) Sync(ctx context.Context) {
	for name := range s.dirty {
		e, ok := s.entries[name]
		if !ok {
			delete(s.dirty, name)
			continue
		}
		if err := s.store.SaveRunStats(ctx, name, e.LastRunAt(), e.TotalRunCount()); err != nil {
			s.logger.Error("save run stats failed", "job", name, "error", err)
			continue
		}
		delete(s.dirty, name)
	}
	s.lastSync = s.clock()
}

// changed compares the live change marker against the cached baseline,
// updating the baseline either way. Read failures report no change so a
// transient persistence error cannot wipe the table.
func (s *Scheduler) changed(ctx context.Context) bool {
	ts, err := s.store.ChangeMarker(ctx)
	if err != nil {
		s.logger.Error("read change marker failed", "error", err)
		return false
	}

	changed := !ts.IsZero() && ts.After(s.baseline)
	s.baseline = ts
	return changed
}

// reload rebuilds the entry table from storage. On a read failure the old
// table keeps serving; malformed definitions are skipped with a log rather
// than taking the loop down.
func (s *Scheduler) reload(ctx context.Context) {
	jobs, err := s.store.LoadEnabledJobs(ctx)
	if err != nil {
		s.logger.Error("load jobs failed, keeping current table", "error", err)
		return
	}

	entries := make(map[string]*entry.Entry, len(jobs))
	order := make([]string, 0, len(jobs))
	for _, job := range jobs {
		e, err := entry.New(job, entry.WithClock(s.clock))
		if err != nil {
			s.logger.Error("skipping malformed job", "job", job.Name, "error", err)
			continue
		}
		entries[job.Name] = e
		order = append(order, job.Name)
	}

	s.entries = entries
	s.order = order
	s.loadedOnce = true
	s.logger.Info("schedule loaded", "jobs", len(entries))
}
