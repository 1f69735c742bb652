package entry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miaokela/dbeat/pkg/core"
	"github.com/miaokela/dbeat/pkg/entry"
)

var testNow = time.Date(2026, 2, 8, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// intervalJob builds a job firing every 10 seconds.
func intervalJob(name string) *core.PeriodicJob {
	interval := &core.IntervalSchedule{ID: 1, Every: 10, Period: core.PeriodSeconds}
	id := interval.ID
	return &core.PeriodicJob{
		ID:         1,
		Name:       name,
		Task:       "tasks.noop",
		IntervalID: &id,
		Interval:   interval,
		Enabled:    true,
	}
}

func crontabJob(name string, crontab *core.CrontabSchedule) *core.PeriodicJob {
	id := crontab.ID
	return &core.PeriodicJob{
		ID:        2,
		Name:      name,
		Task:      "tasks.noop",
		CrontabID: &id,
		Crontab:   crontab,
		Enabled:   true,
	}
}

func newEntry(t *testing.T, job *core.PeriodicJob) *entry.Entry {
	t.Helper()
	e, err := entry.New(job, entry.WithClock(fixedClock))
	require.NoError(t, err)
	return e
}

func TestNew_RejectsJobWithoutSchedule(t *testing.T) {
	job := intervalJob("ping")
	job.IntervalID = nil
	job.Interval = nil

	_, err := entry.New(job)

	assert.ErrorIs(t, err, core.ErrNoSchedule)
}

func TestNew_RejectsJobWithBothSchedules(t *testing.T) {
	job := intervalJob("ping")
	crontabID := uint(7)
	job.CrontabID = &crontabID

	_, err := entry.New(job)

	assert.ErrorIs(t, err, core.ErrBothSchedules)
}

func TestIsDue_NeverFiredIsImmediatelyEligible(t *testing.T) {
	e := newEntry(t, intervalJob("ping"))

	state := e.IsDue()

	assert.True(t, state.Due)
}

func TestIsDue_DisabledJob(t *testing.T) {
	job := intervalJob("ping")
	job.Enabled = false
	e := newEntry(t, job)

	state := e.IsDue()

	assert.False(t, state.Due)
	assert.Equal(t, 5*time.Second, state.Wait)
}

func TestIsDue_FutureStartTime(t *testing.T) {
	job := intervalJob("ping")
	start := testNow.Add(90 * time.Second)
	job.StartTime = &start
	e := newEntry(t, job)

	state := e.IsDue()

	assert.False(t, state.Due)
	assert.Equal(t, 90*time.Second, state.Wait)
}

func TestIsDue_ImminentStartTimeWaitsAtLeastOneSecond(t *testing.T) {
	job := intervalJob("ping")
	start := testNow.Add(200 * time.Millisecond)
	job.StartTime = &start
	e := newEntry(t, job)

	state := e.IsDue()

	assert.False(t, state.Due)
	assert.Equal(t, time.Second, state.Wait)
}

func TestIsDue_ExpiredJobIsDormant(t *testing.T) {
	job := intervalJob("ping")
	expires := testNow.Add(-time.Hour)
	job.Expires = &expires
	e := newEntry(t, job)

	state := e.IsDue()

	assert.False(t, state.Due)
	assert.Equal(t, 24*time.Hour, state.Wait)
}

func TestIsDue_OneOffFiresExactlyOnce(t *testing.T) {
	job := intervalJob("ping")
	job.OneOff = true
	e := newEntry(t, job)

	state := e.IsDue()
	require.True(t, state.Due)

	fired := e.Advance()
	state = fired.IsDue()

	assert.False(t, state.Due)
	assert.Equal(t, 24*time.Hour, state.Wait)
}

func TestIsDue_BadTimezoneFailsClosed(t *testing.T) {
	crontab := &core.CrontabSchedule{
		ID: 3, Minute: "*", Hour: "*", DayOfMonth: "*", MonthOfYear: "*",
		DayOfWeek: "*", Timezone: "Not/AZone",
	}
	e := newEntry(t, crontabJob("report", crontab))

	state := e.IsDue()

	assert.False(t, state.Due, "unparseable timezone must never fire")
}

func TestIsDue_IntervalAfterAdvance(t *testing.T) {
	e := newEntry(t, intervalJob("ping"))

	require.True(t, e.IsDue().Due)

	next := e.Advance()
	state := next.IsDue()

	assert.False(t, state.Due)
	assert.Equal(t, 10*time.Second, state.Wait, "a full period after firing")
}

func TestAdvance_IsPure(t *testing.T) {
	e := newEntry(t, intervalJob("ping"))

	first := e.Advance()
	second := e.Advance()

	assert.Equal(t, 0, e.TotalRunCount(), "the original entry is untouched")
	assert.Equal(t, 1, first.TotalRunCount())
	assert.Equal(t, 1, second.TotalRunCount())
	assert.NotSame(t, first, second)
}

func TestAdvance_SetsLastRun(t *testing.T) {
	e := newEntry(t, intervalJob("ping"))

	next := e.Advance()

	assert.Equal(t, testNow, next.LastRunAt())
	assert.Equal(t, 1, next.TotalRunCount())
}

func TestEntry_UsesPersistedRunStats(t *testing.T) {
	job := intervalJob("ping")
	last := testNow.Add(-3 * time.Second)
	job.LastRunAt = &last
	job.TotalRunCount = 42
	e := newEntry(t, job)

	assert.Equal(t, last, e.LastRunAt())
	assert.Equal(t, 42, e.TotalRunCount())

	state := e.IsDue()
	assert.False(t, state.Due)
	assert.Equal(t, 7*time.Second, state.Wait)
}

func TestEntry_MatchesTarget(t *testing.T) {
	e := newEntry(t, intervalJob("ping"))

	assert.True(t, e.MatchesTarget("tasks.noop"))
	assert.False(t, e.MatchesTarget("tasks.other"))
}

func TestEntry_DecodesArguments(t *testing.T) {
	job := intervalJob("ping")
	job.Args = `[1, "two"]`
	job.Kwargs = `{"retries": 3}`
	e := newEntry(t, job)

	assert.Equal(t, []any{float64(1), "two"}, e.Args())
	assert.Equal(t, map[string]any{"retries": float64(3)}, e.Kwargs())
}

func TestEntry_MalformedArgumentsDecodeEmpty(t *testing.T) {
	job := intervalJob("ping")
	job.Args = "{not json"
	job.Kwargs = "[wrong shape]"
	e := newEntry(t, job)

	assert.Empty(t, e.Args())
	assert.Empty(t, e.Kwargs())
}

func TestEntry_OptionsDeriveFromJob(t *testing.T) {
	job := intervalJob("ping")
	priority := 7
	expires := testNow.Add(time.Hour)
	job.Queue = "critical"
	job.Priority = &priority
	job.Expires = &expires
	e := newEntry(t, job)

	opts := e.Options()
	assert.Equal(t, "critical", opts.Queue)
	assert.Equal(t, 7, *opts.Priority)
	assert.Equal(t, expires, *opts.Expires)
}
