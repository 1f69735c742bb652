package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/miaokela/dbeat/pkg/core"
)

// GormStorage implements core.Storage using GORM.
type GormStorage struct {
	db *gorm.DB
}

// NewGormStorage creates a new GORM-backed storage.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

// DB returns the underlying GORM handle.
func (s *GormStorage) DB() *gorm.DB {
	return s.db
}

// Migrate creates the necessary tables.
func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&core.IntervalSchedule{},
		&core.CrontabSchedule{},
		&core.PeriodicJob{},
		&core.ScheduleChange{},
		&core.JobRun{},
	)
}

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler-facing surface
// ──────────────────────────────────────────────────────────────────────────────

// LoadEnabledJobs returns all enabled jobs with their schedules resolved,
// in definition order.
func (s *GormStorage) LoadEnabledJobs(ctx context.Context) ([]*core.PeriodicJob, error) {
	var jobs []*core.PeriodicJob
	err := s.db.WithContext(ctx).
		Preload("Interval").
		Preload("Crontab").
		Where("enabled = ?", true).
		Order("id ASC").
		Find(&jobs).Error
	return jobs, err
}

// SaveRunStats persists a job's run statistics. Deliberately does not bump
// the change marker: a routine fire is not a configuration change and must
// not trigger a reload.
func (s *GormStorage) SaveRunStats(ctx context.Context, name string, lastRunAt time.Time, totalRunCount int) error {
	result := s.db.WithContext(ctx).
		Model(&core.PeriodicJob{}).
		Where("name = ?", name).
		Updates(map[string]any{
			"last_run_at":     lastRunAt,
			"total_run_count": totalRunCount,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrJobNotFound
	}
	return nil
}

// ChangeMarker returns the shared last-changed timestamp, or the zero time
// when nothing has been written yet.
func (s *GormStorage) ChangeMarker(ctx context.Context) (time.Time, error) {
	var marker core.ScheduleChange
	err := s.db.WithContext(ctx).First(&marker, "id = ?", core.ChangeMarkerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return marker.LastUpdate, nil
}

// BumpChangeMarker sets the shared marker to now. Called by every mutation
// path as its last side effect so the scheduler notices the change.
func (s *GormStorage) BumpChangeMarker(ctx context.Context) error {
	marker := core.ScheduleChange{ID: core.ChangeMarkerID, LastUpdate: time.Now()}
	return s.db.WithContext(ctx).Save(&marker).Error
}

// ──────────────────────────────────────────────────────────────────────────────
// Interval schedules
// ──────────────────────────────────────────────────────────────────────────────

// CreateInterval returns the schedule for (every, period), creating it if it
// does not exist. Duplicates resolve to the existing row.
func (s *GormStorage) CreateInterval(ctx context.Context, every int, period core.Period) (*core.IntervalSchedule, error) {
	interval := core.IntervalSchedule{Every: every, Period: period}
	err := s.db.WithContext(ctx).
		Where(core.IntervalSchedule{Every: every, Period: period}).
		FirstOrCreate(&interval).Error
	if err != nil {
		return nil, err
	}
	return &interval, nil
}

// GetInterval retrieves an interval schedule by ID, nil if absent.
func (s *GormStorage) GetInterval(ctx context.Context, id uint) (*core.IntervalSchedule, error) {
	var interval core.IntervalSchedule
	err := s.db.WithContext(ctx).First(&interval, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &interval, nil
}

// ListIntervals returns all interval schedules.
func (s *GormStorage) ListIntervals(ctx context.Context) ([]*core.IntervalSchedule, error) {
	var intervals []*core.IntervalSchedule
	err := s.db.WithContext(ctx).Order("id ASC").Find(&intervals).Error
	return intervals, err
}

// DeleteInterval removes an interval schedule and bumps the change marker.
// Jobs referencing it are left with a dangling reference (SET NULL), which
// the scheduler skips on the next reload.
func (s *GormStorage) DeleteInterval(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&core.IntervalSchedule{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrScheduleNotFound
	}
	return s.BumpChangeMarker(ctx)
}

// ──────────────────────────────────────────────────────────────────────────────
// Crontab schedules
// ──────────────────────────────────────────────────────────────────────────────

// CreateCrontab stores a crontab schedule, applying field defaults. No
// uniqueness: identical patterns may coexist.
func (s *GormStorage) CreateCrontab(ctx context.Context, crontab *core.CrontabSchedule) error {
	fields := []*string{&crontab.Minute, &crontab.Hour, &crontab.DayOfMonth, &crontab.MonthOfYear, &crontab.DayOfWeek}
	for _, f := range fields {
		if *f == "" {
			*f = "*"
		}
	}
	if crontab.Timezone == "" {
		crontab.Timezone = core.DefaultTimezone
	}
	return s.db.WithContext(ctx).Create(crontab).Error
}

// GetCrontab retrieves a crontab schedule by ID, nil if absent.
func (s *GormStorage) GetCrontab(ctx context.Context, id uint) (*core.CrontabSchedule, error) {
	var crontab core.CrontabSchedule
	err := s.db.WithContext(ctx).First(&crontab, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &crontab, nil
}

// ListCrontabs returns all crontab schedules.
func (s *GormStorage) ListCrontabs(ctx context.Context) ([]*core.CrontabSchedule, error) {
	var crontabs []*core.CrontabSchedule
	err := s.db.WithContext(ctx).Order("id ASC").Find(&crontabs).Error
	return crontabs, err
}

// DeleteCrontab removes a crontab schedule and bumps the change marker.
func (s *GormStorage) DeleteCrontab(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&core.CrontabSchedule{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrScheduleNotFound
	}
	return s.BumpChangeMarker(ctx)
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic jobs
// ──────────────────────────────────────────────────────────────────────────────

// CreateJob stores a job definition and bumps the change marker. The job
// must reference exactly one schedule.
func (s *GormStorage) CreateJob(ctx context.Context, job *core.PeriodicJob) error {
	switch {
	case job.IntervalID == nil && job.CrontabID == nil:
		return core.ErrNoSchedule
	case job.IntervalID != nil && job.CrontabID != nil:
		return core.ErrBothSchedules
	}
	if job.Args == "" {
		job.Args = "[]"
	}
	if job.Kwargs == "" {
		job.Kwargs = "{}"
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&core.PeriodicJob{}).
		Where("name = ?", job.Name).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return core.ErrDuplicateJobName
	}

	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return err
	}
	return s.BumpChangeMarker(ctx)
}

// GetJob retrieves a job by ID with its schedules resolved, nil if absent.
func (s *GormStorage) GetJob(ctx context.Context, id uint) (*core.PeriodicJob, error) {
	var job core.PeriodicJob
	err := s.db.WithContext(ctx).
		Preload("Interval").
		Preload("Crontab").
		First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJobByName retrieves a job by its unique name, nil if absent.
func (s *GormStorage) GetJobByName(ctx context.Context, name string) (*core.PeriodicJob, error) {
	var job core.PeriodicJob
	err := s.db.WithContext(ctx).
		Preload("Interval").
		Preload("Crontab").
		First(&job, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns jobs, optionally filtered by enabled state.
func (s *GormStorage) ListJobs(ctx context.Context, enabled *bool, limit, offset int) ([]*core.PeriodicJob, error) {
	query := s.db.WithContext(ctx).
		Preload("Interval").
		Preload("Crontab").
		Order("id ASC")
	if enabled != nil {
		query = query.Where("enabled = ?", *enabled)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var jobs []*core.PeriodicJob
	err := query.Find(&jobs).Error
	return jobs, err
}

// UpdateJob applies a partial update and bumps the change marker. When the
// update switches the job to a different schedule, last_run_at is reset to
// null so the new schedule takes effect immediately instead of being judged
// against a stale fire time.
func (s *GormStorage) UpdateJob(ctx context.Context, id uint, fields map[string]any) (*core.PeriodicJob, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job core.PeriodicJob
		if err := tx.First(&job, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return core.ErrJobNotFound
			}
			return err
		}

		if scheduleChanged(&job, fields) {
			fields["last_run_at"] = nil
		}

		return tx.Model(&job).Updates(fields).Error
	})
	if err != nil {
		return nil, err
	}

	if err := s.BumpChangeMarker(ctx); err != nil {
		return nil, err
	}

	return s.GetJob(ctx, id)
}

// scheduleChanged reports whether fields moves the job to a different
// interval or crontab reference.
func scheduleChanged(job *core.PeriodicJob, fields map[string]any) bool {
	if v, ok := fields["interval_id"]; ok && !sameScheduleRef(job.IntervalID, v) {
		return true
	}
	if v, ok := fields["crontab_id"]; ok && !sameScheduleRef(job.CrontabID, v) {
		return true
	}
	return false
}

func sameScheduleRef(current *uint, next any) bool {
	switch v := next.(type) {
	case nil:
		return current == nil
	case *uint:
		if v == nil {
			return current == nil
		}
		return current != nil && *current == *v
	case uint:
		return current != nil && *current == v
	case int:
		return current != nil && *current == uint(v)
	}
	return false
}

// DeleteJob removes a job definition and bumps the change marker.
func (s *GormStorage) DeleteJob(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&core.PeriodicJob{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrJobNotFound
	}
	return s.BumpChangeMarker(ctx)
}

// ──────────────────────────────────────────────────────────────────────────────
// Run records
// ──────────────────────────────────────────────────────────────────────────────

// RecordRun stores a new run record, generating its RunID if unset.
func (s *GormStorage) RecordRun(ctx context.Context, run *core.JobRun) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = core.RunPending
	}
	return s.db.WithContext(ctx).Create(run).Error
}

// UpdateRunStatus transitions a run record. DoneAt is stamped exactly when
// the status enters a terminal state.
func (s *GormStorage) UpdateRunStatus(ctx context.Context, runID string, status core.RunStatus, result, traceback, worker string) error {
	updates := map[string]any{
		"status":    status,
		"result":    result,
		"traceback": traceback,
	}
	if worker != "" {
		updates["worker"] = worker
	}
	if status.Terminal() {
		updates["done_at"] = time.Now()
	}

	res := s.db.WithContext(ctx).
		Model(&core.JobRun{}).
		Where("run_id = ?", runID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return core.ErrRunNotFound
	}
	return nil
}

// GetRun retrieves a run record by its invocation ID, nil if absent.
func (s *GormStorage) GetRun(ctx context.Context, runID string) (*core.JobRun, error) {
	var run core.JobRun
	err := s.db.WithContext(ctx).First(&run, "run_id = ?", runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns run records, newest first, optionally filtered by task
// name and status.
func (s *GormStorage) ListRuns(ctx context.Context, taskName string, status core.RunStatus, limit, offset int) ([]*core.JobRun, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if taskName != "" {
		query = query.Where("task_name = ?", taskName)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var runs []*core.JobRun
	err := query.Find(&runs).Error
	return runs, err
}

// PurgeRunsBefore deletes run records created before cutoff, returning the
// number removed.
func (s *GormStorage) PurgeRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&core.JobRun{})
	return result.RowsAffected, result.Error
}

// ──────────────────────────────────────────────────────────────────────────────
// Statistics
// ──────────────────────────────────────────────────────────────────────────────

// Statistics counts jobs and run records by state.
func (s *GormStorage) Statistics(ctx context.Context) (*core.Statistics, error) {
	db := s.db.WithContext(ctx)
	stats := &core.Statistics{}

	jobCounts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&stats.TotalJobs, db.Model(&core.PeriodicJob{})},
		{&stats.EnabledJobs, db.Model(&core.PeriodicJob{}).Where("enabled = ?", true)},
		{&stats.DisabledJobs, db.Model(&core.PeriodicJob{}).Where("enabled = ?", false)},
		{&stats.TotalRuns, db.Model(&core.JobRun{})},
		{&stats.SuccessRuns, db.Model(&core.JobRun{}).Where("status = ?", core.RunSuccess)},
		{&stats.FailureRuns, db.Model(&core.JobRun{}).Where("status = ?", core.RunFailure)},
		{&stats.PendingRuns, db.Model(&core.JobRun{}).Where("status = ?", core.RunPending)},
	}
	for _, c := range jobCounts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, err
		}
	}
	return stats, nil
}
