package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestDefaultPoolConfig(t *testing.T) {
	config := DefaultPoolConfig()

	assert.Equal(t, 10, config.MaxOpenConns)
	assert.Equal(t, 5, config.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, config.ConnMaxLifetime)
	assert.Equal(t, time.Minute, config.ConnMaxIdleTime)
}

func TestPoolOptions_Override(t *testing.T) {
	config := DefaultPoolConfig()
	opts := []PoolOption{
		MaxOpenConns(25),
		MaxIdleConns(10),
		ConnMaxLifetime(time.Hour),
		ConnMaxIdleTime(0),
	}
	for _, opt := range opts {
		opt.applyPool(&config)
	}

	assert.Equal(t, 25, config.MaxOpenConns)
	assert.Equal(t, 10, config.MaxIdleConns)
	assert.Equal(t, time.Hour, config.ConnMaxLifetime)
	assert.Equal(t, time.Duration(0), config.ConnMaxIdleTime)
}

func TestConfigurePool_AppliesToConnection(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, ConfigurePool(db, MaxOpenConns(3)))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 3, sqlDB.Stats().MaxOpenConnections)
}

func TestNewGormStorageWithPool(t *testing.T) {
	db := newTestDB(t)

	s, err := NewGormStorageWithPool(db, MaxOpenConns(2), MaxIdleConns(1))
	require.NoError(t, err)
	require.NotNil(t, s)

	require.NoError(t, s.Migrate(context.Background()))
	jobs, err := s.LoadEnabledJobs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
