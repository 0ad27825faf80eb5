package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// lockRow is the persisted lock table. AcquiredAt plus the store TTL gives
// the implicit expiry; there is no sweeper, expiry is checked on read.
type lockRow struct {
	LockID     string    `gorm:"column:lock_id;primaryKey"`
	User       string    `gorm:"column:user;primaryKey"`
	Instance   string    `gorm:"column:instance;primaryKey"`
	AcquiredAt time.Time `gorm:"column:acquired_at"`
}

func (lockRow) TableName() string { return "workflow_locks" }

// SQLiteStore persists locks in an embedded sqlite database so they are
// shared between processes on one host. Restarting instances call
// ReleaseInstance to shed their stale rows.
type SQLiteStore struct {
	db     *gorm.DB
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	// sqlite is single-writer; serializing acquisitions in-process avoids
	// spurious SQLITE_BUSY failures under concurrent requests.
	mu sync.Mutex
}

// NewSQLiteStore opens (and migrates) the lock database at path. Use
// ":memory:" for an ephemeral store.
func NewSQLiteStore(path string, ttl time.Duration, logger *zap.Logger) (*SQLiteStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open lock database: %w", err)
	}
	if err := db.AutoMigrate(&lockRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate lock table: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "locks_sqlite")),
		now:    time.Now,
	}, nil
}

func (s *SQLiteStore) Acquire(ctx context.Context, id, user, instance string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acquired := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row lockRow
		err := tx.Where("lock_id = ? AND user = ? AND instance = ?", id, user, instance).
			First(&row).Error
		switch {
		case err == nil:
			if s.now().Sub(row.AcquiredAt) < s.ttl {
				return nil // held and fresh
			}
			// Expired: displace the stale holder.
			row.AcquiredAt = s.now()
			if err := tx.Save(&row).Error; err != nil {
				return err
			}
			acquired = true
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = lockRow{LockID: id, User: user, Instance: instance, AcquiredAt: s.now()}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			acquired = true
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return false, fmt.Errorf("lock acquire failed: %w", err)
	}
	if acquired {
		s.logger.Debug("lock acquired",
			zap.String("lock_id", id),
			zap.String("user", user),
		)
	}
	return acquired, nil
}

func (s *SQLiteStore) Release(ctx context.Context, id, user, instance string) error {
	err := s.db.WithContext(ctx).
		Where("lock_id = ? AND user = ? AND instance = ?", id, user, instance).
		Delete(&lockRow{}).Error
	if err != nil {
		return fmt.Errorf("lock release failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) IsHeld(ctx context.Context, id, user, instance string) (bool, error) {
	var row lockRow
	err := s.db.WithContext(ctx).
		Where("lock_id = ? AND user = ? AND instance = ?", id, user, instance).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lock check failed: %w", err)
	}
	return s.now().Sub(row.AcquiredAt) < s.ttl, nil
}

func (s *SQLiteStore) ReleaseInstance(ctx context.Context, instance string) error {
	result := s.db.WithContext(ctx).
		Where("instance = ?", instance).
		Delete(&lockRow{})
	if result.Error != nil {
		return fmt.Errorf("lock sweep failed: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		s.logger.Info("released stale instance locks",
			zap.String("instance", instance),
			zap.Int64("count", result.RowsAffected),
		)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
