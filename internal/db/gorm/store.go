// Package gorm provides the PostgreSQL key-value backend built on GORM.
package gorm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store represents the GORM database connection.
type Store struct {
	DB    *gorm.DB
	sqlDB *sql.DB
}

// Config holds database configuration.
type Config struct {
	DSN      string          // PostgreSQL connection string
	MaxConns int             // Maximum number of open connections (default: 4)
	LogLevel logger.LogLevel // GORM log level (logger.Silent for production)
}

// NewStore connects to PostgreSQL and runs migrations.
func NewStore(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres DSN not configured")
	}
	logLevel := cfg.LogLevel
	if logLevel == 0 {
		logLevel = logger.Silent
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:      logger.Default.LogMode(logLevel),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", describeError(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", describeError(err))
	}

	if err := runMigrations(db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	log.Debug().Int("maxConns", maxConns).Msg("PostgreSQL store opened")
	return &Store{DB: db, sqlDB: sqlDB}, nil
}

// Load returns the value stored under key.
func (s *Store) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var entry KVEntry
	err := s.DB.WithContext(ctx).Where("key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", key, describeError(err))
	}
	return entry.Value, true, nil
}

// Save upserts value under key.
func (s *Store) Save(ctx context.Context, key string, value []byte) error {
	entry := KVEntry{Key: key, Value: value}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at_epoch"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("save %s: %w", key, describeError(err))
	}
	return nil
}

// Remove deletes key. Missing keys are not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	err := s.DB.WithContext(ctx).Where("key = ?", key).Delete(&KVEntry{}).Error
	if err != nil {
		return fmt.Errorf("remove %s: %w", key, describeError(err))
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping() error {
	return s.sqlDB.Ping()
}

// GetDB returns the GORM DB instance for standard queries.
func (s *Store) GetDB() *gorm.DB {
	return s.DB
}
