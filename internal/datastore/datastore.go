// Package datastore owns the SQLite database used by the load management
// server. It opens the database, runs migrations, and hands out the
// repository implementations.
package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/evanhu96/load-management-app/internal/datastore/entities"
	"github.com/evanhu96/load-management-app/internal/datastore/repository"
	"github.com/evanhu96/load-management-app/internal/logger"
)

// Store bundles the open database handle and its repositories.
type Store struct {
	db *gorm.DB

	Loads          repository.LoadRepository
	TruckConfigs   repository.TruckConfigRepository
	Alerts         repository.AlertRepository
	Settings       repository.SettingsRepository
	DispatchInputs repository.DispatchInputRepository
}

// Open opens (creating if needed) the SQLite database at path, runs
// migrations, and seeds default truck configs 1 and 2. WAL mode keeps
// collector writes from blocking dashboard reads.
func Open(path string, log logger.Logger) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// SQLite allows a single writer. Serializing through one connection
	// avoids SQLITE_BUSY under concurrent bulk imports.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&entities.Load{},
		&entities.TruckConfig{},
		&entities.AlertRecord{},
		&entities.SystemSetting{},
		&entities.DispatchInput{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	store := &Store{
		db:             db,
		Loads:          repository.NewLoadRepository(db),
		TruckConfigs:   repository.NewTruckConfigRepository(db),
		Alerts:         repository.NewAlertRepository(db),
		Settings:       repository.NewSettingsRepository(db),
		DispatchInputs: repository.NewDispatchInputRepository(db),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.TruckConfigs.SeedDefaults(ctx, 1, 2); err != nil {
		return nil, fmt.Errorf("failed to seed truck configs: %w", err)
	}

	log.Info("database ready",
		logger.String("path", path),
	)
	return store, nil
}

// DB exposes the underlying handle for callers that need raw access,
// such as test setup.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
