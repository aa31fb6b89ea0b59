package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/evanhu96/load-management-app/internal/datastore/entities"
	"github.com/evanhu96/load-management-app/internal/errors"
)

// SettingsRepository stores key/value system settings. Keys outside the
// allow-list are rejected before they reach this layer.
type SettingsRepository interface {
	// GetAll returns the stored settings merged over the defaults, so
	// every known key is always present.
	GetAll(ctx context.Context) (map[string]string, error)

	// Get returns a single setting value, falling back to its default.
	Get(ctx context.Context, key string) (string, error)

	// UpsertMany writes the given settings in one transaction.
	UpsertMany(ctx context.Context, values map[string]string) error
}

type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository creates a SettingsRepository backed by GORM.
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) GetAll(ctx context.Context) (map[string]string, error) {
	var rows []entities.SystemSetting
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, translateError(fmt.Errorf("failed to load settings: %w", err))
	}

	merged := entities.DefaultSystemSettings()
	for _, row := range rows {
		merged[row.Key] = row.Value
	}
	return merged, nil
}

func (r *settingsRepository) Get(ctx context.Context, key string) (string, error) {
	var row entities.SystemSetting
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if err == nil {
		return row.Value, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.DefaultSystemSettings()[key], nil
	}
	return "", translateError(fmt.Errorf("failed to get setting %s: %w", key, err))
}

func (r *settingsRepository) UpsertMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			setting := entities.SystemSetting{Key: key, Value: value}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&setting).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return translateError(fmt.Errorf("failed to update settings: %w", err))
	}
	return nil
}
