package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/evanhu96/load-management-app/internal/datastore/entities"
	"github.com/evanhu96/load-management-app/internal/errors"
)

// TruckConfigRepository manages per-truck cost and alert parameters.
type TruckConfigRepository interface {
	// Get returns the config for a truck, or ErrNotFound.
	Get(ctx context.Context, truckID int) (*entities.TruckConfig, error)

	// GetAll returns every configured truck ordered by truck ID.
	GetAll(ctx context.Context) ([]entities.TruckConfig, error)

	// Save inserts or replaces a truck's config.
	Save(ctx context.Context, cfg *entities.TruckConfig) error

	// SeedDefaults inserts default configs for the given truck IDs,
	// leaving any existing rows untouched.
	SeedDefaults(ctx context.Context, truckIDs ...int) error
}

type truckConfigRepository struct {
	db *gorm.DB
}

// NewTruckConfigRepository creates a TruckConfigRepository backed by GORM.
func NewTruckConfigRepository(db *gorm.DB) TruckConfigRepository {
	return &truckConfigRepository{db: db}
}

func (r *truckConfigRepository) Get(ctx context.Context, truckID int) (*entities.TruckConfig, error) {
	var cfg entities.TruckConfig
	err := r.db.WithContext(ctx).Where("truck_id = ?", truckID).First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrNotFound
		}
		return nil, translateError(fmt.Errorf("failed to get truck config %d: %w", truckID, err))
	}
	return &cfg, nil
}

func (r *truckConfigRepository) GetAll(ctx context.Context) ([]entities.TruckConfig, error) {
	var configs []entities.TruckConfig
	err := r.db.WithContext(ctx).Order("truck_id ASC").Find(&configs).Error
	if err != nil {
		return nil, translateError(fmt.Errorf("failed to list truck configs: %w", err))
	}
	return configs, nil
}

func (r *truckConfigRepository) Save(ctx context.Context, cfg *entities.TruckConfig) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "truck_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"mpg", "fuel_cost_per_gallon", "cost_per_mile",
			"alert_profit_threshold", "alert_mile_threshold",
			"phone_number", "updated_at",
		}),
	}).Create(cfg).Error
	if err != nil {
		return translateError(fmt.Errorf("failed to save truck config %d: %w", cfg.TruckID, err))
	}
	return nil
}

func (r *truckConfigRepository) SeedDefaults(ctx context.Context, truckIDs ...int) error {
	for _, id := range truckIDs {
		cfg := entities.DefaultTruckConfig(id)
		err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(cfg).Error
		if err != nil {
			return translateError(fmt.Errorf("failed to seed truck config %d: %w", id, err))
		}
	}
	return nil
}
