package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/evanhu96/load-management-app/internal/datastore/entities"
	"github.com/evanhu96/load-management-app/internal/errors"
)

// loadSortFields is the allow-list of sortable columns. Anything else falls
// back to created_at.
var loadSortFields = map[string]bool{
	"created_at":  true,
	"updated_at":  true,
	"rate":        true,
	"origin":      true,
	"destination": true,
	"company":     true,
	"truck":       true,
}

// loadUpsertColumns are the fields replaced when an existing hash is
// re-submitted.
var loadUpsertColumns = []string{
	"rate", "origin", "destination", "dates", "company", "contact", "trip",
	"age", "dho", "dhd", "truck", "website", "equipment", "click_details",
	"source", "active", "updated_at",
}

type loadRepository struct {
	db *gorm.DB
}

// NewLoadRepository creates a LoadRepository backed by GORM.
func NewLoadRepository(db *gorm.DB) LoadRepository {
	return &loadRepository{db: db}
}

func (r *loadRepository) Insert(ctx context.Context, load *entities.Load) error {
	if err := r.db.WithContext(ctx).Create(load).Error; err != nil {
		return translateError(fmt.Errorf("failed to insert load %s: %w", load.Hash, err))
	}
	return nil
}

func (r *loadRepository) Upsert(ctx context.Context, load *entities.Load) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "hash"}},
		DoUpdates: clause.AssignmentColumns(loadUpsertColumns),
	}).Create(load).Error
	if err != nil {
		return translateError(fmt.Errorf("failed to upsert load %s: %w", load.Hash, err))
	}
	return nil
}

func (r *loadRepository) GetByHash(ctx context.Context, hash string) (*entities.Load, error) {
	var load entities.Load
	err := r.db.WithContext(ctx).Where("hash = ? AND active = ?", hash, true).First(&load).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrNotFound
		}
		return nil, translateError(fmt.Errorf("failed to get load %s: %w", hash, err))
	}
	return &load, nil
}

func (r *loadRepository) List(ctx context.Context, filter LoadFilter) ([]entities.Load, int64, error) {
	base := r.db.WithContext(ctx).Model(&entities.Load{}).Where("active = ?", true)
	base = applyLoadFilter(base, filter)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, translateError(fmt.Errorf("failed to count loads: %w", err))
	}

	query := base.Session(&gorm.Session{}).Order(orderClause(filter))
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var loads []entities.Load
	if err := query.Find(&loads).Error; err != nil {
		return nil, 0, translateError(fmt.Errorf("failed to list loads: %w", err))
	}
	return loads, total, nil
}

func (r *loadRepository) Update(ctx context.Context, hash string, load *entities.Load) error {
	updates := map[string]any{
		"rate":          load.Rate,
		"origin":        load.Origin,
		"destination":   load.Destination,
		"dates":         load.Dates,
		"company":       load.Company,
		"contact":       load.Contact,
		"trip":          load.Trip,
		"age":           load.Age,
		"dho":           load.DHO,
		"dhd":           load.DHD,
		"truck":         load.Truck,
		"website":       load.Website,
		"equipment":     load.Equipment,
		"click_details": load.ClickDetails,
	}
	result := r.db.WithContext(ctx).Model(&entities.Load{}).
		Where("hash = ? AND active = ?", hash, true).
		Updates(updates)
	if result.Error != nil {
		return translateError(fmt.Errorf("failed to update load %s: %w", hash, result.Error))
	}
	if result.RowsAffected == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (r *loadRepository) SoftDelete(ctx context.Context, hash string) error {
	result := r.db.WithContext(ctx).Model(&entities.Load{}).
		Where("hash = ? AND active = ?", hash, true).
		Update("active", false)
	if result.Error != nil {
		return translateError(fmt.Errorf("failed to soft-delete load %s: %w", hash, result.Error))
	}
	if result.RowsAffected == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (r *loadRepository) Delete(ctx context.Context, hash string) error {
	result := r.db.WithContext(ctx).Where("hash = ?", hash).Delete(&entities.Load{})
	if result.Error != nil {
		return translateError(fmt.Errorf("failed to delete load %s: %w", hash, result.Error))
	}
	if result.RowsAffected == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (r *loadRepository) Stats(ctx context.Context, truck int, since time.Time) ([]LoadStats, error) {
	query := r.db.WithContext(ctx).Model(&entities.Load{}).
		Select("truck, COUNT(*) AS total_loads, AVG(rate) AS avg_rate, MIN(rate) AS min_rate, MAX(rate) AS max_rate, AVG(dho + dhd) AS avg_miles").
		Where("active = ? AND created_at >= ?", true, since).
		Group("truck").
		Order("truck ASC")
	if truck > 0 {
		query = query.Where("truck = ?", truck)
	}

	var stats []LoadStats
	if err := query.Scan(&stats).Error; err != nil {
		return nil, translateError(fmt.Errorf("failed to aggregate load stats: %w", err))
	}
	return stats, nil
}

func applyLoadFilter(query *gorm.DB, filter LoadFilter) *gorm.DB {
	if filter.Truck > 0 {
		query = query.Where("truck = ?", filter.Truck)
	}
	if filter.Company != "" {
		query = query.Where("company LIKE ?", "%"+filter.Company+"%")
	}
	if filter.Origin != "" {
		query = query.Where("origin LIKE ?", "%"+filter.Origin+"%")
	}
	if filter.Destination != "" {
		query = query.Where("destination LIKE ?", "%"+filter.Destination+"%")
	}
	return query
}

func orderClause(filter LoadFilter) string {
	field := filter.SortBy
	if !loadSortFields[field] {
		field = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		order = "ASC"
	}
	return field + " " + order
}
