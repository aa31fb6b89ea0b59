package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/evanhu96/load-management-app/internal/datastore/entities"
	"github.com/evanhu96/load-management-app/internal/errors"
)

// AlertFilter narrows alert history queries.
type AlertFilter struct {
	TruckID int
	Status  string
	Since   time.Time
	Limit   int
	Offset  int
}

// AlertSummary is a per-bucket aggregate of alert history.
type AlertSummary struct {
	Period      string  `json:"period"`
	TotalAlerts int64   `json:"totalAlerts"`
	SentAlerts  int64   `json:"sentAlerts"`
	AvgProfit   float64 `json:"avgProfit"`
	MaxProfit   float64 `json:"maxProfit"`
}

// AlertRepository persists the at-most-once alert dedup log.
type AlertRepository interface {
	// Save records a delivered, failed, or logged alert.
	Save(ctx context.Context, record *entities.AlertRecord) error

	// ExistsForLoad reports whether any alert was already recorded for
	// the load hash. Part of the dedup pre-check.
	ExistsForLoad(ctx context.Context, loadHash string) (bool, error)

	// LastForTruck returns the send time of the most recent alert for a
	// truck, or the zero time when none exists.
	LastForTruck(ctx context.Context, truckID int) (time.Time, error)

	// List returns alert history newest first.
	List(ctx context.Context, filter AlertFilter) ([]entities.AlertRecord, int64, error)

	// Summary aggregates alert history into daily, weekly, or monthly
	// buckets.
	Summary(ctx context.Context, period string, since time.Time) ([]AlertSummary, error)

	// Delete removes one alert record, or returns ErrNotFound.
	Delete(ctx context.Context, id uint) error

	// DeleteOlderThan purges alert records sent before the cutoff and
	// returns the number removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates an AlertRepository backed by GORM.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

func (r *alertRepository) Save(ctx context.Context, record *entities.AlertRecord) error {
	if record.SentAt.IsZero() {
		record.SentAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return translateError(fmt.Errorf("failed to save alert record for %s: %w", record.LoadHash, err))
	}
	return nil
}

func (r *alertRepository) ExistsForLoad(ctx context.Context, loadHash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.AlertRecord{}).
		Where("load_hash = ?", loadHash).
		Count(&count).Error
	if err != nil {
		return false, translateError(fmt.Errorf("failed to check alert history for %s: %w", loadHash, err))
	}
	return count > 0, nil
}

func (r *alertRepository) LastForTruck(ctx context.Context, truckID int) (time.Time, error) {
	var record entities.AlertRecord
	err := r.db.WithContext(ctx).
		Where("truck_id = ? AND status = ?", truckID, entities.AlertStatusSent).
		Order("sent_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, translateError(fmt.Errorf("failed to get last alert for truck %d: %w", truckID, err))
	}
	return record.SentAt, nil
}

func (r *alertRepository) List(ctx context.Context, filter AlertFilter) ([]entities.AlertRecord, int64, error) {
	base := r.db.WithContext(ctx).Model(&entities.AlertRecord{})
	if filter.TruckID > 0 {
		base = base.Where("truck_id = ?", filter.TruckID)
	}
	if filter.Status != "" {
		base = base.Where("status = ?", filter.Status)
	}
	if !filter.Since.IsZero() {
		base = base.Where("sent_at >= ?", filter.Since)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, translateError(fmt.Errorf("failed to count alert records: %w", err))
	}

	query := base.Session(&gorm.Session{}).Order("sent_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var records []entities.AlertRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, 0, translateError(fmt.Errorf("failed to list alert records: %w", err))
	}
	return records, total, nil
}

func (r *alertRepository) Summary(ctx context.Context, period string, since time.Time) ([]AlertSummary, error) {
	var bucket string
	switch period {
	case "weekly":
		bucket = "strftime('%Y-W%W', sent_at)"
	case "monthly":
		bucket = "strftime('%Y-%m', sent_at)"
	default:
		bucket = "strftime('%Y-%m-%d', sent_at)"
	}

	var summaries []AlertSummary
	err := r.db.WithContext(ctx).Model(&entities.AlertRecord{}).
		Select(bucket + " AS period, COUNT(*) AS total_alerts, SUM(CASE WHEN status = 'sent' THEN 1 ELSE 0 END) AS sent_alerts, AVG(profit) AS avg_profit, MAX(profit) AS max_profit").
		Where("sent_at >= ?", since).
		Group("period").
		Order("period DESC").
		Scan(&summaries).Error
	if err != nil {
		return nil, translateError(fmt.Errorf("failed to summarize alert history: %w", err))
	}
	return summaries, nil
}

func (r *alertRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.AlertRecord{}, id)
	if result.Error != nil {
		return translateError(fmt.Errorf("failed to delete alert %d: %w", id, result.Error))
	}
	if result.RowsAffected == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (r *alertRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("sent_at < ?", cutoff).Delete(&entities.AlertRecord{})
	if result.Error != nil {
		return 0, translateError(fmt.Errorf("failed to purge alert records: %w", result.Error))
	}
	return result.RowsAffected, nil
}
