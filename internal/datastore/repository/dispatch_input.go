package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/evanhu96/load-management-app/internal/datastore/entities"
	"github.com/evanhu96/load-management-app/internal/errors"
)

// DispatchInputRepository stores manual lane entries submitted by
// dispatchers for later profitability review.
type DispatchInputRepository interface {
	Insert(ctx context.Context, input *entities.DispatchInput) error
	List(ctx context.Context, limit int) ([]entities.DispatchInput, error)
	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context) (int64, error)
}

type dispatchInputRepository struct {
	db *gorm.DB
}

// NewDispatchInputRepository creates a DispatchInputRepository backed by GORM.
func NewDispatchInputRepository(db *gorm.DB) DispatchInputRepository {
	return &dispatchInputRepository{db: db}
}

func (r *dispatchInputRepository) Insert(ctx context.Context, input *entities.DispatchInput) error {
	if err := r.db.WithContext(ctx).Create(input).Error; err != nil {
		return translateError(fmt.Errorf("failed to insert dispatch input: %w", err))
	}
	return nil
}

func (r *dispatchInputRepository) List(ctx context.Context, limit int) ([]entities.DispatchInput, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var inputs []entities.DispatchInput
	if err := query.Find(&inputs).Error; err != nil {
		return nil, translateError(fmt.Errorf("failed to list dispatch inputs: %w", err))
	}
	return inputs, nil
}

func (r *dispatchInputRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.DispatchInput{}, id)
	if result.Error != nil {
		return translateError(fmt.Errorf("failed to delete dispatch input: %w", result.Error))
	}
	if result.RowsAffected == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (r *dispatchInputRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.DispatchInput{}).Count(&count).Error; err != nil {
		return 0, translateError(fmt.Errorf("failed to count dispatch inputs: %w", err))
	}
	return count, nil
}
