// Package ingest is the write path for loads. It validates and normalizes
// boundary input, persists through the load repository, hands successful
// writes to the alert engine asynchronously, and broadcasts the
// authoritative change to connected clients.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/evanhu96/load-management-app/internal/alerting"
	"github.com/evanhu96/load-management-app/internal/datastore/entities"
	"github.com/evanhu96/load-management-app/internal/datastore/repository"
	"github.com/evanhu96/load-management-app/internal/errors"
	"github.com/evanhu96/load-management-app/internal/hub"
	"github.com/evanhu96/load-management-app/internal/logger"
	"github.com/evanhu96/load-management-app/internal/profit"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
	// MaxBulkLoads caps a single bulk import request.
	MaxBulkLoads = 1000
)

// Broadcaster pushes events to connected clients.
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// ListParams are the query options for ListLoads.
type ListParams struct {
	Truck       int
	Company     string
	Origin      string
	Destination string
	SortBy      string
	SortOrder   string
	Limit       int
	Offset      int

	// Post-query filters. When either is set, pagination totals degrade,
	// see ListResult.HasMore.
	MinProfit *float64
	MaxMiles  *int
}

// Pagination describes the window of an unfiltered list response.
type Pagination struct {
	Limit       int   `json:"limit"`
	Offset      int   `json:"offset"`
	Total       int64 `json:"total"`
	Pages       int64 `json:"pages"`
	CurrentPage int64 `json:"currentPage"`
}

// ListResult is the ListLoads response. When a post-query profit or mileage
// filter is active, Total counts only the filtered page and HasMore is
// always false because the filter runs after pagination.
type ListResult struct {
	Loads      []entities.Load `json:"loads"`
	Total      int64           `json:"total"`
	HasMore    bool            `json:"hasMore"`
	Pagination *Pagination     `json:"pagination,omitempty"`
}

// BulkError reports one failed entry of a bulk import.
type BulkError struct {
	Index int    `json:"index"`
	Hash  string `json:"hash"`
	Error string `json:"error"`
}

// BulkResult summarizes a bulk import.
type BulkResult struct {
	Message      string      `json:"message"`
	SuccessCount int         `json:"successCount"`
	ErrorCount   int         `json:"errorCount"`
	Errors       []BulkError `json:"errors,omitempty"`
}

// StatsResult is the loads stats summary response.
type StatsResult struct {
	TimeRange   string       `json:"timeRange"`
	Stats       []TruckStats `json:"stats"`
	GeneratedAt time.Time    `json:"generatedAt"`
}

// TruckStats is one truck's aggregate row enriched with derived
// profitability figures computed from the truck's cost profile.
type TruckStats struct {
	repository.LoadStats
	AvgRevenuePerMile float64 `json:"avgRevenuePerMile"`
	AvgProfit         float64 `json:"avgProfit"`
}

var statsRanges = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// Service coordinates load persistence, alerting, and fan-out.
type Service struct {
	loads       repository.LoadRepository
	trucks      repository.TruckConfigRepository
	alertBus    *alerting.EventBus
	broadcaster Broadcaster
	log         logger.Logger
}

// NewService creates an ingestion service.
func NewService(
	loads repository.LoadRepository,
	trucks repository.TruckConfigRepository,
	alertBus *alerting.EventBus,
	broadcaster Broadcaster,
	log logger.Logger,
) *Service {
	return &Service{
		loads:       loads,
		trucks:      trucks,
		alertBus:    alertBus,
		broadcaster: broadcaster,
		log:         log,
	}
}

// AddLoad upserts a load by hash. Re-submitting the same hash replaces the
// stored values, so collectors can re-send files safely. On success the
// load is queued for alert evaluation and broadcast as a load_update.
func (s *Service) AddLoad(ctx context.Context, input *LoadInput) (*entities.Load, error) {
	if errs := input.Validate(); len(errs) > 0 {
		return nil, errors.NewValidation("Invalid load data", errs...)
	}

	load := input.ToEntity("manual")
	if err := s.loads.Upsert(ctx, load); err != nil {
		return nil, fmt.Errorf("failed to add load: %w", err)
	}

	s.log.Info("load added",
		logger.String("hash", load.Hash),
		logger.Int("truck", load.Truck))

	s.alertBus.Publish(&alerting.LoadEvent{Load: load})
	s.broadcaster.Broadcast(hub.EventLoadUpdate, load)
	return load, nil
}

// InsertLoad is the strict-insert variant used by POST /api/loads: a
// duplicate hash is a conflict rather than a replace.
func (s *Service) InsertLoad(ctx context.Context, input *LoadInput) (*entities.Load, error) {
	if errs := input.Validate(); len(errs) > 0 {
		return nil, errors.NewValidation("Invalid load data", errs...)
	}

	load := input.ToEntity("manual")
	if err := s.loads.Insert(ctx, load); err != nil {
		if errors.Is(err, errors.ErrConflict) {
			return nil, errors.ErrConflict
		}
		return nil, fmt.Errorf("failed to insert load: %w", err)
	}

	s.log.Info("load added",
		logger.String("hash", load.Hash),
		logger.Int("truck", load.Truck))

	s.alertBus.Publish(&alerting.LoadEvent{Load: load})
	s.broadcaster.Broadcast(hub.EventLoadUpdate, load)
	return load, nil
}

// BulkImport upserts up to MaxBulkLoads loads, capturing every per-item
// failure without aborting the batch. One loads_bulk_update broadcast
// follows, and each successful load is queued for alert evaluation
// independently so one alert failure cannot suppress the rest.
func (s *Service) BulkImport(ctx context.Context, inputs []*LoadInput) (*BulkResult, error) {
	if len(inputs) == 0 {
		return nil, errors.NewValidation("Loads array cannot be empty")
	}
	if len(inputs) > MaxBulkLoads {
		return nil, errors.NewValidation(fmt.Sprintf("Cannot import more than %d loads at once", MaxBulkLoads))
	}

	result := &BulkResult{}
	imported := make([]entities.Load, 0, len(inputs))

	for i, input := range inputs {
		if errs := input.Validate(); len(errs) > 0 {
			result.ErrorCount++
			result.Errors = append(result.Errors, BulkError{
				Index: i,
				Hash:  input.Hash,
				Error: fmt.Sprintf("%v", errs),
			})
			continue
		}

		load := input.ToEntity("bulk_import")
		if err := s.loads.Upsert(ctx, load); err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, BulkError{
				Index: i,
				Hash:  input.Hash,
				Error: err.Error(),
			})
			s.log.Warn("error importing individual load",
				logger.String("hash", input.Hash),
				logger.Error(err))
			continue
		}

		result.SuccessCount++
		imported = append(imported, *load)
	}

	result.Message = fmt.Sprintf("Bulk import completed: %d successful, %d errors",
		result.SuccessCount, result.ErrorCount)
	s.log.Info("bulk import completed",
		logger.Int("total", len(inputs)),
		logger.Int("success", result.SuccessCount),
		logger.Int("errors", result.ErrorCount))

	if len(imported) > 0 {
		s.broadcaster.Broadcast(hub.EventLoadsBulkUpdate, imported)
		for i := range imported {
			s.alertBus.Publish(&alerting.LoadEvent{Load: &imported[i]})
		}
	}
	return result, nil
}

// UpdateLoad replaces the mutable fields of an existing active load.
func (s *Service) UpdateLoad(ctx context.Context, hash string, input *LoadInput) (*entities.Load, error) {
	if input.Hash == "" {
		input.Hash = hash
	}
	if errs := input.Validate(); len(errs) > 0 {
		return nil, errors.NewValidation("Invalid load data", errs...)
	}

	load := input.ToEntity("manual")
	if err := s.loads.Update(ctx, hash, load); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update load: %w", err)
	}

	updated, err := s.loads.GetByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to reload updated load: %w", err)
	}

	s.log.Info("load updated", logger.String("hash", hash))
	s.broadcaster.Broadcast(hub.EventLoadUpdate, updated)
	return updated, nil
}

// DeleteLoad removes a load, softly by default. Permanent deletion drops
// the row outright, including inactive rows.
func (s *Service) DeleteLoad(ctx context.Context, hash string, permanent bool) error {
	var err error
	if permanent {
		err = s.loads.Delete(ctx, hash)
	} else {
		err = s.loads.SoftDelete(ctx, hash)
	}
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return errors.ErrNotFound
		}
		return fmt.Errorf("failed to delete load: %w", err)
	}

	s.log.Info("load deleted",
		logger.String("hash", hash),
		logger.Bool("permanent", permanent))
	s.broadcaster.Broadcast(hub.EventLoadDeleted, map[string]any{
		"hash":      hash,
		"permanent": permanent,
	})
	return nil
}

// GetLoad returns one active load by hash.
func (s *Service) GetLoad(ctx context.Context, hash string) (*entities.Load, error) {
	return s.loads.GetByHash(ctx, hash)
}

// ListLoads queries active loads. When MinProfit or MaxMiles is set, the
// filter is applied to the already-paginated page: totals then reflect the
// filtered page only and HasMore is reported false. That limitation is part
// of the API contract.
func (s *Service) ListLoads(ctx context.Context, params ListParams) (*ListResult, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	loads, total, err := s.loads.List(ctx, repository.LoadFilter{
		Truck:       params.Truck,
		Company:     params.Company,
		Origin:      params.Origin,
		Destination: params.Destination,
		SortBy:      params.SortBy,
		SortOrder:   params.SortOrder,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list loads: %w", err)
	}

	if params.MinProfit != nil || params.MaxMiles != nil {
		filtered, err := s.applyProfitFilter(ctx, loads, params)
		if err != nil {
			return nil, err
		}
		return &ListResult{
			Loads:   filtered,
			Total:   int64(len(filtered)),
			HasMore: false,
		}, nil
	}

	pages := (total + int64(limit) - 1) / int64(limit)
	return &ListResult{
		Loads:   loads,
		Total:   total,
		HasMore: int64(offset)+int64(len(loads)) < total,
		Pagination: &Pagination{
			Limit:       limit,
			Offset:      offset,
			Total:       total,
			Pages:       pages,
			CurrentPage: int64(offset/limit) + 1,
		},
	}, nil
}

func (s *Service) applyProfitFilter(ctx context.Context, loads []entities.Load, params ListParams) ([]entities.Load, error) {
	configs := make(map[int]*entities.TruckConfig, 2)
	for _, id := range []int{1, 2} {
		cfg, err := s.trucks.Get(ctx, id)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load truck config for filter: %w", err)
		}
		configs[id] = cfg
	}

	filtered := make([]entities.Load, 0, len(loads))
	for i := range loads {
		cfg, ok := configs[loads[i].Truck]
		if !ok {
			filtered = append(filtered, loads[i])
			continue
		}
		metrics := profit.Compute(&loads[i], cfg)
		if params.MinProfit != nil && metrics.Profit < *params.MinProfit {
			continue
		}
		if params.MaxMiles != nil && metrics.Miles > *params.MaxMiles {
			continue
		}
		filtered = append(filtered, loads[i])
	}
	return filtered, nil
}

// Stats aggregates load figures per truck over a time range, defaulting to
// the last 24 hours when the range is unrecognized.
func (s *Service) Stats(ctx context.Context, truck int, timeRange string) (*StatsResult, error) {
	window, ok := statsRanges[timeRange]
	if !ok {
		timeRange = "24h"
		window = statsRanges[timeRange]
	}

	rows, err := s.loads.Stats(ctx, truck, time.Now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate load stats: %w", err)
	}

	stats := make([]TruckStats, 0, len(rows))
	for _, row := range rows {
		enriched := TruckStats{LoadStats: row}
		if cfg, err := s.trucks.Get(ctx, row.Truck); err == nil {
			avgLoad := &entities.Load{
				Rate: row.AvgRate,
				DHO:  int(row.AvgMiles),
			}
			enriched.AvgProfit = profit.Compute(avgLoad, cfg).Profit
		}
		if row.AvgMiles > 0 {
			enriched.AvgRevenuePerMile = profit.Round2(row.AvgRate / row.AvgMiles)
		}
		stats = append(stats, enriched)
	}

	return &StatsResult{
		TimeRange:   timeRange,
		Stats:       stats,
		GeneratedAt: time.Now(),
	}, nil
}
