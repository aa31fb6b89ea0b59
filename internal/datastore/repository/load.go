package repository

import (
	"context"
	"time"

	"github.com/evanhu96/load-management-app/internal/datastore/entities"
)

// LoadRepository handles load persistence and queries.
type LoadRepository interface {
	// Insert creates a new load, failing with errors.ErrConflict when the
	// hash already exists.
	Insert(ctx context.Context, load *entities.Load) error
	// Upsert inserts the load or, when the hash exists, replaces its
	// mutable fields.
	Upsert(ctx context.Context, load *entities.Load) error
	GetByHash(ctx context.Context, hash string) (*entities.Load, error)
	// List returns active loads matching the filter plus the unpaginated
	// total for the same filter.
	List(ctx context.Context, filter LoadFilter) ([]entities.Load, int64, error)
	// Update replaces a load's mutable fields by hash. Returns
	// errors.ErrNotFound when no active row matches.
	Update(ctx context.Context, hash string, load *entities.Load) error
	// SoftDelete marks a load inactive; Delete removes the row.
	SoftDelete(ctx context.Context, hash string) error
	Delete(ctx context.Context, hash string) error
	// Stats returns per-truck aggregates for loads created after the cutoff.
	Stats(ctx context.Context, truck int, since time.Time) ([]LoadStats, error)
}

// LoadFilter controls load listing queries. Zero values mean "no filter".
type LoadFilter struct {
	Truck       int
	Company     string
	Origin      string
	Destination string
	SortBy      string
	SortOrder   string
	Limit       int
	Offset      int
}

// LoadStats is one truck's aggregate row from Stats.
type LoadStats struct {
	Truck      int     `json:"truck"`
	TotalLoads int64   `json:"total_loads"`
	AvgRate    float64 `json:"avg_rate"`
	MinRate    float64 `json:"min_rate"`
	MaxRate    float64 `json:"max_rate"`
	AvgMiles   float64 `json:"avg_miles"`
}
