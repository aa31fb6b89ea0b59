package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/evanhu96/load-management-app/internal/datastore/entities"
	"github.com/evanhu96/load-management-app/internal/errors"
)

// setupTestDB creates an in-memory SQLite database for repository tests.
// Uses shared-cache mode with a single connection to ensure all operations
// see the same in-memory database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_foreign_keys=ON"), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	require.NoError(t, err, "failed to open in-memory database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "failed to get sql.DB")
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&entities.Load{},
		&entities.TruckConfig{},
		&entities.AlertRecord{},
		&entities.SystemSetting{},
		&entities.DispatchInput{},
	)
	require.NoError(t, err, "failed to migrate tables")
	return db
}

func testLoad(hash string, truck int, rate float64) *entities.Load {
	return &entities.Load{
		Hash:        hash,
		Rate:        rate,
		Origin:      "Dallas, TX",
		Destination: "Atlanta, GA",
		Company:     "Acme Freight",
		Trip:        "780",
		DHO:         25,
		DHD:         50,
		Truck:       truck,
		Equipment:   "V",
		Source:      "dat_one",
		Active:      true,
	}
}

func TestLoadRepository_InsertAndGet(t *testing.T) {
	repo := NewLoadRepository(setupTestDB(t))
	ctx := t.Context()

	load := testLoad("hash-1", 1, 2400)
	require.NoError(t, repo.Insert(ctx, load))
	assert.NotZero(t, load.ID)

	got, err := repo.GetByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "Dallas, TX", got.Origin)
	assert.InDelta(t, 2400, got.Rate, 0.001)
	assert.True(t, got.Active)
}

func TestLoadRepository_InsertDuplicateHashConflicts(t *testing.T) {
	repo := NewLoadRepository(setupTestDB(t))
	ctx := t.Context()

	require.NoError(t, repo.Insert(ctx, testLoad("dup", 1, 2400)))
	err := repo.Insert(ctx, testLoad("dup", 1, 2500))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConflict)
}

func TestLoadRepository_UpsertReplacesExisting(t *testing.T) {
	repo := NewLoadRepository(setupTestDB(t))
	ctx := t.Context()

	require.NoError(t, repo.Insert(ctx, testLoad("up-1", 1, 2400)))

	updated := testLoad("up-1", 2, 3100)
	updated.Company = "Beta Logistics"
	require.NoError(t, repo.Upsert(ctx, updated))

	got, err := repo.GetByHash(ctx, "up-1")
	require.NoError(t, err)
	assert.InDelta(t, 3100, got.Rate, 0.001)
	assert.Equal(t, 2, got.Truck)
	assert.Equal(t, "Beta Logistics", got.Company)
}

func TestLoadRepository_GetByHashNotFound(t *testing.T) {
	repo := NewLoadRepository(setupTestDB(t))

	_, err := repo.GetByHash(t.Context(), "missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestLoadRepository_ListFiltersAndPaginates(t *testing.T) {
	repo := NewLoadRepository(setupTestDB(t))
	ctx := t.Context()

	require.NoError(t, repo.Insert(ctx, testLoad("a", 1, 1000)))
	require.NoError(t, repo.Insert(ctx, testLoad("b", 1, 2000)))
	require.NoError(t, repo.Insert(ctx, testLoad("c", 2, 3000)))

	loads, total, err := repo.List(ctx, LoadFilter{Truck: 1, SortBy: "rate", SortOrder: "asc"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, loads, 2)
	assert.Equal(t, "a", loads[0].Hash)
	assert.Equal(t, "b", loads[1].Hash)

	loads, total, err = repo.List(ctx, LoadFilter{Limit: 2, SortBy: "rate", SortOrder: "desc"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, loads, 2)
	assert.Equal(t, "c", loads[0].Hash)
}

func TestLoadRepository_ListCompanySubstring(t *testing.T) {
	repo := NewLoadRepository(setupTestDB(t))
	ctx := t.Context()

	first := testLoad("x", 1, 1000)
	first.Company = "Premier Carriers"
	second := testLoad("y", 1, 1500)
	require.NoError(t, repo.Insert(ctx, first))
	require.NoError(t, repo.Insert(ctx, second))

	loads, total, err := repo.List(ctx, LoadFilter{Company: "premier"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, loads, 1)
	assert.Equal(t, "x", loads[0].Hash)
}

func TestLoadRepository_UpdateMissingLoad(t *testing.T) {
	repo := NewLoadRepository(setupTestDB(t))

	err := repo.Update(t.Context(), "absent", testLoad("absent", 1, 900))
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestLoadRepository_SoftDeleteHidesFromQueries(t *testing.T) {
	repo := NewLoadRepository(setupTestDB(t))
	ctx := t.Context()

	require.NoError(t, repo.Insert(ctx, testLoad("soft", 1, 2400)))
	require.NoError(t, repo.SoftDelete(ctx, "soft"))

	_, err := repo.GetByHash(ctx, "soft")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, total, err := repo.List(ctx, LoadFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)

	// Second soft delete reports not found since the row is inactive.
	assert.ErrorIs(t, repo.SoftDelete(ctx, "soft"), errors.ErrNotFound)

	// Permanent delete still reaches the inactive row.
	require.NoError(t, repo.Delete(ctx, "soft"))
	assert.ErrorIs(t, repo.Delete(ctx, "soft"), errors.ErrNotFound)
}

func TestLoadRepository_StatsGroupsByTruck(t *testing.T) {
	repo := NewLoadRepository(setupTestDB(t))
	ctx := t.Context()

	require.NoError(t, repo.Insert(ctx, testLoad("s1", 1, 1000)))
	require.NoError(t, repo.Insert(ctx, testLoad("s2", 1, 3000)))
	require.NoError(t, repo.Insert(ctx, testLoad("s3", 2, 2000)))

	stats, err := repo.Stats(ctx, 0, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, 1, stats[0].Truck)
	assert.EqualValues(t, 2, stats[0].TotalLoads)
	assert.InDelta(t, 2000, stats[0].AvgRate, 0.001)
	assert.InDelta(t, 1000, stats[0].MinRate, 0.001)
	assert.InDelta(t, 3000, stats[0].MaxRate, 0.001)
	assert.InDelta(t, 75, stats[0].AvgMiles, 0.001)

	stats, err = repo.Stats(ctx, 2, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].Truck)
}
