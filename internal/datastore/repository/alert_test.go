package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanhu96/load-management-app/internal/datastore/entities"
)

func testAlertRecord(hash string, truck int, status string, sentAt time.Time) *entities.AlertRecord {
	return &entities.AlertRecord{
		LoadHash:    hash,
		TruckID:     truck,
		Profit:      1820.87,
		Miles:       75,
		PhoneNumber: "+15551234567",
		Message:     "High value load alert",
		Status:      status,
		SentAt:      sentAt,
	}
}

func TestAlertRepository_SaveAndExists(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := t.Context()

	exists, err := repo.ExistsForLoad(ctx, "load-1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Save(ctx, testAlertRecord("load-1", 1, entities.AlertStatusSent, time.Now())))

	exists, err = repo.ExistsForLoad(ctx, "load-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAlertRepository_ExistsCountsFailedAttempts(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := t.Context()

	require.NoError(t, repo.Save(ctx, testAlertRecord("load-2", 1, entities.AlertStatusFailed, time.Now())))

	exists, err := repo.ExistsForLoad(ctx, "load-2")
	require.NoError(t, err)
	assert.True(t, exists, "failed attempts still consume the single alert slot")
}

func TestAlertRepository_LastForTruck(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := t.Context()

	last, err := repo.LastForTruck(ctx, 1)
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	older := time.Now().Add(-2 * time.Hour).Truncate(time.Second)
	newer := time.Now().Add(-10 * time.Minute).Truncate(time.Second)
	require.NoError(t, repo.Save(ctx, testAlertRecord("l-old", 1, entities.AlertStatusSent, older)))
	require.NoError(t, repo.Save(ctx, testAlertRecord("l-new", 1, entities.AlertStatusSent, newer)))
	// Failed sends do not reset the cooldown clock.
	require.NoError(t, repo.Save(ctx, testAlertRecord("l-fail", 1, entities.AlertStatusFailed, time.Now())))

	last, err = repo.LastForTruck(ctx, 1)
	require.NoError(t, err)
	assert.WithinDuration(t, newer, last, time.Second)
}

func TestAlertRepository_ListFilters(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := t.Context()

	now := time.Now()
	require.NoError(t, repo.Save(ctx, testAlertRecord("a", 1, entities.AlertStatusSent, now.Add(-time.Hour))))
	require.NoError(t, repo.Save(ctx, testAlertRecord("b", 2, entities.AlertStatusSent, now.Add(-30*time.Minute))))
	require.NoError(t, repo.Save(ctx, testAlertRecord("c", 1, entities.AlertStatusFailed, now)))

	records, total, err := repo.List(ctx, AlertFilter{TruckID: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, records, 2)
	assert.Equal(t, "c", records[0].LoadHash, "newest first")

	records, total, err = repo.List(ctx, AlertFilter{Status: entities.AlertStatusFailed})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "c", records[0].LoadHash)

	records, total, err = repo.List(ctx, AlertFilter{Since: now.Add(-45 * time.Minute)})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, records, 2)
}

func TestAlertRepository_Summary(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := t.Context()

	now := time.Now()
	require.NoError(t, repo.Save(ctx, testAlertRecord("a", 1, entities.AlertStatusSent, now)))
	require.NoError(t, repo.Save(ctx, testAlertRecord("b", 1, entities.AlertStatusFailed, now)))

	summaries, err := repo.Summary(ctx, "daily", now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.EqualValues(t, 2, summaries[0].TotalAlerts)
	assert.EqualValues(t, 1, summaries[0].SentAlerts)
	assert.InDelta(t, 1820.87, summaries[0].AvgProfit, 0.001)
}

func TestAlertRepository_DeleteOlderThan(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := t.Context()

	now := time.Now()
	require.NoError(t, repo.Save(ctx, testAlertRecord("old", 1, entities.AlertStatusSent, now.Add(-48*time.Hour))))
	require.NoError(t, repo.Save(ctx, testAlertRecord("new", 1, entities.AlertStatusSent, now)))

	removed, err := repo.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	_, total, err := repo.List(ctx, AlertFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}
