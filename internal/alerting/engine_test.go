package alerting

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/evanhu96/load-management-app/internal/datastore/entities"
	"github.com/evanhu96/load-management-app/internal/datastore/repository"
	"github.com/evanhu96/load-management-app/internal/logger"
	"github.com/evanhu96/load-management-app/internal/notification"
)

type sentMessage struct {
	Phone   string
	Message string
}

// fakeNotifier records sends and returns a fixed status.
type fakeNotifier struct {
	mu     sync.Mutex
	sent   []sentMessage
	status string
	err    error
}

func (f *fakeNotifier) Send(_ context.Context, phone, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{Phone: phone, Message: message})
	if f.status == "" {
		return notification.StatusSent, f.err
	}
	return f.status, f.err
}

func (f *fakeNotifier) Configured() bool { return true }

func (f *fakeNotifier) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type engineFixture struct {
	engine   *Engine
	notifier *fakeNotifier
	alerts   repository.AlertRepository
	settings repository.SettingsRepository
	trucks   repository.TruckConfigRepository
}

func setupEngine(t *testing.T) *engineFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_foreign_keys=ON"), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&entities.Load{},
		&entities.TruckConfig{},
		&entities.AlertRecord{},
		&entities.SystemSetting{},
	))

	trucks := repository.NewTruckConfigRepository(db)
	require.NoError(t, trucks.SeedDefaults(t.Context(), 1, 2))

	alerts := repository.NewAlertRepository(db)
	settings := repository.NewSettingsRepository(db)
	notifier := &fakeNotifier{}
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)

	return &engineFixture{
		engine:   NewEngine(trucks, alerts, settings, notifier, "+15550000000", log),
		notifier: notifier,
		alerts:   alerts,
		settings: settings,
		trucks:   trucks,
	}
}

func enableSMS(t *testing.T, f *engineFixture) {
	t.Helper()
	require.NoError(t, f.settings.UpsertMany(t.Context(), map[string]string{
		entities.SettingSMSEnabled:           "true",
		entities.SettingAlertCooldownMinutes: "0",
	}))
}

func highProfitLoad(hash string, truck int) *entities.Load {
	return &entities.Load{
		Hash:        hash,
		Rate:        2000,
		Origin:      "Dallas, TX",
		Destination: "Atlanta, GA",
		Company:     "Acme Freight",
		Truck:       truck,
		DHO:         25,
		DHD:         50,
		Active:      true,
	}
}

func TestEngine_EvaluateSendsAndRecords(t *testing.T) {
	f := setupEngine(t)
	enableSMS(t, f)

	f.engine.Evaluate(t.Context(), highProfitLoad("alert-1", 1))

	assert.Equal(t, 1, f.notifier.sentCount())
	records, total, err := f.alerts.List(t.Context(), repository.AlertFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "alert-1", records[0].LoadHash)
	assert.Equal(t, entities.AlertStatusSent, records[0].Status)
	assert.InDelta(t, 1820.87, records[0].Profit, 0.001)
	assert.Equal(t, 75, records[0].Miles)
	assert.Equal(t, "+15550000000", records[0].PhoneNumber)
}

func TestEngine_EvaluateBelowThresholdDoesNothing(t *testing.T) {
	f := setupEngine(t)
	enableSMS(t, f)

	low := highProfitLoad("low-1", 1)
	low.Rate = 500

	f.engine.Evaluate(t.Context(), low)

	assert.Zero(t, f.notifier.sentCount())
	_, total, err := f.alerts.List(t.Context(), repository.AlertFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestEngine_EvaluateDedupsByHash(t *testing.T) {
	f := setupEngine(t)
	enableSMS(t, f)

	f.engine.Evaluate(t.Context(), highProfitLoad("dup-1", 1))
	f.engine.Evaluate(t.Context(), highProfitLoad("dup-1", 1))

	assert.Equal(t, 1, f.notifier.sentCount(), "at most one alert per load hash")
	_, total, err := f.alerts.List(t.Context(), repository.AlertFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestEngine_FailedDeliveryStillConsumesSlot(t *testing.T) {
	f := setupEngine(t)
	enableSMS(t, f)
	f.notifier.status = notification.StatusFailed

	f.engine.Evaluate(t.Context(), highProfitLoad("fail-1", 1))
	f.engine.Evaluate(t.Context(), highProfitLoad("fail-1", 1))

	assert.Equal(t, 1, f.notifier.sentCount())
	records, _, err := f.alerts.List(t.Context(), repository.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, entities.AlertStatusFailed, records[0].Status)
}

func TestEngine_SMSDisabledRecordsLogged(t *testing.T) {
	f := setupEngine(t)
	// sms_enabled defaults to false.
	require.NoError(t, f.settings.UpsertMany(t.Context(), map[string]string{
		entities.SettingAlertCooldownMinutes: "0",
	}))

	f.engine.Evaluate(t.Context(), highProfitLoad("off-1", 1))

	assert.Zero(t, f.notifier.sentCount())
	records, _, err := f.alerts.List(t.Context(), repository.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, entities.AlertStatusLogged, records[0].Status)
}

func TestEngine_CooldownSuppressesSecondAlert(t *testing.T) {
	f := setupEngine(t)
	require.NoError(t, f.settings.UpsertMany(t.Context(), map[string]string{
		entities.SettingSMSEnabled:           "true",
		entities.SettingAlertCooldownMinutes: "60",
	}))

	f.engine.Evaluate(t.Context(), highProfitLoad("cool-1", 1))
	f.engine.Evaluate(t.Context(), highProfitLoad("cool-2", 1))

	assert.Equal(t, 1, f.notifier.sentCount(), "second alert lands in cooldown")

	// A different truck is not affected by truck 1's cooldown.
	f.engine.Evaluate(t.Context(), highProfitLoad("cool-3", 2))
	assert.Equal(t, 2, f.notifier.sentCount())
}

func TestEngine_PhoneResolutionOrder(t *testing.T) {
	f := setupEngine(t)
	enableSMS(t, f)

	// Truck config number wins.
	cfg, err := f.trucks.Get(t.Context(), 1)
	require.NoError(t, err)
	cfg.PhoneNumber = "5551112222"
	require.NoError(t, f.trucks.Save(t.Context(), cfg))
	f.engine.InvalidateConfig(1)

	f.engine.Evaluate(t.Context(), highProfitLoad("phone-1", 1))
	require.Equal(t, 1, f.notifier.sentCount())
	assert.Equal(t, "+15551112222", f.notifier.sent[0].Phone)

	// Settings default is next.
	require.NoError(t, f.settings.UpsertMany(t.Context(), map[string]string{
		entities.SettingDefaultPhoneNumber: "5553334444",
	}))
	f.engine.Evaluate(t.Context(), highProfitLoad("phone-2", 2))
	require.Equal(t, 2, f.notifier.sentCount())
	assert.Equal(t, "+15553334444", f.notifier.sent[1].Phone)
}

func TestEngine_SendTestAlert(t *testing.T) {
	f := setupEngine(t)

	status, err := f.engine.SendTestAlert(t.Context(), "(555) 123-4567", "")
	require.NoError(t, err)
	assert.Equal(t, notification.StatusSent, status)

	require.Equal(t, 1, f.notifier.sentCount())
	assert.Equal(t, "+15551234567", f.notifier.sent[0].Phone)
	assert.Equal(t, notification.DefaultTestMessage, f.notifier.sent[0].Message)

	records, _, err := f.alerts.List(t.Context(), repository.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, entities.TestAlertHash, records[0].LoadHash)
	assert.Zero(t, records[0].TruckID)
}

func TestEngine_TruckConfigCacheInvalidation(t *testing.T) {
	f := setupEngine(t)
	enableSMS(t, f)

	// Prime the cache.
	f.engine.Evaluate(t.Context(), highProfitLoad("cache-1", 1))
	require.Equal(t, 1, f.notifier.sentCount())

	// Raise the threshold past the reference profit and invalidate.
	cfg, err := f.trucks.Get(t.Context(), 1)
	require.NoError(t, err)
	cfg.AlertProfitThreshold = 5000
	require.NoError(t, f.trucks.Save(t.Context(), cfg))
	f.engine.InvalidateConfig(1)

	f.engine.Evaluate(t.Context(), highProfitLoad("cache-2", 1))
	assert.Equal(t, 1, f.notifier.sentCount(), "updated threshold suppresses alert")
}

func TestEventBus_DeliversToSubscribers(t *testing.T) {
	bus := NewEventBus()

	var mu sync.Mutex
	var got []string
	bus.Subscribe(func(event *LoadEvent) {
		mu.Lock()
		got = append(got, event.Load.Hash)
		mu.Unlock()
	})

	bus.Publish(&LoadEvent{Load: highProfitLoad("bus-1", 1)})
	bus.Publish(&LoadEvent{Load: highProfitLoad("bus-2", 1)})
	bus.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"bus-1", "bus-2"}, got)
}

func TestEventBus_PublishAfterStopIsDropped(t *testing.T) {
	bus := NewEventBus()
	bus.Subscribe(func(*LoadEvent) {
		t.Error("handler should not run after stop")
	})
	bus.Stop()

	bus.Publish(&LoadEvent{Load: highProfitLoad("late", 1), Timestamp: time.Now()})
	// No panic and no handler invocation.
}

func TestEventBus_PanickingHandlerDoesNotKillBus(t *testing.T) {
	bus := NewEventBus()

	var mu sync.Mutex
	var delivered int
	bus.Subscribe(func(*LoadEvent) { panic("boom") })
	bus.Subscribe(func(*LoadEvent) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	bus.Publish(&LoadEvent{Load: highProfitLoad("p-1", 1)})
	bus.Publish(&LoadEvent{Load: highProfitLoad("p-2", 1)})
	bus.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, delivered)
}
