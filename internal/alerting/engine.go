// Package alerting decides, per ingested load, whether to send a high
// profit SMS alert. Decisions run on an async event bus so ingestion never
// waits on SMS delivery, and every delivered or attempted alert is recorded
// for at-most-once semantics.
package alerting

import (
	"context"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/evanhu96/load-management-app/internal/datastore/entities"
	"github.com/evanhu96/load-management-app/internal/datastore/repository"
	"github.com/evanhu96/load-management-app/internal/logger"
	"github.com/evanhu96/load-management-app/internal/notification"
	"github.com/evanhu96/load-management-app/internal/profit"
)

const (
	// evaluateTimeout bounds DB access and SMS delivery for one decision.
	evaluateTimeout = 10 * time.Second
	// cleanupTimeout is the context deadline for the periodic history deletion.
	cleanupTimeout = 5 * time.Second
	// cleanupInterval is how often the history cleanup goroutine runs.
	cleanupInterval = 1 * time.Hour

	// configCacheTTL is how long truck configs are served from cache.
	// Config updates via the API invalidate the cache directly, the TTL
	// only bounds staleness across multiple server processes.
	configCacheTTL = time.Minute
)

// Engine evaluates ingested loads against truck alert thresholds and
// dispatches SMS alerts through the notifier.
type Engine struct {
	truckConfigs repository.TruckConfigRepository
	alerts       repository.AlertRepository
	settings     repository.SettingsRepository
	notifier     notification.Notifier
	log          logger.Logger

	// fallbackPhone is used when neither the truck config nor the
	// default_phone_number setting carries a number.
	fallbackPhone string

	configCache *gocache.Cache

	cleanupStop chan struct{}
}

// NewEngine creates an alert engine.
func NewEngine(
	truckConfigs repository.TruckConfigRepository,
	alerts repository.AlertRepository,
	settings repository.SettingsRepository,
	notifier notification.Notifier,
	fallbackPhone string,
	log logger.Logger,
) *Engine {
	return &Engine{
		truckConfigs:  truckConfigs,
		alerts:        alerts,
		settings:      settings,
		notifier:      notifier,
		fallbackPhone: fallbackPhone,
		log:           log,
		configCache:   gocache.New(configCacheTTL, 5*time.Minute),
	}
}

// HandleLoadEvent is the event bus subscription point.
func (e *Engine) HandleLoadEvent(event *LoadEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), evaluateTimeout)
	defer cancel()
	e.Evaluate(ctx, event.Load)
}

// Evaluate runs the full alert decision for one load. It never returns an
// error: failures are logged and the load's ingestion outcome is unaffected.
func (e *Engine) Evaluate(ctx context.Context, load *entities.Load) {
	cfg, err := e.truckConfig(ctx, load.Truck)
	if err != nil {
		e.log.Error("failed to load truck config, skipping alert check",
			logger.Int("truck", load.Truck),
			logger.String("hash", load.Hash),
			logger.Error(err))
		return
	}

	if !profit.ShouldAlert(load, cfg) {
		return
	}

	// Dedup pre-check. A concurrent evaluation of the same hash can slip
	// through between check and insert; the window is accepted because a
	// rare duplicate SMS is preferable to serializing ingestion.
	exists, err := e.alerts.ExistsForLoad(ctx, load.Hash)
	if err != nil {
		e.log.Error("failed to check alert history, skipping alert",
			logger.String("hash", load.Hash),
			logger.Error(err))
		return
	}
	if exists {
		e.log.Debug("alert already recorded for load",
			logger.String("hash", load.Hash))
		return
	}

	settings, err := e.settings.GetAll(ctx)
	if err != nil {
		e.log.Error("failed to load settings, skipping alert",
			logger.String("hash", load.Hash),
			logger.Error(err))
		return
	}

	if e.inCooldown(ctx, load.Truck, settings) {
		e.log.Debug("truck in alert cooldown",
			logger.Int("truck", load.Truck),
			logger.String("hash", load.Hash))
		return
	}

	metrics := profit.Compute(load, cfg)
	message := notification.FormatAlertMessage(load, metrics)
	phone := e.resolvePhone(cfg, settings)

	status := notification.StatusLogged
	if settings[entities.SettingSMSEnabled] == "true" {
		status, _ = e.notifier.Send(ctx, phone, message)
	} else {
		e.log.Info("SMS disabled, alert logged only",
			logger.String("hash", load.Hash))
	}

	record := &entities.AlertRecord{
		LoadHash:    load.Hash,
		TruckID:     load.Truck,
		Profit:      metrics.Profit,
		Miles:       metrics.Miles,
		PhoneNumber: phone,
		Message:     message,
		Status:      status,
		SentAt:      time.Now(),
	}
	if err := e.alerts.Save(ctx, record); err != nil {
		e.log.Error("failed to record alert",
			logger.String("hash", load.Hash),
			logger.Error(err))
		return
	}

	e.log.Info("high profit alert processed",
		logger.String("hash", load.Hash),
		logger.Int("truck", load.Truck),
		logger.Float64("profit", metrics.Profit),
		logger.String("status", status))
}

// SendTestAlert delivers a test message and records it under the TEST hash.
func (e *Engine) SendTestAlert(ctx context.Context, phoneNumber, message string) (string, error) {
	if message == "" {
		message = notification.DefaultTestMessage
	}
	phone := notification.SanitizePhoneNumber(phoneNumber)

	status, sendErr := e.notifier.Send(ctx, phone, message)

	record := &entities.AlertRecord{
		LoadHash:    entities.TestAlertHash,
		TruckID:     0,
		PhoneNumber: phone,
		Message:     message,
		Status:      status,
		SentAt:      time.Now(),
	}
	if err := e.alerts.Save(ctx, record); err != nil {
		e.log.Error("failed to record test alert", logger.Error(err))
	}

	e.log.Info("test alert processed",
		logger.String("phone_number", phone),
		logger.String("status", status))
	return status, sendErr
}

// InvalidateConfig drops a truck's cached config after an API update.
func (e *Engine) InvalidateConfig(truckID int) {
	e.configCache.Delete(strconv.Itoa(truckID))
}

func (e *Engine) truckConfig(ctx context.Context, truckID int) (*entities.TruckConfig, error) {
	key := strconv.Itoa(truckID)
	if cached, ok := e.configCache.Get(key); ok {
		return cached.(*entities.TruckConfig), nil
	}

	cfg, err := e.truckConfigs.Get(ctx, truckID)
	if err != nil {
		return nil, err
	}
	e.configCache.Set(key, cfg, gocache.DefaultExpiration)
	return cfg, nil
}

func (e *Engine) inCooldown(ctx context.Context, truckID int, settings map[string]string) bool {
	minutes, err := strconv.Atoi(settings[entities.SettingAlertCooldownMinutes])
	if err != nil || minutes <= 0 {
		return false
	}

	last, err := e.alerts.LastForTruck(ctx, truckID)
	if err != nil {
		e.log.Error("failed to check alert cooldown",
			logger.Int("truck", truckID),
			logger.Error(err))
		return false
	}
	if last.IsZero() {
		return false
	}
	return time.Since(last) < time.Duration(minutes)*time.Minute
}

func (e *Engine) resolvePhone(cfg *entities.TruckConfig, settings map[string]string) string {
	phone := cfg.PhoneNumber
	if phone == "" {
		phone = settings[entities.SettingDefaultPhoneNumber]
	}
	if phone == "" {
		phone = e.fallbackPhone
	}
	return notification.SanitizePhoneNumber(phone)
}

// StartHistoryCleanup starts a background goroutine that periodically deletes
// alert records older than retentionDays. A value of 0 disables cleanup.
func (e *Engine) StartHistoryCleanup(retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	e.StopCleanup()
	e.cleanupStop = make(chan struct{})
	stopCh := e.cleanupStop
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cutoff := time.Now().AddDate(0, 0, -retentionDays)
				cleanupCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
				deleted, err := e.alerts.DeleteOlderThan(cleanupCtx, cutoff)
				cancel()
				if err != nil {
					e.log.Error("alert history cleanup failed", logger.Error(err))
				} else if deleted > 0 {
					e.log.Info("alert history cleanup completed",
						logger.Int64("deleted", deleted),
						logger.Int("retention_days", retentionDays))
				}
			case <-stopCh:
				return
			}
		}
	}()
}

// StopCleanup signals the cleanup goroutine to exit.
func (e *Engine) StopCleanup() {
	if e.cleanupStop != nil {
		close(e.cleanupStop)
		e.cleanupStop = nil
	}
}
