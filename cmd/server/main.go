// The server binary runs the load management API: REST endpoints, the
// websocket hub, the alerting engine, and the SQLite store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/evanhu96/load-management-app/internal/alerting"
	"github.com/evanhu96/load-management-app/internal/api"
	"github.com/evanhu96/load-management-app/internal/conf"
	"github.com/evanhu96/load-management-app/internal/datastore"
	"github.com/evanhu96/load-management-app/internal/hub"
	"github.com/evanhu96/load-management-app/internal/ingest"
	"github.com/evanhu96/load-management-app/internal/logger"
	"github.com/evanhu96/load-management-app/internal/notification"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "loads-server",
		Short: "Load management API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := conf.LoadServer(configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), settings)
		},
		SilenceUsage: true,
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, settings *conf.ServerSettings) error {
	log := logger.NewSlogLogger(os.Stdout, logger.ParseLevel(settings.LogLevel), nil)

	store, err := datastore.Open(settings.DatabasePath, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	notifier, err := notification.NewShoutrrrNotifier(
		settings.Alerts.ServiceURL,
		settings.Alerts.SendTimeout.Std(),
		log)
	if err != nil {
		return err
	}

	engine := alerting.NewEngine(
		store.TruckConfigs,
		store.Alerts,
		store.Settings,
		notifier,
		settings.Alerts.DefaultPhoneNumber,
		log)
	if settings.Alerts.HistoryRetentionDays > 0 {
		engine.StartHistoryCleanup(settings.Alerts.HistoryRetentionDays)
		defer engine.StopCleanup()
	}

	bus := alerting.NewEventBus()
	bus.Subscribe(engine.HandleLoadEvent)
	defer bus.Stop()

	registry := hub.NewRegistry(log)
	defer registry.Close()

	svc := ingest.NewService(store.Loads, store.TruckConfigs, bus, registry, log)
	registry.OnLoadData(collectorBatchHandler(svc, log))

	e := echo.New()
	api.New(e, api.Deps{
		Ingest:      svc,
		AlertEngine: engine,
		Registry:    registry,
		Trucks:      store.TruckConfigs,
		Alerts:      store.Alerts,
		Settings:    store.Settings,
		Dispatch:    store.DispatchInputs,
		Log:         log,
		Debug:       settings.Debug,
	})

	addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)
	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	log.Info("server started", logger.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// collectorBatchHandler persists load batches pushed over the websocket.
// The REST bulk endpoint performs the same import, so a duplicate push is
// an idempotent upsert.
func collectorBatchHandler(svc *ingest.Service, log logger.Logger) hub.LoadDataHandler {
	return func(clientID string, payload json.RawMessage) {
		var loads []*ingest.LoadInput
		if err := json.Unmarshal(payload, &loads); err != nil {
			log.Warn("discarding malformed load batch",
				logger.String("socket_id", clientID),
				logger.Error(err))
			return
		}
		if len(loads) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		result, err := svc.BulkImport(ctx, loads)
		if err != nil {
			log.Error("websocket batch import failed",
				logger.String("socket_id", clientID),
				logger.Error(err))
			return
		}
		log.Info("websocket batch imported",
			logger.String("socket_id", clientID),
			logger.Int("imported", result.SuccessCount),
			logger.Int("rejected", result.ErrorCount))
	}
}
