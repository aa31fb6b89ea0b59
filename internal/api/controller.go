// Package api exposes the HTTP surface of the load management server:
// load CRUD and bulk import, truck configs, system settings, alert
// history, the websocket endpoint, and health/metrics.
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evanhu96/load-management-app/internal/alerting"
	"github.com/evanhu96/load-management-app/internal/datastore/repository"
	"github.com/evanhu96/load-management-app/internal/errors"
	"github.com/evanhu96/load-management-app/internal/hub"
	"github.com/evanhu96/load-management-app/internal/ingest"
	"github.com/evanhu96/load-management-app/internal/logger"
)

// Controller wires HTTP routes to the underlying services.
type Controller struct {
	Echo  *echo.Echo
	Group *echo.Group

	ingest      *ingest.Service
	alertEngine *alerting.Engine
	registry    *hub.Registry
	trucks      repository.TruckConfigRepository
	alerts      repository.AlertRepository
	settings    repository.SettingsRepository
	dispatch    repository.DispatchInputRepository
	log         logger.Logger
	debug       bool
	startTime   time.Time
}

// Deps carries everything the controller needs.
type Deps struct {
	Ingest      *ingest.Service
	AlertEngine *alerting.Engine
	Registry    *hub.Registry
	Trucks      repository.TruckConfigRepository
	Alerts      repository.AlertRepository
	Settings    repository.SettingsRepository
	Dispatch    repository.DispatchInputRepository
	Log         logger.Logger
	Debug       bool
}

// New creates the controller and registers every route on e.
func New(e *echo.Echo, deps Deps) *Controller {
	c := &Controller{
		Echo:        e,
		Group:       e.Group("/api"),
		ingest:      deps.Ingest,
		alertEngine: deps.AlertEngine,
		registry:    deps.Registry,
		trucks:      deps.Trucks,
		alerts:      deps.Alerts,
		settings:    deps.Settings,
		dispatch:    deps.Dispatch,
		log:         deps.Log,
		debug:       deps.Debug,
		startTime:   time.Now(),
	}

	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	c.initLoadRoutes()
	c.initTruckRoutes()
	c.initSettingsRoutes()
	c.initAlertRoutes()
	c.initDispatchRoutes()
	c.initSystemRoutes()

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if c.registry != nil {
		c.Group.GET("/ws", c.registry.ServeWS)
	}

	return c
}

// HandleError maps a service error onto the API error contract. Responses
// always carry {error, details?}; internal detail is suppressed unless
// debug mode is on.
func (c *Controller) HandleError(ctx echo.Context, err error, message string) error {
	var vErr *errors.ValidationError
	switch {
	case errors.As(err, &vErr):
		body := map[string]any{"error": vErr.Message}
		if len(vErr.Details) > 0 {
			body["details"] = vErr.Details
		}
		return ctx.JSON(http.StatusBadRequest, body)
	case errors.Is(err, errors.ErrNotFound):
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": message})
	case errors.Is(err, errors.ErrConflict):
		return ctx.JSON(http.StatusConflict, map[string]string{"error": message})
	case errors.IsTransientStore(err):
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "Database busy, retry shortly",
		})
	default:
		c.log.Error("request failed",
			logger.String("path", ctx.Path()),
			logger.Error(err))
		body := map[string]string{"error": message}
		if c.debug && err != nil {
			body["details"] = err.Error()
		}
		return ctx.JSON(http.StatusInternalServerError, body)
	}
}
