package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/evanhu96/load-management-app/internal/datastore/entities"
	"github.com/evanhu96/load-management-app/internal/hub"
	"github.com/evanhu96/load-management-app/internal/logger"
)

const defaultDispatchLimit = 10

// DispatchInputRequest is a lane request submitted from the dashboard.
type DispatchInputRequest struct {
	Origin       string `json:"origin"`
	Destination  string `json:"destination"`
	Miles        int    `json:"miles"`
	TargetProfit int    `json:"targetProfit"`
	DispatchUser string `json:"dispatchUser"`
	Timestamp    string `json:"timestamp"`
}

func (c *Controller) initDispatchRoutes() {
	c.Group.GET("/dispatch-inputs", c.ListDispatchInputs)
	c.Group.POST("/dispatch-inputs", c.CreateDispatchInput)
	c.Group.GET("/dispatch-inputs/status", c.DispatchInputStatus)
	c.Group.DELETE("/dispatch-inputs/:id", c.DeleteDispatchInput)
}

// ListDispatchInputs returns recent dispatcher lane entries, newest first.
// With latest=true only the most recent entry (or null) is returned.
func (c *Controller) ListDispatchInputs(ctx echo.Context) error {
	latest := ctx.QueryParam("latest") == "true"

	limit := defaultDispatchLimit
	if raw := ctx.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid limit parameter"})
		}
		limit = parsed
	}
	if latest {
		limit = 1
	}

	inputs, err := c.dispatch.List(ctx.Request().Context(), limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to fetch dispatch inputs")
	}

	if latest {
		if len(inputs) == 0 {
			return ctx.JSON(http.StatusOK, nil)
		}
		return ctx.JSON(http.StatusOK, inputs[0])
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"dispatchInputs": inputs,
		"total":          len(inputs),
	})
}

// CreateDispatchInput stores a lane entry and notifies connected collectors.
func (c *Controller) CreateDispatchInput(ctx echo.Context) error {
	var req DispatchInputRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	input := entities.DispatchInput{
		Origin:       req.Origin,
		Destination:  req.Destination,
		Miles:        req.Miles,
		TargetProfit: req.TargetProfit,
		DispatchUser: req.DispatchUser,
		Timestamp:    req.Timestamp,
	}
	if input.DispatchUser == "" {
		input.DispatchUser = "dispatch"
	}
	if input.Timestamp == "" {
		input.Timestamp = time.Now().Format(time.RFC3339)
	}

	if err := c.dispatch.Insert(ctx.Request().Context(), &input); err != nil {
		return c.HandleError(ctx, err, "Failed to save dispatch inputs")
	}

	c.log.Info("dispatch input saved",
		logger.Uint64("id", uint64(input.ID)),
		logger.String("origin", input.Origin),
		logger.String("destination", input.Destination),
		logger.Int("target_profit", input.TargetProfit))

	if c.registry != nil {
		c.registry.Broadcast(hub.EventDispatchInputsUpdate, map[string]any{
			"id":           input.ID,
			"origin":       input.Origin,
			"destination":  input.Destination,
			"miles":        input.Miles,
			"targetProfit": input.TargetProfit,
			"dispatchUser": input.DispatchUser,
			"timestamp":    input.Timestamp,
			"action":       "created",
		})
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
		"id":      input.ID,
		"message": "Dispatch inputs saved successfully",
	})
}

// DeleteDispatchInput removes an old lane entry.
func (c *Controller) DeleteDispatchInput(ctx echo.Context) error {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid dispatch input ID"})
	}

	if err := c.dispatch.Delete(ctx.Request().Context(), uint(id)); err != nil {
		return c.HandleError(ctx, err, "Dispatch input not found")
	}

	c.log.Info("dispatch input deleted", logger.Uint64("id", id))

	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Dispatch input deleted",
	})
}

// DispatchInputStatus reports whether the feature's storage is reachable.
func (c *Controller) DispatchInputStatus(ctx echo.Context) error {
	total, err := c.dispatch.Count(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Database error")
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"status":       "ok",
		"totalEntries": total,
		"timestamp":    time.Now().Format(time.RFC3339),
	})
}
