package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/evanhu96/load-management-app/internal/datastore/entities"
	"github.com/evanhu96/load-management-app/internal/hub"
	"github.com/evanhu96/load-management-app/internal/logger"
	"github.com/evanhu96/load-management-app/internal/notification"
)

// TruckConfigInput is a partial truck config update. Unset fields keep
// their current values.
type TruckConfigInput struct {
	MPG                  *float64 `json:"mpg"`
	FuelCostPerGallon    *float64 `json:"fuelCostPerGallon"`
	CostPerMile          *float64 `json:"costPerMile"`
	AlertProfitThreshold *float64 `json:"alertProfitThreshold"`
	AlertMileThreshold   *int     `json:"alertMileThreshold"`
	PhoneNumber          *string  `json:"phoneNumber"`
}

// validate enforces the accepted parameter ranges.
func (in *TruckConfigInput) validate() []string {
	var errs []string
	if in.MPG != nil && (*in.MPG <= 0 || *in.MPG > 50) {
		errs = append(errs, "MPG must be a positive number between 0 and 50")
	}
	if in.FuelCostPerGallon != nil && (*in.FuelCostPerGallon < 0 || *in.FuelCostPerGallon > 20) {
		errs = append(errs, "Fuel cost per gallon must be a number between 0 and 20")
	}
	if in.CostPerMile != nil && (*in.CostPerMile < 0 || *in.CostPerMile > 10) {
		errs = append(errs, "Cost per mile must be a number between 0 and 10")
	}
	if in.AlertProfitThreshold != nil && (*in.AlertProfitThreshold < 0 || *in.AlertProfitThreshold > 10000) {
		errs = append(errs, "Alert profit threshold must be a number between 0 and 10000")
	}
	if in.AlertMileThreshold != nil && (*in.AlertMileThreshold < 0 || *in.AlertMileThreshold > 5000) {
		errs = append(errs, "Alert mile threshold must be a number between 0 and 5000")
	}
	if in.PhoneNumber != nil && *in.PhoneNumber != "" &&
		notification.SanitizePhoneNumber(*in.PhoneNumber) == "" {
		errs = append(errs, "Phone number must be a valid format")
	}
	return errs
}

func (c *Controller) initTruckRoutes() {
	trucks := c.Group.Group("/trucks")
	trucks.GET("/config", c.GetAllTruckConfigs)
	trucks.GET("/:id/config", c.GetTruckConfig)
	trucks.PUT("/:id/config", c.UpdateTruckConfig)
	trucks.POST("/:id/config/reset", c.ResetTruckConfig)
}

// truckIDParam parses and bounds the :id path parameter.
func truckIDParam(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || (id != 1 && id != 2) {
		return 0, fmt.Errorf("invalid truck id %q", ctx.Param("id"))
	}
	return id, nil
}

// GetAllTruckConfigs returns the configs for both trucks, falling back to
// defaults for any truck without a stored row.
func (c *Controller) GetAllTruckConfigs(ctx echo.Context) error {
	configs, err := c.trucks.GetAll(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get truck configurations")
	}

	have := make(map[int]bool, len(configs))
	for _, cfg := range configs {
		have[cfg.TruckID] = true
	}
	for _, id := range []int{1, 2} {
		if !have[id] {
			configs = append(configs, *entities.DefaultTruckConfig(id))
		}
	}
	return ctx.JSON(http.StatusOK, map[string]any{"configs": configs})
}

// GetTruckConfig returns one truck's config, or its defaults when unset.
func (c *Controller) GetTruckConfig(ctx echo.Context) error {
	id, err := truckIDParam(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Truck ID must be 1 or 2"})
	}

	cfg, err := c.trucks.Get(ctx.Request().Context(), id)
	if err != nil {
		cfg = entities.DefaultTruckConfig(id)
	}
	return ctx.JSON(http.StatusOK, cfg)
}

// UpdateTruckConfig merges the submitted fields into the stored config,
// invalidates the alert engine's cache, and broadcasts the change.
func (c *Controller) UpdateTruckConfig(ctx echo.Context) error {
	id, err := truckIDParam(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Truck ID must be 1 or 2"})
	}

	var input TruckConfigInput
	if err := ctx.Bind(&input); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if errs := input.validate(); len(errs) > 0 {
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error":   "Invalid truck configuration",
			"details": errs,
		})
	}

	reqCtx := ctx.Request().Context()
	cfg, err := c.trucks.Get(reqCtx, id)
	if err != nil {
		cfg = entities.DefaultTruckConfig(id)
	}

	if input.MPG != nil {
		cfg.MPG = *input.MPG
	}
	if input.FuelCostPerGallon != nil {
		cfg.FuelCostPerGallon = *input.FuelCostPerGallon
	}
	if input.CostPerMile != nil {
		cfg.CostPerMile = *input.CostPerMile
	}
	if input.AlertProfitThreshold != nil {
		cfg.AlertProfitThreshold = *input.AlertProfitThreshold
	}
	if input.AlertMileThreshold != nil {
		cfg.AlertMileThreshold = *input.AlertMileThreshold
	}
	if input.PhoneNumber != nil {
		cfg.PhoneNumber = *input.PhoneNumber
	}

	if err := c.trucks.Save(reqCtx, cfg); err != nil {
		return c.HandleError(ctx, err, "Failed to update truck configuration")
	}

	c.alertEngine.InvalidateConfig(id)
	c.registry.Broadcast(hub.EventConfigUpdated, map[string]any{
		"truckId": id,
		"config":  cfg,
	})
	c.log.Info("truck config updated", logger.Int("truck", id))

	return ctx.JSON(http.StatusOK, map[string]any{
		"message": "Truck configuration updated successfully",
		"config":  cfg,
	})
}

// ResetTruckConfig restores a truck's defaults.
func (c *Controller) ResetTruckConfig(ctx echo.Context) error {
	id, err := truckIDParam(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Truck ID must be 1 or 2"})
	}

	cfg := entities.DefaultTruckConfig(id)
	if err := c.trucks.Save(ctx.Request().Context(), cfg); err != nil {
		return c.HandleError(ctx, err, "Failed to reset truck configuration")
	}

	c.alertEngine.InvalidateConfig(id)
	c.registry.Broadcast(hub.EventConfigUpdated, map[string]any{
		"truckId": id,
		"config":  cfg,
	})
	c.log.Info("truck config reset to defaults", logger.Int("truck", id))

	return ctx.JSON(http.StatusOK, map[string]any{
		"message": "Truck configuration reset to defaults",
		"config":  cfg,
	})
}
