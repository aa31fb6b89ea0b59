package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/evanhu96/load-management-app/internal/datastore/entities"
	"github.com/evanhu96/load-management-app/internal/hub"
	"github.com/evanhu96/load-management-app/internal/notification"
)

func (c *Controller) initSettingsRoutes() {
	system := c.Group.Group("/system")
	system.GET("/settings", c.GetSystemSettings)
	system.PUT("/settings", c.UpdateSystemSettings)
}

// GetSystemSettings returns every recognized setting, merged over defaults.
func (c *Controller) GetSystemSettings(ctx echo.Context) error {
	settings, err := c.settings.GetAll(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get system settings")
	}
	return ctx.JSON(http.StatusOK, settings)
}

// UpdateSystemSettings validates and stores the submitted settings, then
// broadcasts settings_updated. Unknown keys are rejected outright.
func (c *Controller) UpdateSystemSettings(ctx echo.Context) error {
	var body map[string]string
	if err := ctx.Bind(&body); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if len(body) == 0 {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "No settings provided"})
	}

	if errs := validateSettings(body); len(errs) > 0 {
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error":   "Invalid system settings",
			"details": errs,
		})
	}

	if err := c.settings.UpsertMany(ctx.Request().Context(), body); err != nil {
		return c.HandleError(ctx, err, "Failed to update system settings")
	}

	merged, err := c.settings.GetAll(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to reload system settings")
	}

	c.registry.Broadcast(hub.EventSettingsUpdated, merged)
	return ctx.JSON(http.StatusOK, map[string]any{
		"message":  "Settings updated successfully",
		"settings": merged,
	})
}

// validateSettings enforces the recognized-keys allow-list and per-key
// value constraints.
func validateSettings(settings map[string]string) []string {
	var errs []string
	for key, value := range settings {
		switch key {
		case entities.SettingSMSEnabled:
			if value != "true" && value != "false" {
				errs = append(errs, `sms_enabled must be "true" or "false"`)
			}
		case entities.SettingDefaultPhoneNumber:
			if value != "" && notification.SanitizePhoneNumber(value) == "" {
				errs = append(errs, "default_phone_number must be a valid phone number")
			}
		case entities.SettingAlertCooldownMinutes:
			if v, err := strconv.Atoi(value); err != nil || v < 0 || v > 1440 {
				errs = append(errs, "alert_cooldown_minutes must be between 0 and 1440")
			}
		case entities.SettingAutoRefreshInterval:
			if v, err := strconv.Atoi(value); err != nil || v < 5 || v > 300 {
				errs = append(errs, "auto_refresh_interval must be between 5 and 300 seconds")
			}
		case entities.SettingMaxLoadsPerPage:
			if v, err := strconv.Atoi(value); err != nil || v < 10 || v > 500 {
				errs = append(errs, "max_loads_per_page must be between 10 and 500")
			}
		default:
			errs = append(errs, fmt.Sprintf("Unknown setting: %s", key))
		}
	}
	return errs
}
