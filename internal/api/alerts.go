package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/evanhu96/load-management-app/internal/datastore/repository"
	"github.com/evanhu96/load-management-app/internal/notification"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 200
)

func (c *Controller) initAlertRoutes() {
	alerts := c.Group.Group("/alerts")
	alerts.GET("", c.ListAlerts)
	alerts.GET("/summary", c.AlertSummary)
	alerts.POST("/test", c.SendTestAlert)
	alerts.DELETE("/:id", c.DeleteAlert)
}

// ListAlerts returns alert history, newest first.
func (c *Controller) ListAlerts(ctx echo.Context) error {
	filter := repository.AlertFilter{
		Status: ctx.QueryParam("status"),
		Limit:  defaultAlertLimit,
	}

	if truck := ctx.QueryParam("truck"); truck != "" {
		v, err := strconv.Atoi(truck)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid truck parameter"})
		}
		filter.TruckID = v
	}
	if limit := ctx.QueryParam("limit"); limit != "" {
		v, err := strconv.Atoi(limit)
		if err != nil || v < 1 {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid limit parameter"})
		}
		if v > maxAlertLimit {
			v = maxAlertLimit
		}
		filter.Limit = v
	}
	if offset := ctx.QueryParam("offset"); offset != "" {
		v, err := strconv.Atoi(offset)
		if err != nil || v < 0 {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid offset parameter"})
		}
		filter.Offset = v
	}
	if since := ctx.QueryParam("startDate"); since != "" {
		parsed, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "startDate must be RFC3339"})
		}
		filter.Since = parsed
	}

	records, total, err := c.alerts.List(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alerts")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"alerts": records,
		"total":  total,
	})
}

// AlertSummary aggregates alert history into daily, weekly, or monthly
// buckets over the trailing month.
func (c *Controller) AlertSummary(ctx echo.Context) error {
	period := ctx.QueryParam("period")
	switch period {
	case "", "daily":
		period = "daily"
	case "weekly", "monthly":
	default:
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "period must be daily, weekly, or monthly",
		})
	}

	summaries, err := c.alerts.Summary(ctx.Request().Context(), period, time.Now().AddDate(0, -1, 0))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to summarize alerts")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"period":      period,
		"summary":     summaries,
		"generatedAt": time.Now().Format(time.RFC3339),
	})
}

// SendTestAlert sends a test SMS to verify delivery configuration.
func (c *Controller) SendTestAlert(ctx echo.Context) error {
	var body struct {
		PhoneNumber string `json:"phoneNumber"`
		Message     string `json:"message"`
	}
	if err := ctx.Bind(&body); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if body.PhoneNumber == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "phoneNumber is required"})
	}
	if notification.SanitizePhoneNumber(body.PhoneNumber) == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "phoneNumber must be a valid format"})
	}

	status, err := c.alertEngine.SendTestAlert(ctx.Request().Context(), body.PhoneNumber, body.Message)
	if err != nil && status == notification.StatusFailed {
		return ctx.JSON(http.StatusBadGateway, map[string]any{
			"error":  "Test alert delivery failed",
			"status": status,
		})
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"message": "Test alert processed",
		"status":  status,
	})
}

// DeleteAlert removes one alert record by ID.
func (c *Controller) DeleteAlert(ctx echo.Context) error {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid alert ID"})
	}

	if err := c.alerts.Delete(ctx.Request().Context(), uint(id)); err != nil {
		return c.HandleError(ctx, err, "Alert not found")
	}
	return ctx.JSON(http.StatusOK, map[string]string{"message": "Alert deleted successfully"})
}
