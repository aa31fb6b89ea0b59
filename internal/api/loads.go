package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/evanhu96/load-management-app/internal/ingest"
)

func (c *Controller) initLoadRoutes() {
	loads := c.Group.Group("/loads")
	loads.GET("", c.ListLoads)
	loads.GET("/stats/summary", c.LoadStats)
	loads.GET("/:hash", c.GetLoad)
	loads.POST("", c.CreateLoad)
	loads.POST("/bulk", c.BulkImportLoads)
	loads.PUT("/:hash", c.UpdateLoad)
	loads.DELETE("/:hash", c.DeleteLoad)
}

// ListLoads returns active loads with filtering, sorting, and pagination.
func (c *Controller) ListLoads(ctx echo.Context) error {
	params := ingest.ListParams{
		Company:     ctx.QueryParam("company"),
		Origin:      ctx.QueryParam("origin"),
		Destination: ctx.QueryParam("destination"),
		SortBy:      ctx.QueryParam("sortBy"),
		SortOrder:   ctx.QueryParam("sortOrder"),
	}

	if truck := ctx.QueryParam("truck"); truck != "" {
		v, err := strconv.Atoi(truck)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid truck parameter"})
		}
		params.Truck = v
	}
	if limit := ctx.QueryParam("limit"); limit != "" {
		v, err := strconv.Atoi(limit)
		if err != nil || v < 1 {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid limit parameter"})
		}
		params.Limit = v
	}
	if offset := ctx.QueryParam("offset"); offset != "" {
		v, err := strconv.Atoi(offset)
		if err != nil || v < 0 {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid offset parameter"})
		}
		params.Offset = v
	}
	if minProfit := ctx.QueryParam("minProfit"); minProfit != "" {
		v, err := strconv.ParseFloat(minProfit, 64)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid minProfit parameter"})
		}
		params.MinProfit = &v
	}
	if maxMiles := ctx.QueryParam("maxMiles"); maxMiles != "" {
		v, err := strconv.Atoi(maxMiles)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid maxMiles parameter"})
		}
		params.MaxMiles = &v
	}

	result, err := c.ingest.ListLoads(ctx.Request().Context(), params)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list loads")
	}
	return ctx.JSON(http.StatusOK, result)
}

// GetLoad returns a single active load by hash.
func (c *Controller) GetLoad(ctx echo.Context) error {
	load, err := c.ingest.GetLoad(ctx.Request().Context(), ctx.Param("hash"))
	if err != nil {
		return c.HandleError(ctx, err, "Load not found")
	}
	return ctx.JSON(http.StatusOK, load)
}

// CreateLoad inserts one load, rejecting duplicate hashes with 409.
func (c *Controller) CreateLoad(ctx echo.Context) error {
	var input ingest.LoadInput
	if err := ctx.Bind(&input); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	load, err := c.ingest.InsertLoad(ctx.Request().Context(), &input)
	if err != nil {
		return c.HandleError(ctx, err, "Load with this hash already exists")
	}
	return ctx.JSON(http.StatusCreated, map[string]any{
		"id":      load.ID,
		"message": "Load added successfully",
	})
}

// BulkImportLoads imports up to 1000 loads with per-item error reporting.
func (c *Controller) BulkImportLoads(ctx echo.Context) error {
	var body struct {
		Loads []*ingest.LoadInput `json:"loads"`
	}
	if err := ctx.Bind(&body); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Loads must be an array"})
	}

	result, err := c.ingest.BulkImport(ctx.Request().Context(), body.Loads)
	if err != nil {
		return c.HandleError(ctx, err, "Bulk import failed")
	}
	return ctx.JSON(http.StatusOK, result)
}

// UpdateLoad replaces an existing load's fields.
func (c *Controller) UpdateLoad(ctx echo.Context) error {
	var input ingest.LoadInput
	if err := ctx.Bind(&input); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	load, err := c.ingest.UpdateLoad(ctx.Request().Context(), ctx.Param("hash"), &input)
	if err != nil {
		return c.HandleError(ctx, err, "Load not found")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"message": "Load updated successfully",
		"load":    load,
	})
}

// DeleteLoad soft-deletes by default; permanent=true removes the row.
func (c *Controller) DeleteLoad(ctx echo.Context) error {
	permanent := ctx.QueryParam("permanent") == "true"
	err := c.ingest.DeleteLoad(ctx.Request().Context(), ctx.Param("hash"), permanent)
	if err != nil {
		return c.HandleError(ctx, err, "Load not found")
	}
	return ctx.JSON(http.StatusOK, map[string]string{"message": "Load deleted successfully"})
}

// LoadStats aggregates per-truck load figures over a time range.
func (c *Controller) LoadStats(ctx echo.Context) error {
	truck := 0
	if t := ctx.QueryParam("truck"); t != "" {
		v, err := strconv.Atoi(t)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid truck parameter"})
		}
		truck = v
	}

	result, err := c.ingest.Stats(ctx.Request().Context(), truck, ctx.QueryParam("timeRange"))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get load stats")
	}
	return ctx.JSON(http.StatusOK, result)
}
