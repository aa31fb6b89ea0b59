package api

import (
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

func (c *Controller) initSystemRoutes() {
	c.Group.GET("/health", c.Health)
	c.Group.GET("/connections", c.ConnectionStats)
}

// Health reports process uptime and memory usage.
func (c *Controller) Health(ctx echo.Context) error {
	memory := map[string]any{}
	if vm, err := mem.VirtualMemory(); err == nil {
		memory["systemTotal"] = vm.Total
		memory["systemUsedPercent"] = vm.UsedPercent
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfo(); err == nil && info != nil {
			memory["rss"] = info.RSS
		}
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(c.startTime).Seconds(),
		"memory":    memory,
	})
}

// ConnectionStats exposes websocket client counts by role.
func (c *Controller) ConnectionStats(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.registry.Stats())
}
