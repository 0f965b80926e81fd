// Package server assembles the HTTP surface: middleware, module routes,
// health, metrics and system status endpoints.
package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/pulpitworks/sermonscribe/internal/api"
	"github.com/pulpitworks/sermonscribe/internal/config"
	"github.com/pulpitworks/sermonscribe/internal/database"
	"github.com/pulpitworks/sermonscribe/internal/events"
	"github.com/pulpitworks/sermonscribe/internal/logger"
	"github.com/pulpitworks/sermonscribe/internal/middleware"
	"github.com/pulpitworks/sermonscribe/internal/modules/modulemanager"
	"github.com/pulpitworks/sermonscribe/internal/modules/orgmodule"
	"github.com/pulpitworks/sermonscribe/internal/modules/sessionmodule"
)

var startTime = time.Now()

// SetupRouter initializes the event bus, modules and all HTTP routes
func SetupRouter() (*gin.Engine, error) {
	cfg := config.Get()

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	eventBus := events.NewEventBus(events.EventBusConfig{BufferSize: 1024})
	if err := eventBus.Start(context.Background()); err != nil {
		return nil, err
	}
	events.SetDefaultBus(eventBus)

	sessionmodule.Register()
	orgmodule.Register()

	moduleCfg, err := modulemanager.LoadConfig("modules.yaml")
	if err != nil {
		return nil, err
	}
	moduleCfg.Apply()

	if err := modulemanager.Initialize(database.GetDB()); err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS())
	router.Use(api.ErrorMiddleware())

	router.GET("/api/health", healthCheck)
	router.GET("/api/system/status", systemStatus)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	modulemanager.RegisterRoutes(router)

	logger.Info("router configured", "modules", len(modulemanager.ListModules()))
	return router, nil
}

func healthCheck(c *gin.Context) {
	status := "healthy"
	dbStatus := "connected"

	if db := database.GetDB(); db != nil {
		if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
			status = "degraded"
			dbStatus = "disconnected"
		}
	} else {
		status = "degraded"
		dbStatus = "unavailable"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"database":  dbStatus,
		"uptime":    time.Since(startTime).String(),
		"timestamp": time.Now().UTC(),
	})
}

// systemStatus reports host resource usage for operations dashboards
func systemStatus(c *gin.Context) {
	payload := gin.H{
		"goroutines": runtime.NumGoroutine(),
		"uptime":     time.Since(startTime).String(),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		payload["memory"] = gin.H{
			"total_bytes": vm.Total,
			"used_bytes":  vm.Used,
			"used_pct":    vm.UsedPercent,
		}
	}
	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		payload["cpu_pct"] = percentages[0]
	}
	if usage, err := disk.Usage("/"); err == nil {
		payload["disk"] = gin.H{
			"total_bytes": usage.Total,
			"used_bytes":  usage.Used,
			"used_pct":    usage.UsedPercent,
		}
	}
	if info, err := host.Info(); err == nil {
		payload["host"] = gin.H{
			"hostname": info.Hostname,
			"os":       info.OS,
			"platform": info.Platform,
		}
	}

	c.JSON(http.StatusOK, payload)
}
