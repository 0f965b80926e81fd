package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pulpitworks/sermonscribe/internal/config"
	"github.com/pulpitworks/sermonscribe/internal/database"
	"github.com/pulpitworks/sermonscribe/internal/events"
	"github.com/pulpitworks/sermonscribe/internal/logger"
	"github.com/pulpitworks/sermonscribe/internal/modules/modulemanager"
	"github.com/pulpitworks/sermonscribe/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "sermonscribe: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if err := config.Load(configPath); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg := config.Get()

	logger.Info("starting sermonscribe",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"database", cfg.Database.Type)

	if err := database.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if configPath != "" {
		go func() {
			if err := config.Watch(ctx, configPath); err != nil {
				logger.Warn("config watcher stopped", "error", err)
			}
		}()
	}

	router, err := server.SetupRouter()
	if err != nil {
		return fmt.Errorf("failed to set up router: %w", err)
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}

	for _, module := range modulemanager.ListModules() {
		if stopper, ok := module.(interface{ Shutdown() }); ok {
			stopper.Shutdown()
		}
	}

	if bus := events.DefaultBus(); bus != nil {
		if err := bus.Stop(shutdownCtx); err != nil {
			logger.Warn("event bus shutdown incomplete", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}
