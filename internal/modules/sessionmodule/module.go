// Package sessionmodule implements the live transcription session
// lifecycle and the audio ingestion pipeline. Sessions are tenant-scoped
// records moving through a fixed state machine; active streams are tracked
// in an in-memory cache keyed by session id, with the database as the
// source of truth.
package sessionmodule

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/pulpitworks/sermonscribe/internal/base"
	"github.com/pulpitworks/sermonscribe/internal/config"
	"github.com/pulpitworks/sermonscribe/internal/database"
	"github.com/pulpitworks/sermonscribe/internal/metrics"
	"github.com/pulpitworks/sermonscribe/internal/modules/modulemanager"
	"github.com/pulpitworks/sermonscribe/internal/transcriber"
)

// Register registers the session module with the module system
func Register() {
	modulemanager.Register(NewModule())
}

// Module wires the session store, ingestion cache, lifecycle service and
// HTTP surface together under the module system.
type Module struct {
	*base.BaseModule
	logger hclog.Logger

	store     *SessionStore
	cache     *IngestionCache
	pipeline  *IngestionPipeline
	lifecycle *LifecycleService
	handlers  *Handlers
	socket    *StreamSocket
	sweeper   *Sweeper

	sweeperCancel context.CancelFunc
}

// NewModule creates the session module
func NewModule() *Module {
	return &Module{
		BaseModule: base.NewBaseModule("system.sessions", "Transcription Sessions", "1.0.0", true),
		logger:     hclog.Default().Named("sessionmodule"),
	}
}

// Migrate creates the session tables
func (m *Module) Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&database.TranscriptionSession{}); err != nil {
		return fmt.Errorf("failed to migrate session tables: %w", err)
	}
	return nil
}

// Init builds the module's services from configuration
func (m *Module) Init() error {
	db := m.DB()
	if db == nil {
		return fmt.Errorf("database not available")
	}

	cfg := config.Get()
	bus := m.EventBus()
	promMetrics := metrics.Get()

	m.store = NewSessionStore(db, m.logger)
	m.cache = NewIngestionCache(CacheConfig{
		MaxSessionDuration: cfg.Ingestion.MaxSessionDuration,
		InactivityWindow:   cfg.Ingestion.InactivityWindow,
	}, m.logger, promMetrics)

	var forwarder transcriber.Forwarder = transcriber.Noop{}
	if cfg.Transcriber.Enabled && cfg.Transcriber.Endpoint != "" {
		forwarder = transcriber.NewHTTPForwarder(cfg.Transcriber.Endpoint, cfg.Transcriber.Timeout)
	}

	m.pipeline = NewIngestionPipeline(m.store, m.cache, forwarder, PipelineConfig{
		MaxChunkSizeBytes: cfg.Ingestion.MaxChunkSizeBytes,
	}, m.logger, promMetrics)

	m.lifecycle = NewLifecycleService(m.store, m.cache, bus, m.logger,
		cfg.Ingestion.SupportedFormats, cfg.Ingestion.SupportedRates,
		cfg.Ingestion.MaxChunkSizeBytes)

	m.handlers = NewHandlers(m.lifecycle, m.pipeline, m.logger)
	m.socket = NewStreamSocket(m.pipeline, m.logger)

	m.sweeper = NewSweeper(m.store, m.cache, bus, m.logger,
		cfg.Ingestion.SweepInterval, cfg.Ingestion.RefreshInterval)
	ctx, cancel := context.WithCancel(context.Background())
	m.sweeperCancel = cancel
	go m.sweeper.Run(ctx)

	m.SetInitialized(true)
	m.logger.Info("session module initialized",
		"max_chunk_bytes", cfg.Ingestion.MaxChunkSizeBytes,
		"inactivity_window", cfg.Ingestion.InactivityWindow)
	return nil
}

// Shutdown stops the background sweeper
func (m *Module) Shutdown() {
	if m.sweeperCancel != nil {
		m.sweeperCancel()
	}
}

// Lifecycle exposes the lifecycle service for other modules
func (m *Module) Lifecycle() *LifecycleService {
	return m.lifecycle
}

// Cache exposes the ingestion cache for status endpoints
func (m *Module) Cache() *IngestionCache {
	return m.cache
}

// RegisterRoutes mounts the session API
func (m *Module) RegisterRoutes(router *gin.Engine) {
	sessions := router.Group("/api/sessions")
	{
		sessions.POST("", m.handlers.CreateSession)
		sessions.GET("", m.handlers.ListSessions)
		sessions.GET("/:id", m.handlers.GetSession)
		sessions.PATCH("/:id", m.handlers.UpdateSession)
		sessions.DELETE("/:id", m.handlers.DeleteSession)

		sessions.POST("/:id/start", m.handlers.StartSession)
		sessions.POST("/:id/pause", m.handlers.PauseSession)
		sessions.POST("/:id/resume", m.handlers.ResumeSession)
		sessions.POST("/:id/complete", m.handlers.CompleteSession)
		sessions.POST("/:id/cancel", m.handlers.CancelSession)

		sessions.POST("/:id/stream", m.handlers.StartStream)
		sessions.DELETE("/:id/stream", m.handlers.StopStream)
		sessions.GET("/:id/stream", m.handlers.GetStreamStatus)
		sessions.GET("/:id/stream/ws", m.socket.Serve)
		sessions.POST("/:id/chunks", m.handlers.SubmitChunk)
	}

	m.logger.Debug("session routes registered")
}
