package sessionmodule

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/pulpitworks/sermonscribe/internal/events"
)

// Sweeper periodically evicts stale ingestion entries and re-syncs the
// surviving entries from the authoritative session store. Eviction is
// advisory housekeeping: a submitted chunk can always rebuild its entry.
type Sweeper struct {
	store    *SessionStore
	cache    *IngestionCache
	eventBus events.EventBus
	logger   hclog.Logger

	sweepInterval   time.Duration
	refreshInterval time.Duration
}

// NewSweeper creates a sweeper over the given cache
func NewSweeper(store *SessionStore, cache *IngestionCache, bus events.EventBus, logger hclog.Logger, sweepInterval, refreshInterval time.Duration) *Sweeper {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	if refreshInterval <= 0 {
		refreshInterval = 5 * time.Minute
	}
	return &Sweeper{
		store:           store,
		cache:           cache,
		eventBus:        bus,
		logger:          logger.Named("ingestion-sweeper"),
		sweepInterval:   sweepInterval,
		refreshInterval: refreshInterval,
	}
}

// Run blocks until the context is cancelled
func (s *Sweeper) Run(ctx context.Context) {
	sweep := time.NewTicker(s.sweepInterval)
	defer sweep.Stop()
	refresh := time.NewTicker(s.refreshInterval)
	defer refresh.Stop()

	s.logger.Info("ingestion sweeper started",
		"sweep_interval", s.sweepInterval,
		"refresh_interval", s.refreshInterval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ingestion sweeper stopped")
			return
		case <-sweep.C:
			s.sweepOnce()
		case <-refresh.C:
			s.refreshOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce() {
	expired := s.cache.ExpireStale()
	if len(expired) == 0 {
		return
	}

	s.logger.Info("evicted stale ingestion entries", "count", len(expired))
	if s.eventBus == nil {
		return
	}
	for _, id := range expired {
		event := events.NewSystemEvent(events.EventStreamEntryExpired,
			"ingestion entry expired", "stream evicted after inactivity")
		event.Source = "sessionmodule"
		event.Data = map[string]interface{}{"session_id": id}
		_ = s.eventBus.PublishAsync(event)
	}
}

// refreshOnce pushes the authoritative status of every active session
// into the cache, closing entries whose session has left recording.
func (s *Sweeper) refreshOnce(ctx context.Context) {
	if s.cache.Len() == 0 {
		return
	}

	sessions, err := s.store.ListActive(ctx)
	if err != nil {
		s.logger.Warn("active session refresh failed", "error", err)
		return
	}

	active := make(map[string]bool, len(sessions))
	for _, session := range sessions {
		active[session.ID] = true
		s.cache.RefreshFromAuthoritative(session.ID, session.Status, session.UpdatedAt)
	}

	// Entries whose session no longer appears in the active set were
	// completed or deleted out from under the cache.
	for _, id := range s.cache.Keys() {
		if !active[id] {
			s.cache.Close(id)
		}
	}
}
