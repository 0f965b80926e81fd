package sessionmodule

import (
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/pulpitworks/sermonscribe/internal/database"
	"github.com/pulpitworks/sermonscribe/internal/metrics"
	"github.com/pulpitworks/sermonscribe/internal/types"
)

// ErrCacheMiss signals that no ingestion entry exists for a session. A miss
// is not a failure for chunk submission; it triggers reconciliation against
// the session store.
var ErrCacheMiss = errors.New("ingestion cache miss")

// CacheEntry holds the ephemeral per-session ingestion state. The entry is
// never authoritative for session status; the denormalized status snapshot
// is refreshed at defined points and may be stale in between. Counters,
// however, live only here.
type CacheEntry struct {
	mu sync.Mutex

	SessionID      string
	OrganizationID string
	UserID         string

	Format     string
	SampleRate int
	Channels   int

	Active         bool
	StartedAt      time.Time
	StoppedAt      *time.Time
	LastActivityAt time.Time

	TotalChunks    int64
	TotalBytes     int64
	LastChunkIndex int64

	// Snapshot of authoritative state as of the last refresh
	Status          database.SessionStatus
	StatusUpdatedAt time.Time

	// Absolute expiry, fixed at creation
	deadline time.Time
}

// snapshot returns a copy of the entry taken under its lock, safe for the
// caller to read without further synchronization.
func (e *CacheEntry) snapshot() CacheEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return CacheEntry{
		SessionID:       e.SessionID,
		OrganizationID:  e.OrganizationID,
		UserID:          e.UserID,
		Format:          e.Format,
		SampleRate:      e.SampleRate,
		Channels:        e.Channels,
		Active:          e.Active,
		StartedAt:       e.StartedAt,
		StoppedAt:       e.StoppedAt,
		LastActivityAt:  e.LastActivityAt,
		TotalChunks:     e.TotalChunks,
		TotalBytes:      e.TotalBytes,
		LastChunkIndex:  e.LastChunkIndex,
		Status:          e.Status,
		StatusUpdatedAt: e.StatusUpdatedAt,
		deadline:        e.deadline,
	}
}

// CacheConfig bounds entry lifetimes
type CacheConfig struct {
	// MaxSessionDuration is the absolute cap from entry creation
	MaxSessionDuration time.Duration
	// InactivityWindow is the sliding window reset on every touch
	InactivityWindow time.Duration
}

// IngestionCache maps session id to ingestion metadata with bounded
// lifetime. Entries are evicted by whichever of the sliding inactivity
// window or absolute duration cap fires first; eviction is cache-internal
// and never mutates the session store.
type IngestionCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
	config  CacheConfig
	logger  hclog.Logger
	metrics *metrics.Metrics

	// now is replaceable for tests
	now func() time.Time
}

// NewIngestionCache creates an empty cache
func NewIngestionCache(config CacheConfig, logger hclog.Logger, m *metrics.Metrics) *IngestionCache {
	if config.MaxSessionDuration <= 0 {
		config.MaxSessionDuration = 4 * time.Hour
	}
	if config.InactivityWindow <= 0 {
		config.InactivityWindow = 30 * time.Minute
	}
	return &IngestionCache{
		entries: make(map[string]*CacheEntry),
		config:  config,
		logger:  logger.Named("ingestion-cache"),
		metrics: m,
		now:     time.Now,
	}
}

// Open creates a fresh entry with zero counters. It fails with a conflict
// when an active entry already exists for the session.
func (c *IngestionCache) Open(sessionID, orgID, userID, format string, sampleRate, channels int) (CacheEntry, error) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[sessionID]; ok {
		existing.mu.Lock()
		active := existing.Active && !c.expired(existing, now)
		existing.mu.Unlock()
		if active {
			return CacheEntry{}, types.NewConflictError(
				types.ErrorCodeStreamActive,
				"an ingestion stream is already active for this session",
			).WithContext("session_id", sessionID)
		}
		// Stale or stopped leftovers are replaced. An expired entry was
		// never closed, so its stream count is settled here.
		existing.mu.Lock()
		wasActive := existing.Active
		existing.mu.Unlock()
		if wasActive && c.metrics != nil {
			c.metrics.RecordEviction("replaced")
		}
	}

	entry := &CacheEntry{
		SessionID:       sessionID,
		OrganizationID:  orgID,
		UserID:          userID,
		Format:          format,
		SampleRate:      sampleRate,
		Channels:        channels,
		Active:          true,
		StartedAt:       now,
		LastActivityAt:  now,
		Status:          database.SessionStatusInProgress,
		StatusUpdatedAt: now,
		deadline:        now.Add(c.config.MaxSessionDuration),
	}
	c.entries[sessionID] = entry

	if c.metrics != nil {
		c.metrics.RecordStreamOpened()
	}
	c.logger.Debug("ingestion entry opened",
		"session_id", sessionID,
		"format", format,
		"sample_rate", sampleRate,
		"channels", channels)

	return entry.snapshot(), nil
}

// Touch returns the current entry and extends its sliding expiry. It
// returns ErrCacheMiss when no live entry exists.
func (c *IngestionCache) Touch(sessionID string) (CacheEntry, error) {
	entry, err := c.live(sessionID)
	if err != nil {
		return CacheEntry{}, err
	}

	entry.mu.Lock()
	entry.LastActivityAt = c.now()
	entry.mu.Unlock()

	return entry.snapshot(), nil
}

// RecordChunk increments the entry's counters, updates last activity and
// the last observed chunk index, and re-extends the sliding expiry. Updates
// are serialized per entry so concurrent chunks for the same session never
// lose increments.
func (c *IngestionCache) RecordChunk(sessionID string, byteCount int64, chunkIndex int64) (CacheEntry, error) {
	entry, err := c.live(sessionID)
	if err != nil {
		return CacheEntry{}, err
	}

	entry.mu.Lock()
	entry.TotalChunks++
	entry.TotalBytes += byteCount
	entry.LastChunkIndex = chunkIndex
	entry.LastActivityAt = c.now()
	entry.mu.Unlock()

	return entry.snapshot(), nil
}

// Close marks the entry inactive and removes it. Closing an absent entry
// is a no-op.
func (c *IngestionCache) Close(sessionID string) {
	c.mu.Lock()
	entry, ok := c.entries[sessionID]
	if ok {
		delete(c.entries, sessionID)
	}
	c.mu.Unlock()

	if !ok {
		return
	}

	now := c.now()
	entry.mu.Lock()
	entry.Active = false
	entry.StoppedAt = &now
	duration := now.Sub(entry.StartedAt)
	entry.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordStreamClosed(duration.Seconds())
	}
	c.logger.Debug("ingestion entry closed",
		"session_id", sessionID,
		"duration", duration.String())
}

// RefreshFromAuthoritative overwrites the denormalized status snapshot.
// When the authoritative status has left in_progress the entry is removed,
// since ingestion must stop promptly rather than wait for expiry.
func (c *IngestionCache) RefreshFromAuthoritative(sessionID string, status database.SessionStatus, updatedAt time.Time) {
	c.mu.RLock()
	entry, ok := c.entries[sessionID]
	c.mu.RUnlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	entry.Status = status
	entry.StatusUpdatedAt = updatedAt
	entry.mu.Unlock()

	if status != database.SessionStatusInProgress {
		c.logger.Info("authoritative status left in_progress, closing entry",
			"session_id", sessionID,
			"status", status)
		c.Close(sessionID)
	}
}

// Get returns the entry without extending its expiry
func (c *IngestionCache) Get(sessionID string) (CacheEntry, error) {
	entry, err := c.live(sessionID)
	if err != nil {
		return CacheEntry{}, err
	}
	return entry.snapshot(), nil
}

// Len returns the number of entries currently held
func (c *IngestionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the session ids of all held entries
func (c *IngestionCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for id := range c.entries {
		keys = append(keys, id)
	}
	return keys
}

// ExpireStale evicts entries whose sliding window or absolute deadline has
// elapsed and returns the evicted session ids. Called by the sweeper.
func (c *IngestionCache) ExpireStale() []string {
	now := c.now()

	c.mu.Lock()
	var expired []string
	for id, entry := range c.entries {
		entry.mu.Lock()
		isExpired := c.expired(entry, now)
		entry.mu.Unlock()
		if isExpired {
			expired = append(expired, id)
			delete(c.entries, id)
		}
	}
	c.mu.Unlock()

	for _, id := range expired {
		if c.metrics != nil {
			c.metrics.RecordEviction("ttl")
		}
		c.logger.Info("ingestion entry expired", "session_id", id)
	}
	return expired
}

// live returns the entry for sessionID, lazily evicting it when expired.
// Lazy eviction keeps reads correct between sweeps.
func (c *IngestionCache) live(sessionID string) (*CacheEntry, error) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.entries[sessionID]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}

	entry.mu.Lock()
	isExpired := c.expired(entry, now)
	entry.mu.Unlock()

	if isExpired {
		c.mu.Lock()
		// Re-check under the write lock in case a racing Open replaced it
		if current, ok := c.entries[sessionID]; ok && current == entry {
			delete(c.entries, sessionID)
			if c.metrics != nil {
				c.metrics.RecordEviction("ttl")
			}
		}
		c.mu.Unlock()
		return nil, ErrCacheMiss
	}

	return entry, nil
}

// expired reports whether the entry has passed either expiry bound.
// Callers hold entry.mu.
func (c *IngestionCache) expired(entry *CacheEntry, now time.Time) bool {
	if now.After(entry.deadline) {
		return true
	}
	return now.Sub(entry.LastActivityAt) > c.config.InactivityWindow
}
