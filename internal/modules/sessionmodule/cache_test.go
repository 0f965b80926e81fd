package sessionmodule

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulpitworks/sermonscribe/internal/database"
	"github.com/pulpitworks/sermonscribe/internal/metrics"
	"github.com/pulpitworks/sermonscribe/internal/types"
)

// fakeClock drives the cache's notion of time from the test
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(t *testing.T) (*IngestionCache, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	cache := NewIngestionCache(CacheConfig{
		MaxSessionDuration: 4 * time.Hour,
		InactivityWindow:   30 * time.Minute,
	}, hclog.NewNullLogger(), metrics.NewTestMetrics())
	cache.now = clock.Now
	return cache, clock
}

func TestCacheOpenAndGet(t *testing.T) {
	cache, _ := newTestCache(t)

	entry, err := cache.Open("sess-1", "org-1", "user-1", "wav", 16000, 1)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", entry.SessionID)
	assert.Equal(t, "org-1", entry.OrganizationID)
	assert.True(t, entry.Active)
	assert.Zero(t, entry.TotalChunks)
	assert.Zero(t, entry.TotalBytes)

	got, err := cache.Get("sess-1")
	require.NoError(t, err)
	assert.Equal(t, entry.SessionID, got.SessionID)
	assert.Equal(t, 1, cache.Len())
}

func TestCacheOpenConflictsWithActiveEntry(t *testing.T) {
	cache, _ := newTestCache(t)

	_, err := cache.Open("sess-1", "org-1", "user-1", "wav", 16000, 1)
	require.NoError(t, err)

	_, err = cache.Open("sess-1", "org-1", "user-2", "mp3", 44100, 2)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrorCodeStreamActive, appErr.Code)
}

func TestCacheOpenReplacesExpiredEntry(t *testing.T) {
	cache, clock := newTestCache(t)

	_, err := cache.Open("sess-1", "org-1", "user-1", "wav", 16000, 1)
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)

	entry, err := cache.Open("sess-1", "org-1", "user-1", "mp3", 44100, 2)
	require.NoError(t, err)
	assert.Equal(t, "mp3", entry.Format)
	assert.Zero(t, entry.TotalChunks)
}

func TestCacheOpenReplaceSettlesActiveStreamGauge(t *testing.T) {
	clock := newFakeClock()
	m := metrics.NewTestMetrics()
	cache := NewIngestionCache(CacheConfig{
		MaxSessionDuration: 4 * time.Hour,
		InactivityWindow:   30 * time.Minute,
	}, hclog.NewNullLogger(), m)
	cache.now = clock.Now

	_, err := cache.Open("sess-1", "org-1", "user-1", "wav", 16000, 1)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveStreams))

	// The entry goes stale without ever being closed.
	clock.Advance(31 * time.Minute)

	_, err = cache.Open("sess-1", "org-1", "user-1", "wav", 16000, 1)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveStreams))

	// A clean close followed by a reopen keeps the gauge balanced.
	cache.Close("sess-1")
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ActiveStreams))

	_, err = cache.Open("sess-1", "org-1", "user-1", "wav", 16000, 1)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveStreams))
}

func TestCacheRecordChunkAccumulates(t *testing.T) {
	cache, _ := newTestCache(t)

	_, err := cache.Open("sess-1", "org-1", "user-1", "wav", 16000, 1)
	require.NoError(t, err)

	for i := int64(0); i < 5; i++ {
		_, err := cache.RecordChunk("sess-1", 1000, i)
		require.NoError(t, err)
	}

	entry, err := cache.Get("sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), entry.TotalChunks)
	assert.Equal(t, int64(5000), entry.TotalBytes)
	assert.Equal(t, int64(4), entry.LastChunkIndex)
}

func TestCacheRecordChunkConcurrent(t *testing.T) {
	cache, _ := newTestCache(t)

	_, err := cache.Open("sess-1", "org-1", "user-1", "wav", 16000, 1)
	require.NoError(t, err)

	const workers = 50
	const chunksPerWorker = 20

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < chunksPerWorker; i++ {
				_, err := cache.RecordChunk("sess-1", 100, int64(worker*chunksPerWorker+i))
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	entry, err := cache.Get("sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*chunksPerWorker), entry.TotalChunks)
	assert.Equal(t, int64(workers*chunksPerWorker*100), entry.TotalBytes)
}

func TestCacheSlidingExpiry(t *testing.T) {
	cache, clock := newTestCache(t)

	_, err := cache.Open("sess-1", "org-1", "user-1", "wav", 16000, 1)
	require.NoError(t, err)

	// Activity every 20 minutes keeps the entry alive past the window
	for i := 0; i < 6; i++ {
		clock.Advance(20 * time.Minute)
		_, err := cache.Touch("sess-1")
		require.NoError(t, err, "touch %d should extend the sliding window", i)
	}

	// Silence longer than the window expires it
	clock.Advance(31 * time.Minute)
	_, err = cache.Touch("sess-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Zero(t, cache.Len())
}

func TestCacheAbsoluteDeadline(t *testing.T) {
	cache, clock := newTestCache(t)

	_, err := cache.Open("sess-1", "org-1", "user-1", "wav", 16000, 1)
	require.NoError(t, err)

	// Constant activity cannot push the entry past the absolute cap
	for i := 0; i < 24; i++ {
		clock.Advance(10 * time.Minute)
		if _, err := cache.Touch("sess-1"); err != nil {
			break
		}
	}
	clock.Advance(time.Minute)

	_, err = cache.Get("sess-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheCloseIsIdempotent(t *testing.T) {
	cache, _ := newTestCache(t)

	_, err := cache.Open("sess-1", "org-1", "user-1", "wav", 16000, 1)
	require.NoError(t, err)

	cache.Close("sess-1")
	cache.Close("sess-1")
	cache.Close("never-existed")

	_, err = cache.Get("sess-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Zero(t, cache.Len())
}

func TestCacheRefreshUpdatesSnapshot(t *testing.T) {
	cache, clock := newTestCache(t)

	_, err := cache.Open("sess-1", "org-1", "user-1", "wav", 16000, 1)
	require.NoError(t, err)

	refreshedAt := clock.Now().Add(time.Minute)
	cache.RefreshFromAuthoritative("sess-1", database.SessionStatusInProgress, refreshedAt)

	entry, err := cache.Get("sess-1")
	require.NoError(t, err)
	assert.Equal(t, database.SessionStatusInProgress, entry.Status)
	assert.Equal(t, refreshedAt, entry.StatusUpdatedAt)
}

func TestCacheRefreshClosesEntryWhenNotRecording(t *testing.T) {
	cache, clock := newTestCache(t)

	_, err := cache.Open("sess-1", "org-1", "user-1", "wav", 16000, 1)
	require.NoError(t, err)

	cache.RefreshFromAuthoritative("sess-1", database.SessionStatusPaused, clock.Now())

	_, err = cache.Get("sess-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheExpireStale(t *testing.T) {
	cache, clock := newTestCache(t)

	_, err := cache.Open("stale", "org-1", "user-1", "wav", 16000, 1)
	require.NoError(t, err)

	clock.Advance(20 * time.Minute)
	_, err = cache.Open("fresh", "org-1", "user-1", "wav", 16000, 1)
	require.NoError(t, err)

	clock.Advance(15 * time.Minute)
	expired := cache.ExpireStale()

	assert.Equal(t, []string{"stale"}, expired)
	assert.Equal(t, 1, cache.Len())

	_, err = cache.Get("fresh")
	assert.NoError(t, err)
}
