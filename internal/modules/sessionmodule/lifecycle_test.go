package sessionmodule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulpitworks/sermonscribe/internal/database"
	"github.com/pulpitworks/sermonscribe/internal/metrics"
	"github.com/pulpitworks/sermonscribe/internal/types"
)

func newLifecycleFixture(t *testing.T) (*LifecycleService, *IngestionCache, *SessionStore) {
	t.Helper()
	db := setupTestDB(t)
	logger := hclog.NewNullLogger()

	store := NewSessionStore(db, logger)
	cache := NewIngestionCache(CacheConfig{
		MaxSessionDuration: 4 * time.Hour,
		InactivityWindow:   30 * time.Minute,
	}, logger, metrics.NewTestMetrics())

	svc := NewLifecycleService(store, cache, nil, logger,
		[]string{"wav", "mp3", "m4a", "flac"},
		[]int{8000, 16000, 22050, 44100, 48000},
		10<<20)
	return svc, cache, store
}

func TestLifecycleCreateSession(t *testing.T) {
	svc, _, _ := newLifecycleFixture(t)

	session, err := svc.CreateSession(context.Background(), "org-1", "user-1", CreateSessionRequest{
		Title:       "Easter Sermon",
		Language:    "en",
		Diarization: true,
		Live:        true,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, session.ID)
	assert.Equal(t, database.SessionStatusCreated, session.Status)
	assert.Equal(t, "org-1", session.OrganizationID)
	assert.Nil(t, session.StartedAt)
	assert.Nil(t, session.EndedAt)
	assert.Zero(t, session.ActiveSeconds)
}

func TestLifecycleFullRecordingFlow(t *testing.T) {
	svc, _, _ := newLifecycleFixture(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "org-1", "user-1", CreateSessionRequest{Title: "Service"})
	require.NoError(t, err)

	session, err = svc.StartSession(ctx, session.ID, "org-1")
	require.NoError(t, err)
	assert.Equal(t, database.SessionStatusInProgress, session.Status)
	require.NotNil(t, session.StartedAt)
	firstStart := *session.StartedAt

	session, err = svc.PauseSession(ctx, session.ID, "org-1")
	require.NoError(t, err)
	assert.Equal(t, database.SessionStatusPaused, session.Status)

	session, err = svc.ResumeSession(ctx, session.ID, "org-1")
	require.NoError(t, err)
	assert.Equal(t, database.SessionStatusInProgress, session.Status)
	assert.Equal(t, firstStart, *session.StartedAt, "StartedAt is set once, not on resume")

	session, err = svc.CompleteSession(ctx, session.ID, "org-1")
	require.NoError(t, err)
	assert.Equal(t, database.SessionStatusCompleted, session.Status)
	require.NotNil(t, session.EndedAt)
	assert.GreaterOrEqual(t, session.ActiveSeconds, int64(0))
}

func TestLifecycleIllegalTransitions(t *testing.T) {
	svc, _, _ := newLifecycleFixture(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "org-1", "user-1", CreateSessionRequest{Title: "Service"})
	require.NoError(t, err)

	_, err = svc.PauseSession(ctx, session.ID, "org-1")
	assertAppErrorCode(t, err, types.ErrorCodeInvalidTransition)

	_, err = svc.CompleteSession(ctx, session.ID, "org-1")
	assertAppErrorCode(t, err, types.ErrorCodeInvalidTransition)

	_, err = svc.CancelSession(ctx, session.ID, "org-1")
	require.NoError(t, err)

	_, err = svc.StartSession(ctx, session.ID, "org-1")
	assertAppErrorCode(t, err, types.ErrorCodeInvalidTransition)
}

func TestLifecycleUpdateFrozenWhileRecording(t *testing.T) {
	svc, _, _ := newLifecycleFixture(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "org-1", "user-1", CreateSessionRequest{Title: "Service"})
	require.NoError(t, err)

	newTitle := "Renamed"
	updated, err := svc.UpdateSession(ctx, session.ID, "org-1", UpdateSessionRequest{Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)

	_, err = svc.StartSession(ctx, session.ID, "org-1")
	require.NoError(t, err)

	_, err = svc.UpdateSession(ctx, session.ID, "org-1", UpdateSessionRequest{Title: &newTitle})
	assertAppErrorCode(t, err, types.ErrorCodeSessionLocked)
}

func TestLifecycleDeleteGuards(t *testing.T) {
	svc, _, _ := newLifecycleFixture(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "org-1", "user-1", CreateSessionRequest{Title: "Service"})
	require.NoError(t, err)
	_, err = svc.StartSession(ctx, session.ID, "org-1")
	require.NoError(t, err)

	err = svc.DeleteSession(ctx, session.ID, "org-1")
	assertAppErrorCode(t, err, types.ErrorCodeSessionLocked)

	_, err = svc.CompleteSession(ctx, session.ID, "org-1")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSession(ctx, session.ID, "org-1"))

	_, err = svc.GetSession(ctx, session.ID, "org-1")
	assertAppErrorCode(t, err, types.ErrorCodeNotFound)
}

func TestLifecycleCrossTenantIsolation(t *testing.T) {
	svc, _, _ := newLifecycleFixture(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "org-1", "user-1", CreateSessionRequest{Title: "Service"})
	require.NoError(t, err)

	_, err = svc.GetSession(ctx, session.ID, "org-2")
	assertAppErrorCode(t, err, types.ErrorCodeNotFound)

	_, err = svc.StartSession(ctx, session.ID, "org-2")
	assertAppErrorCode(t, err, types.ErrorCodeNotFound)
}

func TestLifecycleStartStream(t *testing.T) {
	svc, cache, _ := newLifecycleFixture(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "org-1", "user-1", CreateSessionRequest{Title: "Service", Live: true})
	require.NoError(t, err)

	// Streaming requires an in-progress session
	_, err = svc.StartStream(ctx, session.ID, "org-1", "user-1", StartStreamRequest{
		Format: "wav", SampleRate: 16000, Channels: 1,
	})
	assertAppErrorCode(t, err, types.ErrorCodeSessionNotActive)

	_, err = svc.StartSession(ctx, session.ID, "org-1")
	require.NoError(t, err)

	entry, err := svc.StartStream(ctx, session.ID, "org-1", "user-1", StartStreamRequest{
		Format: "wav", SampleRate: 16000, Channels: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "wav", entry.Format)
	assert.Equal(t, 1, cache.Len())

	// A second stream for the same session conflicts
	_, err = svc.StartStream(ctx, session.ID, "org-1", "user-1", StartStreamRequest{
		Format: "wav", SampleRate: 16000, Channels: 1,
	})
	assertAppErrorCode(t, err, types.ErrorCodeStreamActive)
}

func TestLifecycleStartStreamValidation(t *testing.T) {
	svc, _, _ := newLifecycleFixture(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "org-1", "user-1", CreateSessionRequest{Title: "Service"})
	require.NoError(t, err)
	_, err = svc.StartSession(ctx, session.ID, "org-1")
	require.NoError(t, err)

	_, err = svc.StartStream(ctx, session.ID, "org-1", "user-1", StartStreamRequest{
		Format: "ogg", SampleRate: 16000, Channels: 1,
	})
	assertAppErrorCode(t, err, types.ErrorCodeValidation)

	_, err = svc.StartStream(ctx, session.ID, "org-1", "user-1", StartStreamRequest{
		Format: "wav", SampleRate: 12345, Channels: 1,
	})
	assertAppErrorCode(t, err, types.ErrorCodeValidation)

	_, err = svc.StartStream(ctx, session.ID, "org-1", "user-1", StartStreamRequest{
		Format: "wav", SampleRate: 16000, Channels: 5,
	})
	assertAppErrorCode(t, err, types.ErrorCodeValidation)
}

func TestLifecycleStopStreamIdempotent(t *testing.T) {
	svc, cache, _ := newLifecycleFixture(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "org-1", "user-1", CreateSessionRequest{Title: "Service"})
	require.NoError(t, err)
	_, err = svc.StartSession(ctx, session.ID, "org-1")
	require.NoError(t, err)

	_, err = svc.StartStream(ctx, session.ID, "org-1", "user-1", StartStreamRequest{
		Format: "wav", SampleRate: 16000, Channels: 1,
	})
	require.NoError(t, err)

	require.NoError(t, svc.StopStream(ctx, session.ID, "org-1"))
	require.NoError(t, svc.StopStream(ctx, session.ID, "org-1"))
	assert.Zero(t, cache.Len())
}

func TestLifecycleCompleteClosesStream(t *testing.T) {
	svc, cache, _ := newLifecycleFixture(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "org-1", "user-1", CreateSessionRequest{Title: "Service"})
	require.NoError(t, err)
	_, err = svc.StartSession(ctx, session.ID, "org-1")
	require.NoError(t, err)
	_, err = svc.StartStream(ctx, session.ID, "org-1", "user-1", StartStreamRequest{
		Format: "wav", SampleRate: 16000, Channels: 1,
	})
	require.NoError(t, err)

	_, err = svc.CompleteSession(ctx, session.ID, "org-1")
	require.NoError(t, err)
	assert.Zero(t, cache.Len(), "completing a session must close its stream")
}

func TestLifecycleStreamStatus(t *testing.T) {
	svc, cache, _ := newLifecycleFixture(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "org-1", "user-1", CreateSessionRequest{Title: "Service"})
	require.NoError(t, err)

	status, err := svc.GetStreamStatus(ctx, session.ID, "org-1")
	require.NoError(t, err)
	assert.False(t, status.IsActive)
	assert.False(t, status.CanReceiveAudio)
	assert.Equal(t, int64(10<<20), status.MaxChunkSizeBytes)

	_, err = svc.StartSession(ctx, session.ID, "org-1")
	require.NoError(t, err)

	// Recording, but no stream has been opened yet.
	require.Equal(t, 0, cache.Len())
	status, err = svc.GetStreamStatus(ctx, session.ID, "org-1")
	require.NoError(t, err)
	assert.False(t, status.IsActive)
	assert.False(t, status.CanReceiveAudio)

	_, err = svc.StartStream(ctx, session.ID, "org-1", "user-1", StartStreamRequest{
		Format: "wav", SampleRate: 16000, Channels: 1,
	})
	require.NoError(t, err)

	status, err = svc.GetStreamStatus(ctx, session.ID, "org-1")
	require.NoError(t, err)
	assert.True(t, status.IsActive)
	assert.True(t, status.CanReceiveAudio)
	assert.NotNil(t, status.LastActivityAt)

	err = svc.StopStream(ctx, session.ID, "org-1")
	require.NoError(t, err)

	status, err = svc.GetStreamStatus(ctx, session.ID, "org-1")
	require.NoError(t, err)
	assert.False(t, status.CanReceiveAudio)
}

func assertAppErrorCode(t *testing.T, err error, code types.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}
