package sessionmodule

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/pulpitworks/sermonscribe/internal/database"
	"github.com/pulpitworks/sermonscribe/internal/events"
	"github.com/pulpitworks/sermonscribe/internal/types"
)

// LifecycleService owns session state transitions and keeps the ingestion
// cache's denormalized status in step with the authoritative record.
type LifecycleService struct {
	store    *SessionStore
	cache    *IngestionCache
	eventBus events.EventBus
	logger   hclog.Logger

	supportedFormats []string
	supportedRates   []int
	maxChunkBytes    int64
}

// NewLifecycleService creates the lifecycle service
func NewLifecycleService(store *SessionStore, cache *IngestionCache, bus events.EventBus, logger hclog.Logger, formats []string, rates []int, maxChunkBytes int64) *LifecycleService {
	return &LifecycleService{
		store:            store,
		cache:            cache,
		eventBus:         bus,
		logger:           logger.Named("session-lifecycle"),
		supportedFormats: formats,
		supportedRates:   rates,
		maxChunkBytes:    maxChunkBytes,
	}
}

// CreateSession creates a new session owned by the given organization
func (l *LifecycleService) CreateSession(ctx context.Context, orgID, userID string, req CreateSessionRequest) (*database.TranscriptionSession, error) {
	session, err := l.store.Create(ctx, orgID, userID, req)
	if err != nil {
		return nil, err
	}

	l.publish(events.EventSessionCreated, session, "session created")
	return session, nil
}

// GetSession returns a single session scoped to the organization
func (l *LifecycleService) GetSession(ctx context.Context, id, orgID string) (*database.TranscriptionSession, error) {
	return l.store.GetByID(ctx, id, orgID)
}

// ListSessions returns the organization's sessions, newest first
func (l *LifecycleService) ListSessions(ctx context.Context, orgID string, limit int) ([]*database.TranscriptionSession, error) {
	return l.store.ListByOrganization(ctx, orgID, limit)
}

// UpdateSession applies configuration changes. Configuration is frozen
// while recording is in progress.
func (l *LifecycleService) UpdateSession(ctx context.Context, id, orgID string, req UpdateSessionRequest) (*database.TranscriptionSession, error) {
	session, err := l.store.GetByID(ctx, id, orgID)
	if err != nil {
		return nil, err
	}
	if !CanModify(session.Status) {
		return nil, types.NewConflictError(types.ErrorCodeSessionLocked,
			"session configuration cannot change while recording").
			WithContext("session_id", id).
			WithContext("status", string(session.Status))
	}

	if req.Title != nil {
		session.Title = *req.Title
	}
	if req.Language != nil {
		session.Language = *req.Language
	}
	if req.Diarization != nil {
		session.Diarization = *req.Diarization
	}
	if req.Punctuation != nil {
		session.Punctuation = *req.Punctuation
	}
	if req.WordTimestamps != nil {
		session.WordTimestamps = *req.WordTimestamps
	}

	if err := l.store.Update(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// DeleteSession removes a session. An in-progress session must be
// completed or cancelled first.
func (l *LifecycleService) DeleteSession(ctx context.Context, id, orgID string) error {
	session, err := l.store.GetByID(ctx, id, orgID)
	if err != nil {
		return err
	}
	if !CanDelete(session.Status) {
		return types.NewConflictError(types.ErrorCodeSessionLocked,
			"session cannot be deleted while recording").
			WithContext("session_id", id)
	}

	if err := l.store.Delete(ctx, id, orgID); err != nil {
		return err
	}

	l.cache.Close(id)
	l.publish(events.EventSessionDeleted, session, "session deleted")
	return nil
}

// StartSession moves a session into recording
func (l *LifecycleService) StartSession(ctx context.Context, id, orgID string) (*database.TranscriptionSession, error) {
	return l.transition(ctx, id, orgID, OpStart, events.EventSessionStarted)
}

// PauseSession suspends recording without ending the session
func (l *LifecycleService) PauseSession(ctx context.Context, id, orgID string) (*database.TranscriptionSession, error) {
	return l.transition(ctx, id, orgID, OpPause, events.EventSessionPaused)
}

// ResumeSession continues a paused session
func (l *LifecycleService) ResumeSession(ctx context.Context, id, orgID string) (*database.TranscriptionSession, error) {
	return l.transition(ctx, id, orgID, OpResume, events.EventSessionResumed)
}

// CompleteSession ends a session normally
func (l *LifecycleService) CompleteSession(ctx context.Context, id, orgID string) (*database.TranscriptionSession, error) {
	return l.transition(ctx, id, orgID, OpComplete, events.EventSessionCompleted)
}

// CancelSession abandons a session from any non-terminal state
func (l *LifecycleService) CancelSession(ctx context.Context, id, orgID string) (*database.TranscriptionSession, error) {
	return l.transition(ctx, id, orgID, OpCancel, events.EventSessionCancelled)
}

func (l *LifecycleService) transition(ctx context.Context, id, orgID string, op Op, eventType events.EventType) (*database.TranscriptionSession, error) {
	session, err := l.store.GetByID(ctx, id, orgID)
	if err != nil {
		return nil, err
	}

	if err := l.store.ApplyTransition(ctx, session, op); err != nil {
		return nil, err
	}

	// The cached status is advisory and may lag; push the new status so
	// in-flight chunk submissions see it without a store round trip.
	l.cache.RefreshFromAuthoritative(session.ID, session.Status, session.UpdatedAt)
	if session.Status.Terminal() {
		l.cache.Close(session.ID)
	}

	l.publish(eventType, session, "session "+string(op))
	return session, nil
}

// StartStream opens an ingestion entry for a live session. The session
// must already be recording.
func (l *LifecycleService) StartStream(ctx context.Context, id, orgID, userID string, req StartStreamRequest) (*CacheEntry, error) {
	session, err := l.store.GetByID(ctx, id, orgID)
	if err != nil {
		return nil, err
	}
	if session.Status != database.SessionStatusInProgress {
		return nil, types.NewSessionNotActiveError(id, string(session.Status))
	}

	if err := l.validateStreamRequest(req); err != nil {
		return nil, err
	}

	entry, err := l.cache.Open(session.ID, session.OrganizationID, userID,
		req.Format, req.SampleRate, req.Channels)
	if err != nil {
		return nil, err
	}

	l.publish(events.EventStreamStarted, session, "ingestion stream opened")
	return &entry, nil
}

// StopStream closes the ingestion entry. Stopping a session with no
// active stream is a no-op.
func (l *LifecycleService) StopStream(ctx context.Context, id, orgID string) error {
	session, err := l.store.GetByID(ctx, id, orgID)
	if err != nil {
		return err
	}

	l.cache.Close(id)
	l.publish(events.EventStreamStopped, session, "ingestion stream closed")
	return nil
}

// GetStreamStatus reports whether the session can receive audio right now
func (l *LifecycleService) GetStreamStatus(ctx context.Context, id, orgID string) (*StreamStatus, error) {
	session, err := l.store.GetByID(ctx, id, orgID)
	if err != nil {
		return nil, err
	}

	status := &StreamStatus{
		SessionID:         id,
		MaxChunkSizeBytes: l.maxChunkBytes,
		SupportedFormats:  l.supportedFormats,
	}

	entry, cacheErr := l.cache.Get(id)
	if cacheErr == nil {
		status.IsActive = entry.Active
		last := entry.LastActivityAt
		status.LastActivityAt = &last
	}
	// Chunks are only accepted while a live ingestion entry is open.
	status.CanReceiveAudio = session.Status == database.SessionStatusInProgress &&
		cacheErr == nil && entry.Active

	return status, nil
}

// RefreshSessionData re-reads the authoritative record and pushes its
// status into the ingestion cache.
func (l *LifecycleService) RefreshSessionData(ctx context.Context, id, orgID string) error {
	session, err := l.store.GetByID(ctx, id, orgID)
	if err != nil {
		return err
	}
	l.cache.RefreshFromAuthoritative(session.ID, session.Status, session.UpdatedAt)
	return nil
}

func (l *LifecycleService) validateStreamRequest(req StartStreamRequest) error {
	formatOK := false
	for _, f := range l.supportedFormats {
		if f == req.Format {
			formatOK = true
			break
		}
	}
	if !formatOK {
		return types.NewValidationError("unsupported audio format").
			WithContext("format", req.Format).
			WithContext("supported", l.supportedFormats)
	}

	rateOK := false
	for _, r := range l.supportedRates {
		if r == req.SampleRate {
			rateOK = true
			break
		}
	}
	if !rateOK {
		return types.NewValidationError("unsupported sample rate").
			WithContext("sample_rate", req.SampleRate).
			WithContext("supported", l.supportedRates)
	}

	if req.Channels < 1 || req.Channels > 2 {
		return types.NewValidationError("channel count must be 1 or 2").
			WithContext("channels", req.Channels)
	}
	return nil
}

func (l *LifecycleService) publish(eventType events.EventType, session *database.TranscriptionSession, message string) {
	if l.eventBus == nil {
		return
	}
	event := events.NewSystemEvent(eventType, session.Title, message)
	event.Source = "sessionmodule"
	event.Data = map[string]interface{}{
		"session_id":      session.ID,
		"organization_id": session.OrganizationID,
		"status":          string(session.Status),
	}
	if err := l.eventBus.PublishAsync(event); err != nil {
		l.logger.Debug("event publish skipped", "type", eventType, "error", err)
	}
}
