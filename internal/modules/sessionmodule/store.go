package sessionmodule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/pulpitworks/sermonscribe/internal/database"
	"github.com/pulpitworks/sermonscribe/internal/types"
)

// SessionStore is the durable, authoritative repository for transcription
// sessions. The ingestion cache is only ever a projection of this store.
type SessionStore struct {
	db     *gorm.DB
	logger hclog.Logger
}

// NewSessionStore creates a new session store
func NewSessionStore(db *gorm.DB, logger hclog.Logger) *SessionStore {
	return &SessionStore{
		db:     db,
		logger: logger.Named("session-store"),
	}
}

// Create persists a new session in status created
func (s *SessionStore) Create(ctx context.Context, orgID, userID string, req CreateSessionRequest) (*database.TranscriptionSession, error) {
	session := &database.TranscriptionSession{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		CreatedBy:      userID,
		Title:          req.Title,
		Language:       req.Language,
		Diarization:    req.Diarization,
		Punctuation:    req.Punctuation,
		WordTimestamps: req.WordTimestamps,
		Live:           req.Live,
		Status:         database.SessionStatusCreated,
	}

	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, types.NewInternalError("failed to create session", err)
	}

	s.logger.Info("created transcription session",
		"session_id", session.ID,
		"organization_id", orgID,
		"live", session.Live)

	return session, nil
}

// GetByID fetches a session scoped to an organization. A session that
// exists under a different organization is reported as not found to avoid
// leaking its existence across tenants.
func (s *SessionStore) GetByID(ctx context.Context, id, orgID string) (*database.TranscriptionSession, error) {
	var session database.TranscriptionSession
	err := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", id, orgID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NewNotFoundError("session", id)
		}
		return nil, types.NewInternalError("failed to fetch session", err)
	}
	return &session, nil
}

// Update persists configuration changes
func (s *SessionStore) Update(ctx context.Context, session *database.TranscriptionSession) error {
	if err := s.db.WithContext(ctx).Save(session).Error; err != nil {
		return types.NewInternalError("failed to update session", err)
	}
	return nil
}

// Delete removes a session permanently
func (s *SessionStore) Delete(ctx context.Context, id, orgID string) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", id, orgID).
		Delete(&database.TranscriptionSession{})
	if result.Error != nil {
		return types.NewInternalError("failed to delete session", result.Error)
	}
	if result.RowsAffected == 0 {
		return types.NewNotFoundError("session", id)
	}
	return nil
}

// ListByOrganization returns an organization's sessions, newest first
func (s *SessionStore) ListByOrganization(ctx context.Context, orgID string, limit int) ([]*database.TranscriptionSession, error) {
	query := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var sessions []*database.TranscriptionSession
	if err := query.Find(&sessions).Error; err != nil {
		return nil, types.NewInternalError("failed to list sessions", err)
	}
	return sessions, nil
}

// ListActive returns all sessions currently in progress or paused across
// all organizations. Callers filter by organization where needed.
func (s *SessionStore) ListActive(ctx context.Context) ([]*database.TranscriptionSession, error) {
	var sessions []*database.TranscriptionSession
	err := s.db.WithContext(ctx).
		Where("status IN ?", []database.SessionStatus{
			database.SessionStatusInProgress,
			database.SessionStatusPaused,
		}).
		Order("updated_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, types.NewInternalError("failed to list active sessions", err)
	}
	return sessions, nil
}

// ApplyTransition applies a state machine operation to the stored session
// and persists the resulting status and timing fields. Duration accounting:
// StartedAt is set once on first entry to in_progress, ActiveSeconds
// accumulates on every transition out of in_progress, and EndedAt is set
// when a terminal status is reached.
func (s *SessionStore) ApplyTransition(ctx context.Context, session *database.TranscriptionSession, op Op) error {
	from := session.Status
	to, err := Transition(from, op)
	if err != nil {
		return err
	}

	now := time.Now()
	if to == database.SessionStatusInProgress {
		if session.StartedAt == nil {
			session.StartedAt = &now
		}
		// Resume re-anchors the active interval at UpdatedAt via Save below.
	}
	if from == database.SessionStatusInProgress && to != from {
		session.ActiveSeconds += int64(now.Sub(lastActiveAnchor(session)).Seconds())
	}
	if to.Terminal() {
		session.EndedAt = &now
	}
	session.Status = to

	if err := s.db.WithContext(ctx).Save(session).Error; err != nil {
		return types.NewInternalError(fmt.Sprintf("failed to persist %s transition", op), err)
	}

	s.logger.Info("session transition",
		"session_id", session.ID,
		"from", from,
		"to", to,
		"active_seconds", session.ActiveSeconds)
	return nil
}

// lastActiveAnchor is the instant the current in_progress interval began:
// UpdatedAt for a resumed session, StartedAt for the first interval.
func lastActiveAnchor(session *database.TranscriptionSession) time.Time {
	if session.StartedAt == nil {
		return session.UpdatedAt
	}
	if session.UpdatedAt.After(*session.StartedAt) {
		return session.UpdatedAt
	}
	return *session.StartedAt
}
