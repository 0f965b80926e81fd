package database

import (
	"time"
)

// SessionStatus represents the authoritative status of a transcription session
type SessionStatus string

const (
	SessionStatusCreated    SessionStatus = "created"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusPaused     SessionStatus = "paused"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusCancelled  SessionStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

// TranscriptionSession represents a bounded unit of live or file-based
// transcription work owned by one organization. The organization scope is
// fixed for the session's entire lifetime.
type TranscriptionSession struct {
	ID             string        `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OrganizationID string        `gorm:"index;type:varchar(64);not null" json:"organization_id"`
	CreatedBy      string        `gorm:"type:varchar(64)" json:"created_by"`
	Title          string        `gorm:"type:varchar(256);not null" json:"title"`
	Language       string        `gorm:"type:varchar(16)" json:"language"`
	Diarization    bool          `json:"diarization"`
	Punctuation    bool          `json:"punctuation"`
	WordTimestamps bool          `json:"word_timestamps"`
	Live           bool          `json:"live"`
	Status         SessionStatus `gorm:"type:varchar(32);not null;index" json:"status"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	EndedAt        *time.Time    `json:"ended_at,omitempty"`

	// Cumulative seconds spent in_progress, not wall clock since creation.
	// Accumulated on every transition out of in_progress.
	ActiveSeconds int64 `json:"active_seconds"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}

// TableName returns the table name for GORM
func (TranscriptionSession) TableName() string {
	return "transcription_sessions"
}

// Organization represents a tenant
type Organization struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name      string    `gorm:"type:varchar(256);not null" json:"name"`
	Plan      string    `gorm:"type:varchar(32);not null" json:"plan"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User represents a member of an organization
type User struct {
	ID             string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OrganizationID string    `gorm:"index;type:varchar(64);not null" json:"organization_id"`
	Email          string    `gorm:"uniqueIndex;type:varchar(256);not null" json:"email"`
	DisplayName    string    `gorm:"type:varchar(256)" json:"display_name"`
	Role           string    `gorm:"type:varchar(32);not null" json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Subscription represents an organization's billing plan state
type Subscription struct {
	ID             string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OrganizationID string     `gorm:"index;type:varchar(64);not null" json:"organization_id"`
	Plan           string     `gorm:"type:varchar(32);not null" json:"plan"`
	Status         string     `gorm:"type:varchar(32);not null;index" json:"status"`
	RenewsAt       *time.Time `json:"renews_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Invitation represents a pending invite to join an organization
type Invitation struct {
	ID             string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OrganizationID string     `gorm:"index;type:varchar(64);not null" json:"organization_id"`
	Email          string     `gorm:"index;type:varchar(256);not null" json:"email"`
	Role           string     `gorm:"type:varchar(32);not null" json:"role"`
	Token          string     `gorm:"uniqueIndex;type:varchar(128);not null" json:"-"`
	ExpiresAt      time.Time  `gorm:"not null" json:"expires_at"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
