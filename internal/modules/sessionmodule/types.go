package sessionmodule

import (
	"time"
)

// CreateSessionRequest is the payload for creating a new session
type CreateSessionRequest struct {
	Title          string `json:"title" binding:"required"`
	Language       string `json:"language,omitempty"`
	Diarization    bool   `json:"diarization,omitempty"`
	Punctuation    bool   `json:"punctuation,omitempty"`
	WordTimestamps bool   `json:"word_timestamps,omitempty"`
	Live           bool   `json:"live,omitempty"`
}

// UpdateSessionRequest carries configuration changes; only set fields are
// applied. Configuration may not change while recording is in progress.
type UpdateSessionRequest struct {
	Title          *string `json:"title,omitempty"`
	Language       *string `json:"language,omitempty"`
	Diarization    *bool   `json:"diarization,omitempty"`
	Punctuation    *bool   `json:"punctuation,omitempty"`
	WordTimestamps *bool   `json:"word_timestamps,omitempty"`
}

// StartStreamRequest declares the audio properties of a new ingestion stream
type StartStreamRequest struct {
	Format     string `json:"format" binding:"required"`
	SampleRate int    `json:"sample_rate" binding:"required"`
	Channels   int    `json:"channels" binding:"required"`
}

// ChunkRequest is one audio chunk submitted against an active session
type ChunkRequest struct {
	SessionID      string
	OrganizationID string
	Data           []byte
	ChunkIndex     int64
	IsFinal        bool
}

// ChunkReceipt acknowledges an accepted chunk
type ChunkReceipt struct {
	ChunkIndex  int64     `json:"chunk_index"`
	Accepted    bool      `json:"accepted"`
	SizeBytes   int64     `json:"size_bytes"`
	ProcessedAt time.Time `json:"processed_at"`
}

// StreamStatus describes whether a session can currently receive audio
type StreamStatus struct {
	SessionID         string     `json:"session_id"`
	IsActive          bool       `json:"is_active"`
	CanReceiveAudio   bool       `json:"can_receive_audio"`
	LastActivityAt    *time.Time `json:"last_activity_at,omitempty"`
	MaxChunkSizeBytes int64      `json:"max_chunk_size_bytes"`
	SupportedFormats  []string   `json:"supported_formats"`
}
