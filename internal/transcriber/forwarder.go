// Package transcriber forwards accepted audio chunks to the downstream
// speech-to-text provider. Forwarding is fire-and-forget from the
// ingestion pipeline's perspective; the provider's latency and responses
// are outside this service's contract.
package transcriber

import (
	"context"
	"time"
)

// ChunkMetadata carries session and format context alongside raw audio bytes
type ChunkMetadata struct {
	SessionID      string    `json:"session_id"`
	OrganizationID string    `json:"organization_id"`
	ChunkIndex     int64     `json:"chunk_index"`
	IsFinal        bool      `json:"is_final"`
	Format         string    `json:"format"`
	SampleRate     int       `json:"sample_rate"`
	Channels       int       `json:"channels"`
	Language       string    `json:"language,omitempty"`
	ReceivedAt     time.Time `json:"received_at"`
}

// Forwarder delivers chunk bytes plus metadata to a transcription provider
type Forwarder interface {
	Forward(ctx context.Context, meta ChunkMetadata, audio []byte) error
}

// Noop discards all chunks; used when no provider is configured
type Noop struct{}

// Forward discards the chunk
func (Noop) Forward(ctx context.Context, meta ChunkMetadata, audio []byte) error {
	return nil
}
