package sessionmodule

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/dhowden/tag"
	"github.com/hashicorp/go-hclog"

	"github.com/pulpitworks/sermonscribe/internal/database"
	"github.com/pulpitworks/sermonscribe/internal/metrics"
	"github.com/pulpitworks/sermonscribe/internal/transcriber"
	"github.com/pulpitworks/sermonscribe/internal/types"
)

// Defaults applied when an ingestion entry is rebuilt after eviction. The
// client-declared format is not persisted, so recovery is lossy: the entry
// resumes with a guessed format rather than failing ingestion mid-sermon.
const (
	recoveredFormat     = "unknown"
	recoveredSampleRate = 16000
	recoveredChannels   = 1
)

// PipelineConfig bounds chunk admission
type PipelineConfig struct {
	MaxChunkSizeBytes int64
}

// IngestionPipeline validates and records audio chunks against the
// ingestion cache and the authoritative session status. It is an accounting
// and admission layer: chunk ordering and reassembly belong to the
// downstream provider, so out-of-order and duplicate indices are accepted.
type IngestionPipeline struct {
	store     *SessionStore
	cache     *IngestionCache
	forwarder transcriber.Forwarder
	config    PipelineConfig
	logger    hclog.Logger
	metrics   *metrics.Metrics
}

// NewIngestionPipeline creates a pipeline over the given store and cache
func NewIngestionPipeline(store *SessionStore, cache *IngestionCache, forwarder transcriber.Forwarder, config PipelineConfig, logger hclog.Logger, m *metrics.Metrics) *IngestionPipeline {
	if config.MaxChunkSizeBytes <= 0 {
		config.MaxChunkSizeBytes = 10 << 20
	}
	if forwarder == nil {
		forwarder = transcriber.Noop{}
	}
	return &IngestionPipeline{
		store:     store,
		cache:     cache,
		forwarder: forwarder,
		config:    config,
		logger:    logger.Named("ingestion-pipeline"),
		metrics:   m,
	}
}

// SubmitChunk admits one audio chunk. On a cache miss it reconciles
// against the session store and rebuilds the entry before proceeding.
func (p *IngestionPipeline) SubmitChunk(ctx context.Context, req ChunkRequest) (*ChunkReceipt, error) {
	entry, err := p.cache.Touch(req.SessionID)
	if errors.Is(err, ErrCacheMiss) {
		entry, err = p.reconcile(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	// Re-check tenancy on every chunk: a stale entry must never let one
	// organization write into another's session.
	if entry.OrganizationID != req.OrganizationID {
		p.reject("forbidden")
		return nil, types.NewForbiddenError("session", req.OrganizationID).
			WithContext("session_id", req.SessionID)
	}

	if entry.Status != database.SessionStatusInProgress {
		p.reject("not_active")
		return nil, types.NewSessionNotActiveError(req.SessionID, string(entry.Status))
	}

	size := int64(len(req.Data))
	if size == 0 {
		p.reject("empty")
		return nil, types.NewAppError(types.ErrorCodeEmptyChunk,
			"chunk payload is empty",
			types.HTTPStatusFromErrorCode(types.ErrorCodeEmptyChunk)).
			WithContext("session_id", req.SessionID)
	}
	if size > p.config.MaxChunkSizeBytes {
		p.reject("too_large")
		err := types.NewAppError(types.ErrorCodeChunkTooLarge,
			"chunk exceeds maximum size",
			types.HTTPStatusFromErrorCode(types.ErrorCodeChunkTooLarge))
		err.Severity = types.SeverityWarning
		return nil, err.
			WithContext("size_bytes", size).
			WithContext("max_bytes", p.config.MaxChunkSizeBytes)
	}

	entry, err = p.cache.RecordChunk(req.SessionID, size, req.ChunkIndex)
	if errors.Is(err, ErrCacheMiss) {
		// The entry expired between touch and record; rebuild once.
		if entry, err = p.reconcile(ctx, req); err == nil {
			entry, err = p.cache.RecordChunk(req.SessionID, size, req.ChunkIndex)
		}
	}
	if err != nil {
		return nil, err
	}

	if p.metrics != nil {
		p.metrics.RecordChunkAccepted(size)
	}

	p.handoff(entry, req)

	return &ChunkReceipt{
		ChunkIndex:  req.ChunkIndex,
		Accepted:    true,
		SizeBytes:   size,
		ProcessedAt: time.Now(),
	}, nil
}

// reconcile rebuilds the cache entry from the authoritative session record.
// The original client-declared audio properties are unrecoverable, so the
// entry resumes with defaults, improved by sniffing the chunk bytes.
func (p *IngestionPipeline) reconcile(ctx context.Context, req ChunkRequest) (CacheEntry, error) {
	session, err := p.store.GetByID(ctx, req.SessionID, req.OrganizationID)
	if err != nil {
		return CacheEntry{}, err
	}

	if session.Status != database.SessionStatusInProgress {
		p.reject("not_active")
		return CacheEntry{}, types.NewSessionNotActiveError(session.ID, string(session.Status))
	}

	format := sniffFormat(req.Data)
	entry, err := p.cache.Open(session.ID, session.OrganizationID, session.CreatedBy,
		format, recoveredSampleRate, recoveredChannels)
	if err != nil {
		// A concurrent chunk won the rebuild race; use its entry.
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrorCodeStreamActive {
			return p.cache.Touch(session.ID)
		}
		return CacheEntry{}, err
	}

	if p.metrics != nil {
		p.metrics.RecordReconciliation()
	}
	p.logger.Info("rebuilt ingestion entry after cache miss",
		"session_id", session.ID,
		"format", format)

	return entry, nil
}

// handoff forwards the accepted chunk to the transcription provider.
// Fire-and-forget: failures are logged and counted, never surfaced to the
// submitting client.
func (p *IngestionPipeline) handoff(entry CacheEntry, req ChunkRequest) {
	data := req.Data
	meta := transcriber.ChunkMetadata{
		SessionID:      req.SessionID,
		OrganizationID: req.OrganizationID,
		ChunkIndex:     req.ChunkIndex,
		IsFinal:        req.IsFinal,
		Format:         entry.Format,
		SampleRate:     entry.SampleRate,
		Channels:       entry.Channels,
		ReceivedAt:     time.Now(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := p.forwarder.Forward(ctx, meta, data)
		if p.metrics != nil {
			p.metrics.RecordForward(err == nil)
		}
		if err != nil {
			p.logger.Warn("chunk forward failed",
				"session_id", meta.SessionID,
				"chunk_index", meta.ChunkIndex,
				"error", err)
		}
	}()
}

func (p *IngestionPipeline) reject(reason string) {
	if p.metrics != nil {
		p.metrics.RecordChunkRejected(reason)
	}
}

// sniffFormat makes a best-effort guess at the audio container from raw
// chunk bytes. Only the first chunk of a rebuilt stream carries a header,
// and even then identification can fail, so "unknown" remains a valid
// outcome.
func sniffFormat(data []byte) string {
	if len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")) {
		return "wav"
	}

	_, fileType, err := tag.Identify(bytes.NewReader(data))
	if err != nil {
		return recoveredFormat
	}
	switch fileType {
	case tag.MP3:
		return "mp3"
	case tag.M4A, tag.M4B, tag.M4P, tag.ALAC:
		return "m4a"
	case tag.FLAC:
		return "flac"
	default:
		return recoveredFormat
	}
}
