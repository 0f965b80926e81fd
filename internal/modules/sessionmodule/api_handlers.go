package sessionmodule

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/pulpitworks/sermonscribe/internal/api"
	"github.com/pulpitworks/sermonscribe/internal/database"
	"github.com/pulpitworks/sermonscribe/internal/types"
)

const (
	headerOrganizationID = "X-Organization-ID"
	headerUserID         = "X-User-ID"
	headerChunkIndex     = "X-Chunk-Index"
	headerChunkFinal     = "X-Chunk-Final"
)

// Handlers exposes the session lifecycle and ingestion over HTTP
type Handlers struct {
	lifecycle *LifecycleService
	pipeline  *IngestionPipeline
	logger    hclog.Logger
}

// NewHandlers creates the HTTP handler set
func NewHandlers(lifecycle *LifecycleService, pipeline *IngestionPipeline, logger hclog.Logger) *Handlers {
	return &Handlers{
		lifecycle: lifecycle,
		pipeline:  pipeline,
		logger:    logger.Named("session-api"),
	}
}

// orgID extracts the caller's organization. Requests without one are
// rejected before touching any store.
func orgID(c *gin.Context) (string, bool) {
	id := c.GetHeader(headerOrganizationID)
	if id == "" {
		api.RespondWithValidationError(c, "missing organization header", headerOrganizationID+" is required")
		return "", false
	}
	return id, true
}

// CreateSession handles POST /api/sessions
func (h *Handlers) CreateSession(c *gin.Context) {
	org, ok := orgID(c)
	if !ok {
		return
	}

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondWithValidationError(c, "invalid request body", err.Error())
		return
	}

	session, err := h.lifecycle.CreateSession(c.Request.Context(), org, c.GetHeader(headerUserID), req)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// ListSessions handles GET /api/sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	org, ok := orgID(c)
	if !ok {
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			api.RespondWithValidationError(c, "invalid limit parameter")
			return
		}
		limit = parsed
	}

	sessions, err := h.lifecycle.ListSessions(c.Request.Context(), org, limit)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetSession handles GET /api/sessions/:id
func (h *Handlers) GetSession(c *gin.Context) {
	org, ok := orgID(c)
	if !ok {
		return
	}

	session, err := h.lifecycle.GetSession(c.Request.Context(), c.Param("id"), org)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// UpdateSession handles PATCH /api/sessions/:id
func (h *Handlers) UpdateSession(c *gin.Context) {
	org, ok := orgID(c)
	if !ok {
		return
	}

	var req UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondWithValidationError(c, "invalid request body", err.Error())
		return
	}

	session, err := h.lifecycle.UpdateSession(c.Request.Context(), c.Param("id"), org, req)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// DeleteSession handles DELETE /api/sessions/:id
func (h *Handlers) DeleteSession(c *gin.Context) {
	org, ok := orgID(c)
	if !ok {
		return
	}

	if err := h.lifecycle.DeleteSession(c.Request.Context(), c.Param("id"), org); err != nil {
		api.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session deleted"})
}

// Transition handlers: POST /api/sessions/:id/{start,pause,resume,complete,cancel}

func (h *Handlers) StartSession(c *gin.Context) {
	h.transition(c, h.lifecycle.StartSession)
}

func (h *Handlers) PauseSession(c *gin.Context) {
	h.transition(c, h.lifecycle.PauseSession)
}

func (h *Handlers) ResumeSession(c *gin.Context) {
	h.transition(c, h.lifecycle.ResumeSession)
}

func (h *Handlers) CompleteSession(c *gin.Context) {
	h.transition(c, h.lifecycle.CompleteSession)
}

func (h *Handlers) CancelSession(c *gin.Context) {
	h.transition(c, h.lifecycle.CancelSession)
}

func (h *Handlers) transition(c *gin.Context, fn func(ctx context.Context, id, org string) (*database.TranscriptionSession, error)) {
	org, ok := orgID(c)
	if !ok {
		return
	}

	session, err := fn(c.Request.Context(), c.Param("id"), org)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// StartStream handles POST /api/sessions/:id/stream
func (h *Handlers) StartStream(c *gin.Context) {
	org, ok := orgID(c)
	if !ok {
		return
	}

	var req StartStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondWithValidationError(c, "invalid request body", err.Error())
		return
	}

	entry, err := h.lifecycle.StartStream(c.Request.Context(), c.Param("id"), org, c.GetHeader(headerUserID), req)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"session_id":  entry.SessionID,
		"format":      entry.Format,
		"sample_rate": entry.SampleRate,
		"channels":    entry.Channels,
		"started_at":  entry.StartedAt,
	})
}

// StopStream handles DELETE /api/sessions/:id/stream
func (h *Handlers) StopStream(c *gin.Context) {
	org, ok := orgID(c)
	if !ok {
		return
	}

	if err := h.lifecycle.StopStream(c.Request.Context(), c.Param("id"), org); err != nil {
		api.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "stream stopped"})
}

// GetStreamStatus handles GET /api/sessions/:id/stream
func (h *Handlers) GetStreamStatus(c *gin.Context) {
	org, ok := orgID(c)
	if !ok {
		return
	}

	status, err := h.lifecycle.GetStreamStatus(c.Request.Context(), c.Param("id"), org)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// SubmitChunk handles POST /api/sessions/:id/chunks. The chunk payload is
// the raw request body; index and final flags travel as headers so the
// audio bytes need no envelope.
func (h *Handlers) SubmitChunk(c *gin.Context) {
	org, ok := orgID(c)
	if !ok {
		return
	}

	chunkIndex := int64(0)
	if raw := c.GetHeader(headerChunkIndex); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			api.RespondWithValidationError(c, "invalid chunk index header")
			return
		}
		chunkIndex = parsed
	}

	// Reading one past the limit lets the pipeline report the size in
	// its rejection; anything larger is cut off here.
	limit := h.pipeline.config.MaxChunkSizeBytes + 1
	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, limit))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			appErr := types.NewAppError(types.ErrorCodeChunkTooLarge,
				"chunk exceeds maximum size",
				types.HTTPStatusFromErrorCode(types.ErrorCodeChunkTooLarge))
			appErr.Severity = types.SeverityWarning
			api.RespondWithError(c, appErr.WithContext("max_bytes", h.pipeline.config.MaxChunkSizeBytes))
			return
		}
		api.RespondWithError(c, types.NewValidationError("failed to read chunk body"))
		return
	}

	receipt, err := h.pipeline.SubmitChunk(c.Request.Context(), ChunkRequest{
		SessionID:      c.Param("id"),
		OrganizationID: org,
		Data:           data,
		ChunkIndex:     chunkIndex,
		IsFinal:        c.GetHeader(headerChunkFinal) == "true",
	})
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}
