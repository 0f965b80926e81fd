package sessionmodule

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"

	"github.com/pulpitworks/sermonscribe/internal/api"
	"github.com/pulpitworks/sermonscribe/internal/types"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 4 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
)

// StreamSocket serves the websocket ingest endpoint. Each binary message
// is one audio chunk and flows through the same admission pipeline as the
// HTTP chunk endpoint; receipts are written back as JSON text messages.
type StreamSocket struct {
	pipeline *IngestionPipeline
	logger   hclog.Logger
}

// NewStreamSocket creates the websocket handler
func NewStreamSocket(pipeline *IngestionPipeline, logger hclog.Logger) *StreamSocket {
	return &StreamSocket{
		pipeline: pipeline,
		logger:   logger.Named("stream-ws"),
	}
}

// Serve handles GET /api/sessions/:id/stream/ws
func (s *StreamSocket) Serve(c *gin.Context) {
	org, ok := orgID(c)
	if !ok {
		return
	}
	sessionID := c.Param("id")

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		api.RespondWithError(c, types.NewValidationError("websocket upgrade failed"))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(s.pipeline.config.MaxChunkSizeBytes + 1)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	s.logger.Info("websocket stream opened", "session_id", sessionID, "organization_id", org)

	var chunkIndex int64
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket stream aborted", "session_id", sessionID, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		if messageType != websocket.BinaryMessage {
			continue
		}

		receipt, err := s.pipeline.SubmitChunk(c.Request.Context(), ChunkRequest{
			SessionID:      sessionID,
			OrganizationID: org,
			Data:           data,
			ChunkIndex:     chunkIndex,
		})
		if err != nil {
			s.writeError(conn, sessionID, err)
			return
		}
		chunkIndex++

		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(receipt); err != nil {
			s.logger.Warn("websocket receipt write failed", "session_id", sessionID, "error", err)
			return
		}
	}
}

// writeError sends a structured error frame and a close frame. Admission
// failures end the stream: the client must resolve the session state
// before sending more audio.
func (s *StreamSocket) writeError(conn *websocket.Conn, sessionID string, err error) {
	payload := gin.H{"error": err.Error()}
	if appErr, ok := err.(*types.AppError); ok {
		payload = gin.H{
			"error": appErr.Message,
			"code":  string(appErr.Code),
		}
	}

	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if writeErr := conn.WriteJSON(payload); writeErr != nil {
		s.logger.Debug("websocket error write failed", "session_id", sessionID, "error", writeErr)
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""))
}
