package sessionmodule

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulpitworks/sermonscribe/internal/metrics"
)

func setupSessionRouter(t *testing.T, maxChunkBytes int64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t)
	logger := hclog.NewNullLogger()
	m := metrics.NewTestMetrics()

	store := NewSessionStore(db, logger)
	cache := NewIngestionCache(CacheConfig{
		MaxSessionDuration: 4 * time.Hour,
		InactivityWindow:   30 * time.Minute,
	}, logger, m)
	pipeline := NewIngestionPipeline(store, cache, nil, PipelineConfig{
		MaxChunkSizeBytes: maxChunkBytes,
	}, logger, m)
	lifecycle := NewLifecycleService(store, cache, nil, logger,
		[]string{"wav", "mp3"}, []int{16000, 44100}, maxChunkBytes)
	handlers := NewHandlers(lifecycle, pipeline, logger)

	router := gin.New()
	sessions := router.Group("/api/sessions")
	sessions.POST("", handlers.CreateSession)
	sessions.GET("/:id", handlers.GetSession)
	sessions.POST("/:id/start", handlers.StartSession)
	sessions.POST("/:id/complete", handlers.CompleteSession)
	sessions.POST("/:id/stream", handlers.StartStream)
	sessions.GET("/:id/stream", handlers.GetStreamStatus)
	sessions.POST("/:id/chunks", handlers.SubmitChunk)
	return router
}

func createSessionViaAPI(t *testing.T, router *gin.Engine, org string) string {
	t.Helper()
	body, _ := json.Marshal(gin.H{"title": "Sunday Service", "live": true})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerOrganizationID, org)
	req.Header.Set(headerUserID, "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var session struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	return session.ID
}

func post(router *gin.Engine, path, org string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	if org != "" {
		req.Header.Set(headerOrganizationID, org)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateSessionRequiresOrganizationHeader(t *testing.T) {
	router := setupSessionRouter(t, 10<<20)

	w := post(router, "/api/sessions", "", []byte(`{"title":"x"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	router := setupSessionRouter(t, 10<<20)
	id := createSessionViaAPI(t, router, "org-1")

	w := post(router, "/api/sessions/"+id+"/start", "org-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "in_progress")

	// Starting twice conflicts
	w = post(router, "/api/sessions/"+id+"/start", "org-1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = post(router, "/api/sessions/"+id+"/complete", "org-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "completed")
}

func TestSessionCrossTenantOverHTTP(t *testing.T) {
	router := setupSessionRouter(t, 10<<20)
	id := createSessionViaAPI(t, router, "org-1")

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil)
	req.Header.Set(headerOrganizationID, "org-2")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChunkEndpoint(t *testing.T) {
	router := setupSessionRouter(t, 1024)
	id := createSessionViaAPI(t, router, "org-1")

	w := post(router, "/api/sessions/"+id+"/start", "org-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	streamBody, _ := json.Marshal(gin.H{"format": "wav", "sample_rate": 16000, "channels": 1})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/stream", bytes.NewReader(streamBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerOrganizationID, "org-1")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	t.Run("accepted chunk returns receipt", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/chunks",
			bytes.NewReader(bytes.Repeat([]byte{0x01}, 512)))
		req.Header.Set(headerOrganizationID, "org-1")
		req.Header.Set(headerChunkIndex, "0")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var receipt ChunkReceipt
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &receipt))
		assert.True(t, receipt.Accepted)
		assert.Equal(t, int64(512), receipt.SizeBytes)
	})

	t.Run("oversized chunk is rejected with 413", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/chunks",
			bytes.NewReader(bytes.Repeat([]byte{0x01}, 1025)))
		req.Header.Set(headerOrganizationID, "org-1")
		req.Header.Set(headerChunkIndex, "1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("body beyond the read limit is cut off with 413", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/chunks",
			bytes.NewReader(bytes.Repeat([]byte{0x01}, 4096)))
		req.Header.Set(headerOrganizationID, "org-1")
		req.Header.Set(headerChunkIndex, "1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("empty chunk is rejected with 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/chunks", nil)
		req.Header.Set(headerOrganizationID, "org-1")
		req.Header.Set(headerChunkIndex, "2")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad chunk index header is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/chunks",
			bytes.NewReader([]byte{0x01}))
		req.Header.Set(headerOrganizationID, "org-1")
		req.Header.Set(headerChunkIndex, "minus-one")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestStreamStatusEndpoint(t *testing.T) {
	router := setupSessionRouter(t, 10<<20)
	id := createSessionViaAPI(t, router, "org-1")

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/stream", nil)
	req.Header.Set(headerOrganizationID, "org-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var status StreamStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.CanReceiveAudio)
	assert.Equal(t, int64(10<<20), status.MaxChunkSizeBytes)
}
