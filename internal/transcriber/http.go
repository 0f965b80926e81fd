package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// HTTPForwarder posts chunks to a provider endpoint as multipart form data:
// a JSON metadata part and the raw audio bytes.
type HTTPForwarder struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPForwarder creates a forwarder targeting the given endpoint
func NewHTTPForwarder(endpoint string, timeout time.Duration) *HTTPForwarder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPForwarder{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Forward sends the chunk to the provider
func (f *HTTPForwarder) Forward(ctx context.Context, meta ChunkMetadata, audio []byte) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	metaPart, err := writer.CreateFormField("metadata")
	if err != nil {
		return fmt.Errorf("failed to create metadata part: %w", err)
	}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	audioPart, err := writer.CreateFormFile("audio", fmt.Sprintf("%s-%d.%s", meta.SessionID, meta.ChunkIndex, audioExt(meta.Format)))
	if err != nil {
		return fmt.Errorf("failed to create audio part: %w", err)
	}
	if _, err := audioPart.Write(audio); err != nil {
		return fmt.Errorf("failed to write audio data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transcription provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("transcription provider returned %d: %s", resp.StatusCode, string(snippet))
	}

	return nil
}

func audioExt(format string) string {
	switch format {
	case "wav", "mp3", "m4a", "flac":
		return format
	default:
		return "bin"
	}
}
