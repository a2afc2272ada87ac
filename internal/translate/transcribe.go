package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Transcriber uploads recorded audio to the transcription endpoint and
// returns the recognized text. Failures drop the pending voice message; the
// caller logs and returns to idle.
type Transcriber struct {
	endpoint string
	httpc    *http.Client
}

// NewTranscriber builds a transcription client rooted at baseURL (the
// service exposes POST {baseURL}/api/transcribe).
func NewTranscriber(baseURL string, httpc *http.Client) *Transcriber {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Transcriber{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/transcribe",
		httpc:    httpc,
	}
}

// Transcribe posts the audio as multipart form data.
func (t *Transcriber) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcribe service returned %d", resp.StatusCode)
	}

	var body struct {
		Transcription string `json:"transcription"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Transcription, nil
}
