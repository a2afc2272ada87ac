// Package transcriber proxies audio uploads to the upstream ASR service.
package transcriber

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/babelchat/babelchat/internal/config"
)

// ErrUnavailable signals that no upstream ASR endpoint is configured.
var ErrUnavailable = errors.New("transcription upstream not configured")

// Service forwards multipart audio to the configured upstream.
type Service struct {
	upstreamURL string
	httpc       *http.Client
}

// New builds the service; with an empty upstream URL every call returns
// ErrUnavailable.
func New(cfg config.TranscribeConfig) *Service {
	return &Service{
		upstreamURL: cfg.UpstreamURL,
		httpc:       &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}
}

// Transcribe uploads the audio and returns the recognized text.
func (s *Service) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if s.upstreamURL == "" {
		return "", ErrUnavailable
	}

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

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.upstreamURL, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upstream asr returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	return decodeTranscription(body)
}
