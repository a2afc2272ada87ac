package transcriber

import (
	"encoding/json"
	"errors"
	"strings"
)

// decodeTranscription tolerates the two field names upstream services use.
func decodeTranscription(body []byte) (string, error) {
	var payload struct {
		Transcription string `json:"transcription"`
		Text          string `json:"text"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}
	text := payload.Transcription
	if text == "" {
		text = payload.Text
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("upstream asr returned no text")
	}
	return text, nil
}
