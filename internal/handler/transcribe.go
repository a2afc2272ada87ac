package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/babelchat/babelchat/internal/service/transcriber"
	"github.com/babelchat/babelchat/pkg/utils"
)

// Transcribe serves POST /api/transcribe (multipart audio).
type Transcribe struct {
	asr    *transcriber.Service
	logger zerolog.Logger
}

// NewTranscribe builds the handler.
func NewTranscribe(asr *transcriber.Service, logger zerolog.Logger) *Transcribe {
	return &Transcribe{asr: asr, logger: logger}
}

// RegisterRoutes mounts the transcribe endpoint.
func (h *Transcribe) RegisterRoutes(r chi.Router) {
	r.Post("/transcribe", h.handleTranscribe)
}

func (h *Transcribe) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	text, err := h.asr.Transcribe(r.Context(), header.Filename, file)
	if err != nil {
		if errors.Is(err, transcriber.ErrUnavailable) {
			utils.RespondError(w, http.StatusNotImplemented, "transcription not available")
			return
		}
		h.logger.Warn().Err(err).Str("module", "handler").Msg("transcription failed")
		utils.RespondError(w, http.StatusBadGateway, "transcription failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"transcription": text})
}
