package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/babelchat/babelchat/internal/service/translator"
	"github.com/babelchat/babelchat/pkg/utils"
)

// Translate serves POST /api/translate in both single and batch shapes.
type Translate struct {
	trans  translator.Translator
	logger zerolog.Logger
}

// NewTranslate builds the handler.
func NewTranslate(trans translator.Translator, logger zerolog.Logger) *Translate {
	return &Translate{trans: trans, logger: logger}
}

// RegisterRoutes mounts the translate endpoint.
func (h *Translate) RegisterRoutes(r chi.Router) {
	r.Post("/translate", h.handleTranslate)
}

func (h *Translate) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text           string   `json:"text"`
		Texts          []string `json:"texts"`
		TargetLanguage string   `json:"targetLanguage"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target := strings.TrimSpace(payload.TargetLanguage)
	if target == "" {
		utils.RespondError(w, http.StatusBadRequest, "targetLanguage is required")
		return
	}

	if len(payload.Texts) > 0 {
		translated, err := h.trans.TranslateBatch(r.Context(), payload.Texts, target)
		if err != nil {
			h.logger.Warn().Err(err).Str("module", "handler").Msg("batch translation failed")
			utils.RespondError(w, http.StatusBadGateway, "translation failed")
			return
		}
		utils.RespondJSON(w, http.StatusOK, map[string]any{"translatedTexts": translated})
		return
	}

	if strings.TrimSpace(payload.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}
	translated, err := h.trans.Translate(r.Context(), payload.Text, target)
	if err != nil {
		h.logger.Warn().Err(err).Str("module", "handler").Msg("translation failed")
		utils.RespondError(w, http.StatusBadGateway, "translation failed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"translatedText": translated})
}
