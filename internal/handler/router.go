package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/babelchat/babelchat/internal/hub"
	middlewarePkg "github.com/babelchat/babelchat/internal/middleware"
	"github.com/babelchat/babelchat/internal/service/transcriber"
	"github.com/babelchat/babelchat/internal/service/translator"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(trans translator.Translator, asr *transcriber.Service, roomHub *hub.Hub, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	translateHandler := NewTranslate(trans, logger)
	transcribeHandler := NewTranscribe(asr, logger)

	r.Route("/api", func(api chi.Router) {
		translateHandler.RegisterRoutes(api)
		transcribeHandler.RegisterRoutes(api)
		api.Get("/ws", roomHub.ServeWS)
	})

	return r
}
