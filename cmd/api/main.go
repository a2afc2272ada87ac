package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/babelchat/babelchat/internal/config"
	"github.com/babelchat/babelchat/internal/handler"
	"github.com/babelchat/babelchat/internal/hub"
	"github.com/babelchat/babelchat/internal/service/transcriber"
	"github.com/babelchat/babelchat/internal/service/translator"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file, using system environment only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	var trans translator.Translator
	if cfg.Translator.Enabled() {
		svc, err := translator.NewService(ctx, cfg.Translator, log.Logger)
		if err != nil {
			log.Warn().Err(err).Msg("translator init failed, messages will pass through untranslated")
			trans = translator.Passthrough{}
		} else {
			log.Info().Str("model", cfg.Translator.Model).Msg("translator service initialized")
			trans = svc
		}
	} else {
		log.Info().Msg("ark credentials not configured, translation passes through")
		trans = translator.Passthrough{}
	}

	asr := transcriber.New(cfg.Transcribe)
	if cfg.Transcribe.UpstreamURL == "" {
		log.Info().Msg("transcription upstream not configured, voice input disabled")
	}

	roomHub := hub.New(log.Logger, cfg.Hub.HistoryLimit)
	router := handler.NewRouter(trans, asr, roomHub, log.Logger)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", serverCfg.Addr).Msg("babelchat backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
