package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "go.uber.org/automaxprocs"

	"imagestudio/internal/history"
	"imagestudio/internal/http/handlers"
	httpapi "imagestudio/internal/http/httpapi"
	"imagestudio/internal/infra"
	"imagestudio/internal/providers/genai"
	"imagestudio/internal/storage"
	"imagestudio/internal/studio"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, closeKV, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.HistoryBackend).Msg("failed to open history storage")
	}
	defer closeKV()

	historyStore, err := history.NewStore(kv, history.Options{Key: cfg.HistoryKey, Logger: &logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create history store")
	}

	client, err := genai.NewClient(ctx, genai.Options{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.ImagenModel,
		Logger: &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create image client")
	}

	ctrl, err := studio.New(ctx, client, historyStore, studio.WithLogger(&logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create studio")
	}

	app := handlers.NewApp(ctx, cfg, &logger, ctrl)
	server := infra.NewHTTPServer(ctx, cfg, httpapi.NewRouter(app))

	go func() {
		logger.Info().Str("model", client.Model()).Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}

	waited := make(chan struct{})
	go func() {
		ctrl.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("in-flight generation did not finish before exit")
	}
	logger.Info().Msg("server stopped")
}
