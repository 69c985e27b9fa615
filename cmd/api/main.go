package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bobarin/brainrot/internal/api"
	"github.com/bobarin/brainrot/internal/cleanup"
	"github.com/bobarin/brainrot/internal/config"
	"github.com/bobarin/brainrot/internal/fetch"
	"github.com/bobarin/brainrot/internal/scheduler"
	"github.com/bobarin/brainrot/internal/services"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("starting brainrot API")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	for _, dir := range []string{cfg.BackgroundDir, cfg.MusicDir, cfg.SoundsDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal("failed to create directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	// retention sweeper; a fresh process owns no temp files, clear them all
	cleaner := cleanup.NewService(cfg.OutputDir, cfg.VideoRetention, cfg.OrphanAge, cfg.SweepInterval, logger)
	cleaner.CleanAllTemp()
	if err := cleaner.Start(); err != nil {
		logger.Fatal("failed to start cleanup", zap.Error(err))
	}
	defer cleaner.Stop()

	ffmpegSvc := services.NewFFmpegService(services.ExecRunner{}, cfg.FFmpegThreads, logger)
	whisperSvc := services.NewWhisperService(cfg.OpenAIKey, cfg.WhisperLanguage, logger)
	backgroundSvc := services.NewBackgroundService(
		cfg.BackgroundDir, cfg.OutputDir, ffmpegSvc,
		cfg.VideoPreset, cfg.VideoCRF, cfg.ProbeCacheSize,
		cleaner.Register, logger,
	)
	compositorSvc := services.NewCompositor(
		ffmpegSvc, cfg.OutputDir, cfg.MusicDir, cfg.SoundsDir,
		cfg.VideoPreset, cfg.VideoCRF, cfg.AudioBitrate, logger,
	)
	fetcher := fetch.NewFetcher(cfg.OutputDir, time.Second, logger)

	sched := scheduler.New(
		cfg.MaxConcurrentVideos,
		fetcher, whisperSvc, ffmpegSvc, backgroundSvc, compositorSvc, cleaner,
		logger,
	)

	handler := api.NewHandler(sched, cfg.OutputDir, cfg.PublicBaseURL, logger)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		logger.Info("API key authentication enabled")
	} else {
		logger.Warn("no BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	go func() {
		logger.Info("API server listening", zap.String("port", cfg.APIPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}
