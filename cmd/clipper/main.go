package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bestof/clipper/internal/api"
	"github.com/bestof/clipper/internal/clips"
	"github.com/bestof/clipper/internal/config"
	"github.com/bestof/clipper/internal/db"
	"github.com/bestof/clipper/internal/entitlement"
	"github.com/bestof/clipper/internal/logging"
	"github.com/bestof/clipper/internal/media"
	"github.com/bestof/clipper/internal/playback"
	"github.com/bestof/clipper/internal/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting clipper",
		"version", config.Version,
		"commit", config.GitCommit,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()
	journal := clips.NewJournal(database.Conn())

	store := storage.New(cfg.StorageDir(), logger)
	if err := store.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	ytdlp := media.NewYTDLP(cfg.YTDLPPath(), logger)
	ffprobe := media.NewFFprobe(cfg.FFprobePath(), logger)
	ffmpeg := media.NewFFmpeg(cfg.FFmpegPath(), logger)

	doctor := media.NewDoctor(cfg.YTDLPPath(), cfg.FFmpegPath(), cfg.FFprobePath(), logger)
	if deps := doctor.Refresh(context.Background()); deps.AllAvailable() {
		logger.Info("media dependencies detected",
			"yt_dlp", deps.YTDLP.Path,
			"ffmpeg", deps.FFmpeg.Path,
			"ffprobe", deps.FFprobe.Path,
		)
	}

	var checker entitlement.Checker = entitlement.Unrestricted{}
	if cfg.EntitlementURL() != "" {
		checker = entitlement.NewHTTPChecker(cfg.EntitlementURL(), cfg.EntitlementToken(), logger)
		logger.Info("entitlement checks enabled", "base_url", cfg.EntitlementURL())
	}

	registry := clips.NewRegistry(journal, logger)
	assembler := clips.NewAssembler(ytdlp, ffprobe, nil, ffmpeg, store, cfg.WorkDir(), logger)
	runner := clips.NewRunner(registry, assembler, cfg.JobTimeout(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := clips.NewQueue(logger, cfg.QueueCapacity(), cfg.Workers())
	if err := queue.Start(ctx, runner); err != nil {
		return fmt.Errorf("failed to start job queue: %w", err)
	}

	service := clips.NewService(registry, queue, ytdlp, checker, logger)

	apiServer := api.NewServer(api.ServerConfig{
		Addr:           cfg.Addr(),
		Clips:          service,
		Store:          store,
		History:        journal,
		PlaybackServer: playback.NewServer(logger),
		Doctor:         doctor,
		APIToken:       cfg.APIToken(),
		PublicBaseURL:  cfg.PublicBaseURL(),
		CORSOrigins:    cfg.CORSOrigins(),
		Version:        config.Version,
		Logger:         logger,
		StartTime:      startTime,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- apiServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server error", "error", err)
			queue.Shutdown(cfg.ShutdownGrace())
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown", "grace", cfg.ShutdownGrace())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	queue.Shutdown(cfg.ShutdownGrace())
	cancel()

	logger.Info("shutdown complete", "pending", queue.Pending())
	return nil
}
