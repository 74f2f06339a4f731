// Package api exposes the clip service over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/bestof/clipper/internal/clips"
	"github.com/bestof/clipper/internal/media"
	"github.com/bestof/clipper/internal/playback"
	"github.com/bestof/clipper/internal/storage"
)

// ArtifactStore is the part of the storage layer the handlers read and prune.
type ArtifactStore interface {
	Resolve(jobID, filename string) (string, error)
	Delete(jobID string) (bool, error)
	Stats() (storage.Stats, error)
}

// DependencyReporter reports external tool availability. *media.Doctor implements it.
type DependencyReporter interface {
	Get(ctx context.Context) media.Dependencies
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Addr           string
	Clips          clips.JobService
	Store          ArtifactStore
	History        clips.HistoryReader
	PlaybackServer playback.PlaybackService
	Doctor         DependencyReporter
	APIToken       string
	PublicBaseURL  string
	CORSOrigins    []string
	Version        string
	Logger         *slog.Logger
	StartTime      time.Time
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      0,
			IdleTimeout:       60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
