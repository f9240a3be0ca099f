// Package api serves a read-only view of the run ledger over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/heimdex/brushdetect/internal/catalog"
	"github.com/heimdex/brushdetect/internal/ffmpeg"
	"github.com/heimdex/brushdetect/internal/playback"
)

// Ledger is the read side of the run ledger. *catalog.SQLiteRepository
// implements it.
type Ledger interface {
	GetRun(ctx context.Context, id string) (*catalog.Run, error)
	LatestRun(ctx context.Context) (*catalog.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*catalog.Run, error)
	GetJob(ctx context.Context, runID, video string) (*catalog.Job, error)
	ListJobs(ctx context.Context, runID string) ([]*catalog.Job, error)
	CountJobs(ctx context.Context, runID string) (catalog.Counts, error)
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Addr         string
	Ledger       Ledger
	Playback     *playback.Server
	Capabilities *ffmpeg.Capabilities
	Logger       *slog.Logger
	StartTime    time.Time
	Version      string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
			WriteTimeout:      0,
			IdleTimeout:       60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

// Start binds the listener and serves in the background. Bind errors are
// returned; later serve errors are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.httpServer.Addr = ln.Addr().String()
	s.logger.Info("starting status server", "addr", s.httpServer.Addr)

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server stopped", "error", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down status server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
