// Package api exposes the reading controller over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgnsrekt/readaloud-go/internal/config"
	"github.com/dgnsrekt/readaloud-go/internal/document"
	"github.com/dgnsrekt/readaloud-go/internal/metrics"
	"github.com/dgnsrekt/readaloud-go/internal/session"
	"github.com/dgnsrekt/readaloud-go/internal/store"
)

// Controller is the part of session.Controller the API drives.
type Controller interface {
	Open(path string) error
	Start(pos int64) error
	Pause() error
	Stop() error
	SetPosition(pos int64) error
	CurrentPosition() int64
	Document() *document.Document
	Status() session.Status
}

// Server handles HTTP API requests.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	server  *http.Server
	ctrl    Controller
	store   store.Store
	metrics *metrics.Metrics
}

// New creates a new API server. m may be nil, in which case /metrics is
// not served.
func New(cfg *config.Config, logger *slog.Logger, ctrl Controller, st store.Store, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		ctrl:    ctrl,
		store:   st,
		metrics: m,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/healthz", s.handleHealthz)
	mux.HandleFunc("GET /v1/status", s.withAuth(s.handleStatus))
	mux.HandleFunc("POST /v1/open", s.withAuth(s.handleOpen))
	mux.HandleFunc("POST /v1/start", s.withAuth(s.handleStart))
	mux.HandleFunc("POST /v1/pause", s.withAuth(s.handlePause))
	mux.HandleFunc("POST /v1/stop", s.withAuth(s.handleStop))
	mux.HandleFunc("PUT /v1/position", s.withAuth(s.handleSetPosition))
	mux.HandleFunc("GET /v1/voice", s.withAuth(s.handleGetVoice))
	mux.HandleFunc("PUT /v1/voice", s.withAuth(s.handleUpdateVoice))
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
