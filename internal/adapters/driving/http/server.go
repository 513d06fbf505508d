// Package http serves the operator and dashboard API.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodia-labs/compliance-sync/internal/core/ports/driving"
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	// Services
	authService driving.AuthService
	compliance  driving.ComplianceService
	metrics     http.Handler
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	Version     string
	CORSOrigins []string
	Logger      *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:        "0.0.0.0",
		Port:        8080,
		Version:     "dev",
		CORSOrigins: []string{"*"},
	}
}

// NewServer creates a new HTTP server. metrics may be nil, in which case
// /metrics is not served.
func NewServer(
	cfg Config,
	authService driving.AuthService,
	compliance driving.ComplianceService,
	metrics http.Handler,
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:      http.NewServeMux(),
		version:     cfg.Version,
		logger:      logger.With("component", "http"),
		authService: authService,
		compliance:  compliance,
		metrics:     metrics,
	}
	s.setupRoutes()

	handler := NewCORSMiddleware(cfg.CORSOrigins).Handler(s.router)
	handler = NewLoggingMiddleware(s.logger).Handler(handler)
	handler = NewRecoveryMiddleware(s.logger).Handler(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	auth := NewAuthMiddleware(s.authService)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	if s.metrics != nil {
		s.router.Handle("GET /metrics", s.metrics)
	}

	// Auth endpoints (public)
	s.router.HandleFunc("POST /api/v1/auth/token", s.handleToken)

	// Sync endpoints
	s.router.Handle("POST /api/v1/sync", auth.Operator(s.handleTriggerSync))
	s.router.Handle("GET /api/v1/sync/status", auth.Viewer(s.handleSyncStatus))
	s.router.Handle("GET /api/v1/sync/jobs", auth.Viewer(s.handleListSyncJobs))
	s.router.Handle("GET /api/v1/schedules/{name}/history", auth.Viewer(s.handleJobHistory))

	// Dashboard endpoints
	s.router.Handle("GET /api/v1/stats", auth.Viewer(s.handleGetStats))
	s.router.Handle("GET /api/v1/documents", auth.Viewer(s.handleListDocuments))
	s.router.Handle("GET /api/v1/documents/{id}", auth.Viewer(s.handleGetDocument))
}

// Handler returns the fully wrapped handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
