// Package http provides the HTTP server and routing for the API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capscanio/capscan/internal/config"
	"github.com/capscanio/capscan/internal/infra/http/handler"
	"github.com/capscanio/capscan/internal/infra/http/middleware"
	"github.com/capscanio/capscan/pkg/logger"
)

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	config     *config.Config
	logger     *logger.Logger
}

// NewServer creates a new HTTP server with the global middleware chain.
func NewServer(cfg *config.Config, log *logger.Logger) *Server {
	router := chi.NewRouter()

	// Order matters: recover first, request ID before logging.
	router.Use(
		middleware.Recovery(log),
		middleware.RequestID(),
		middleware.Timeout(60*time.Second),
		middleware.Metrics(),
		middleware.Logger(log),
	)

	return &Server{
		router: router,
		config: cfg,
		logger: log,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr(),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  time.Minute,
		},
	}
}

// RegisterRoutes mounts all API routes.
func (s *Server) RegisterRoutes(scanHandler *handler.ScanHandler, capHandler *handler.CapabilityHandler, healthHandler *handler.HealthHandler) {
	s.router.Get("/healthz", healthHandler.Health)
	s.router.Get("/readyz", healthHandler.Ready)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/scan", func(r chi.Router) {
			r.Post("/step", scanHandler.Step)
			r.Get("/sessions/{id}/progress", scanHandler.Progress)
		})
		r.Route("/capabilities", func(r chi.Router) {
			r.Get("/", capHandler.Search)
			r.Get("/{name}", capHandler.GetByName)
		})
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.config.Server.Addr())

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}
