// Package api exposes the HTTP surface of the compliance service.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opencompliance/complycal/internal/calendar"
	"github.com/opencompliance/complycal/internal/catalog"
	"github.com/opencompliance/complycal/internal/domain"
	"github.com/opencompliance/complycal/internal/matcher"
	"github.com/opencompliance/complycal/internal/report"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, cat *catalog.Catalog, m *matcher.Matcher, g *calendar.Generator, rb *report.Builder, version string, rateLimit int) *Server {
	handler := NewHandler(repo, cache, bus, cat, m, g, rb, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (not rate limited)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	router.Route("/", func(r chi.Router) {
		r.Use(RateLimitMiddleware(cache, rateLimit))

		// Generation pipeline
		r.Post("/match", handler.Match)
		r.Post("/calendar", handler.Calendar)
		r.Post("/report", handler.Report)

		// Catalog management
		r.Get("/obligations", handler.ListObligations)
		r.Get("/obligations/{id}", handler.GetObligation)
		r.Post("/obligations", handler.CreateObligation)
		r.Delete("/obligations/{id}", handler.DeleteObligation)
		r.Post("/obligations/reload", handler.ReloadObligations)

		r.Get("/catalog/metadata", handler.CatalogMetadata)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
