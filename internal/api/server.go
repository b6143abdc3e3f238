// Package api exposes the admin HTTP surface: merchant management,
// engine control, decision retrieval, and override rule management.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/monitor"
	"github.com/opensource-finance/harrier/internal/pipeline"
	"github.com/opensource-finance/harrier/internal/policy"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *monitor.Engine, pipe *pipeline.Pipeline, overrides *policy.Engine, version string) *Server {
	handler := NewHandler(repo, cache, bus, engine, pipe, overrides, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health and observability endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Engine control
	router.Post("/engine/run", handler.RunOnce)
	router.Post("/engine/continuous", handler.EnableContinuous)
	router.Delete("/engine/continuous", handler.DisableContinuous)
	router.Post("/engine/cache/clear", handler.ClearCache)
	router.Get("/engine/status", handler.EngineStatus)
	router.Get("/engine/summary", handler.LastSummary)
	router.Post("/engine/test-destination", handler.SetTestDestination)

	// Merchant management
	router.Post("/merchants", handler.SaveMerchant)
	router.Get("/merchants", handler.ListMerchants)
	router.Get("/merchants/{id}", handler.GetMerchant)
	router.Post("/merchants/{id}/evaluate", handler.EvaluateMerchant)
	router.Get("/merchants/{id}/decision", handler.LatestDecision)
	router.Get("/merchants/{id}/decisions", handler.ListDecisions)
	router.Get("/merchants/{id}/notification", handler.LatestNotification)

	// Override rule management
	router.Get("/overrides", handler.ListOverrides)
	router.Post("/overrides", handler.CreateOverride)
	router.Delete("/overrides/{id}", handler.DeleteOverride)
	router.Post("/overrides/reload", handler.ReloadOverrides)

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
