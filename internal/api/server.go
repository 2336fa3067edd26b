// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apihandler "github.com/newthinker/vanguard/internal/api/handler/api"
	"github.com/newthinker/vanguard/internal/api/middleware"
	"github.com/newthinker/vanguard/internal/metrics"
	"github.com/newthinker/vanguard/internal/storage/signal"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Engine is the engine surface the API serves.
type Engine interface {
	apihandler.EngineState
	apihandler.ModelService
	apihandler.ConfigService
	apihandler.TickRunner
}

// Server represents the HTTP server for VANGUARD
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	handler    http.Handler
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	MetricsPath string
}

// Dependencies holds what the routes read from. History and Metrics are
// optional.
type Dependencies struct {
	Engine  Engine
	History signal.Store
	Metrics *metrics.Registry
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("api server requires an engine")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()

	s := &Server{
		logger: logger,
		mux:    mux,
	}

	s.setupRoutes(cfg, deps)

	var handler http.Handler = mux
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics)(handler)
	}
	handler = metrics.LoggingMiddleware(logger)(handler)
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	if deps.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	auth := middleware.APIKeyAuth(cfg.APIKey)
	route := func(pattern string, h http.HandlerFunc) {
		s.mux.Handle(pattern, auth(h))
	}

	signals := apihandler.NewSignalsHandler(deps.Engine, deps.History)
	route("GET /api/v1/signals", signals.Current)
	route("GET /api/v1/signals/history", signals.History)
	route("GET /api/v1/signals/{id}", signals.GetByID)

	state := apihandler.NewEngineHandler(deps.Engine)
	route("GET /api/v1/tracked", state.Tracked)
	route("GET /api/v1/performance", state.Performance)
	route("GET /api/v1/status", state.Status)

	models := apihandler.NewModelsHandler(deps.Engine)
	route("GET /api/v1/models", models.List)
	route("GET /api/v1/models/{id}", models.Get)
	route("POST /api/v1/models/retrain", models.Retrain)

	cfgHandler := apihandler.NewConfigHandler(deps.Engine)
	route("GET /api/v1/config", cfgHandler.Get)
	route("PATCH /api/v1/config", cfgHandler.Patch)

	ticks := apihandler.NewTicksHandler(deps.Engine)
	route("POST /api/v1/ticks/rotation", ticks.Rotation)
	route("POST /api/v1/ticks/analysis", ticks.Analysis)
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
