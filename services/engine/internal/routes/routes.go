// Package routes configures the HTTP router and middleware.
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/varunvs7692/chaos-negotiator/pkg/config"
	"github.com/varunvs7692/chaos-negotiator/pkg/logger"
	"github.com/varunvs7692/chaos-negotiator/pkg/telemetry"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/engine"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/handlers"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/middleware"
)

// Config holds dependencies for route setup.
type Config struct {
	Engine    *engine.Engine
	Store     handlers.HealthChecker
	Kafka     handlers.HealthChecker
	Config    *config.Config
	Logger    *logger.Logger
	BuildInfo BuildInfo
}

// BuildInfo contains build information.
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// New creates a chi router with all routes and middleware configured.
func New(cfg Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	// Tracing wraps the logger so request logs can carry the trace id.
	if cfg.Config.Telemetry.Enabled {
		r.Use(telemetry.HTTPMiddleware("chaos-negotiator"))
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig(), cfg.Logger))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	healthHandler := handlers.NewHealthHandler(handlers.HealthHandlerConfig{
		Engine:    cfg.Engine,
		Store:     cfg.Store,
		Kafka:     cfg.Kafka,
		Version:   cfg.BuildInfo.Version,
		GitCommit: cfg.BuildInfo.GitCommit,
	})
	assessHandler := handlers.NewAssessHandler(cfg.Engine, cfg.Logger)
	outcomesHandler := handlers.NewOutcomesHandler(cfg.Engine, cfg.Logger)

	// Health endpoints (no auth required)
	r.Get("/healthz", healthHandler.Liveness)
	r.Get("/readyz", healthHandler.Readiness)
	r.Get("/version", healthHandler.Version)

	if cfg.Config.Metrics.Enabled {
		r.Get(cfg.Config.Metrics.Path, healthHandler.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/outcomes", outcomesHandler.List)

		// Mutating routes require the API key when one is configured.
		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKey(cfg.Config.Auth.APIKey, cfg.Logger))
			r.Post("/assess", assessHandler.Assess)
			r.Post("/outcomes", outcomesHandler.Record)
		})
	})

	return r
}
