package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/engine"
)

// HealthChecker defines the interface for dependency health checks.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler handles health, version, and metrics endpoints.
type HealthHandler struct {
	engine    *engine.Engine
	store     HealthChecker
	kafka     HealthChecker
	version   string
	gitCommit string
}

// HealthHandlerConfig contains configuration for the health handler.
type HealthHandlerConfig struct {
	Engine    *engine.Engine
	Store     HealthChecker
	Kafka     HealthChecker
	Version   string
	GitCommit string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(cfg HealthHandlerConfig) *HealthHandler {
	return &HealthHandler{
		engine:    cfg.Engine,
		store:     cfg.Store,
		kafka:     cfg.Kafka,
		version:   cfg.Version,
		gitCommit: cfg.GitCommit,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	Service   string `json:"service"`
}

// Liveness returns 200 while the process is running.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readiness returns 200 once the engine and its store can serve
// traffic. Kafka is optional and never fails readiness.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	ready := true

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.engine == nil || !h.engine.Ready() {
		checks["engine"] = "not ready"
		ready = false
	} else {
		checks["engine"] = "ready"
	}

	if h.store != nil {
		if err := h.store.Health(ctx); err != nil {
			checks["store"] = "unhealthy: " + err.Error()
			ready = false
		} else {
			checks["store"] = "healthy"
		}
	}

	if h.kafka != nil {
		if err := h.kafka.Health(ctx); err != nil {
			checks["kafka"] = "unhealthy: " + err.Error()
		} else {
			checks["kafka"] = "healthy"
		}
	} else {
		checks["kafka"] = "not configured"
	}

	status := "ok"
	httpStatus := http.StatusOK
	if !ready {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{Status: status, Checks: checks})
}

// Version reports the build identity.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{
		Version:   h.version,
		GitCommit: h.gitCommit,
		Service:   "chaos-negotiator",
	})
}

// Metrics serves the Prometheus registry.
func (h *HealthHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}
