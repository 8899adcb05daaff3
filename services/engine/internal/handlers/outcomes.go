package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/varunvs7692/chaos-negotiator/pkg/logger"
	"github.com/varunvs7692/chaos-negotiator/pkg/models"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/engine"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// OutcomesHandler handles outcome recording and listing.
type OutcomesHandler struct {
	engine *engine.Engine
	log    *logger.Logger
}

// NewOutcomesHandler creates a new OutcomesHandler.
func NewOutcomesHandler(e *engine.Engine, log *logger.Logger) *OutcomesHandler {
	return &OutcomesHandler{
		engine: e,
		log:    log.WithComponent("outcomes-handler"),
	}
}

// RecordRequest is the outcome recording payload. Context is optional;
// a minimal one is synthesized from the deployment id when absent.
type RecordRequest struct {
	DeploymentID               string                    `json:"deployment_id"`
	Context                    *models.DeploymentContext `json:"context,omitempty"`
	ActualErrorRatePercent     float64                   `json:"actual_error_rate_percent"`
	ActualLatencyChangePercent float64                   `json:"actual_latency_change_percent"`
	RollbackTriggered          bool                      `json:"rollback_triggered"`
}

// RecordResponse acknowledges a recorded outcome.
type RecordResponse struct {
	Status       string    `json:"status"`
	DeploymentID string    `json:"deployment_id"`
	FinalScore   float64   `json:"final_score"`
	Timestamp    time.Time `json:"timestamp"`
}

// ListResponse is the outcome listing payload.
type ListResponse struct {
	Total    int                        `json:"total"`
	Outcomes []models.DeploymentOutcome `json:"outcomes"`
}

// Record persists an observed deployment outcome.
func (h *OutcomesHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	log := h.log.WithDeployment(req.DeploymentID)

	dctx := req.Context
	if dctx == nil {
		log.Warn("outcome recorded without deployment context, synthesizing minimal context")
		minimal := models.MinimalContext(req.DeploymentID)
		dctx = &minimal
	} else if dctx.DeploymentID == "" {
		dctx.DeploymentID = req.DeploymentID
	}

	outcome, err := h.engine.Record(r.Context(), dctx,
		req.ActualErrorRatePercent, req.ActualLatencyChangePercent, req.RollbackTriggered)
	if err != nil {
		log.Warn("outcome recording failed", "error", err)
		writeError(w, err)
		return
	}

	log.Info("outcome recorded",
		"final_score", outcome.FinalScore,
		"rollback_triggered", outcome.RollbackTriggered,
	)

	writeJSON(w, http.StatusOK, RecordResponse{
		Status:       "success",
		DeploymentID: outcome.DeploymentID,
		FinalScore:   outcome.FinalScore,
		Timestamp:    outcome.Timestamp,
	})
}

// List returns recent outcomes, newest first.
func (h *OutcomesHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = parsed
		if limit > maxListLimit {
			limit = maxListLimit
		}
	}

	outcomes, err := h.engine.Recent(r.Context(), limit)
	if err != nil {
		h.log.Error("failed to list outcomes", "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{
		Total:    len(outcomes),
		Outcomes: outcomes,
	})
}
