package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/varunvs7692/chaos-negotiator/pkg/logger"
	"github.com/varunvs7692/chaos-negotiator/pkg/models"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/engine"
)

// AssessHandler handles deployment risk assessment requests.
type AssessHandler struct {
	engine *engine.Engine
	log    *logger.Logger
}

// NewAssessHandler creates a new AssessHandler.
func NewAssessHandler(e *engine.Engine, log *logger.Logger) *AssessHandler {
	return &AssessHandler{
		engine: e,
		log:    log.WithComponent("assess-handler"),
	}
}

// Assess scores a deployment context and returns the risk assessment,
// canary policy, and deployment contract.
func (h *AssessHandler) Assess(w http.ResponseWriter, r *http.Request) {
	var dctx models.DeploymentContext
	if err := json.NewDecoder(r.Body).Decode(&dctx); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	log := h.log.WithDeployment(dctx.DeploymentID)

	resp, err := h.engine.Assess(r.Context(), &dctx)
	if err != nil {
		log.Warn("assessment failed", "error", err)
		writeError(w, err)
		return
	}

	log.Info("deployment assessed",
		"risk_score", resp.RiskAssessment.RiskScore,
		"risk_level", resp.RiskAssessment.RiskLevel,
	)

	writeJSON(w, http.StatusOK, resp)
}
