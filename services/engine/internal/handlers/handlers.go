// Package handlers provides HTTP request handlers for the engine.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/engine"
)

// errorResponse is the wire shape of every error reply.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// writeError maps an engine error to its HTTP status and writes the
// error body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrStorage), errors.Is(err, engine.ErrNotReady):
		status = http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrTimeout):
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
