// Package handlers provides HTTP handlers for default simulation.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/creditrisk/internal/modules/runs"
	"github.com/aristath/creditrisk/internal/modules/simulation"
	"github.com/rs/zerolog"
)

// DefaultTrials is used when a request omits the trial count.
const DefaultTrials = 1000

// RunRecorder stores completed requests in the run ledger.
type RunRecorder interface {
	Record(ctx context.Context, kind runs.Kind, solver string, input, output interface{}, duration time.Duration) string
}

// Handler handles default simulation HTTP requests
type Handler struct {
	simulator *simulation.Simulator
	recorder  RunRecorder
	log       zerolog.Logger
}

// NewHandler creates a new simulation handler. recorder may be nil.
func NewHandler(simulator *simulation.Simulator, recorder RunRecorder, log zerolog.Logger) *Handler {
	return &Handler{
		simulator: simulator,
		recorder:  recorder,
		log:       log.With().Str("handler", "simulation").Logger(),
	}
}

// SimulateRequest represents a request to simulate portfolio defaults
type SimulateRequest struct {
	Probabilities []float64 `json:"probabilities"`
	Trials        *int      `json:"trials,omitempty"`
}

type simulateInput struct {
	Probabilities []float64 `json:"probabilities"`
	Trials        int       `json:"trials"`
}

// HandleSimulateDefault handles POST /api/simulate_default
func (h *Handler) HandleSimulateDefault(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	trials := DefaultTrials
	if req.Trials != nil {
		trials = *req.Trials
	}

	result, err := h.simulator.Run(r.Context(), req.Probabilities, trials)
	if err != nil {
		switch {
		case simulation.IsValidationError(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			h.log.Warn().Err(err).Int("trials", trials).Msg("Simulation aborted")
			http.Error(w, "Simulation aborted", http.StatusServiceUnavailable)
		default:
			h.log.Error().Err(err).Msg("Failed to simulate defaults")
			http.Error(w, "Simulation failed", http.StatusInternalServerError)
		}
		return
	}

	var runID string
	if h.recorder != nil {
		input := simulateInput{Probabilities: req.Probabilities, Trials: trials}
		runID = h.recorder.Record(r.Context(), runs.KindSimulation, "", input, result, result.Duration)
	}

	response := map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"timestamp":   time.Now().Format(time.RFC3339),
			"run_id":      runID,
			"duration_ms": result.Duration.Milliseconds(),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
