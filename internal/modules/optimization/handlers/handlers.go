// Package handlers provides HTTP handlers for portfolio selection.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/creditrisk/internal/modules/optimization"
	"github.com/aristath/creditrisk/internal/modules/runs"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// DefaultBudget is used when a request omits the budget.
const DefaultBudget = 2

// DefaultRiskAversion scales the covariance term when a request omits it.
const DefaultRiskAversion = 1.0

// RunRecorder stores completed requests in the run ledger.
type RunRecorder interface {
	Record(ctx context.Context, kind runs.Kind, solver string, input, output interface{}, duration time.Duration) string
}

// Handler handles portfolio optimization HTTP requests
type Handler struct {
	optimizer *optimization.Optimizer
	recorder  RunRecorder
	log       zerolog.Logger
}

// NewHandler creates a new optimization handler. recorder may be nil.
func NewHandler(
	optimizer *optimization.Optimizer,
	recorder RunRecorder,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		optimizer: optimizer,
		recorder:  recorder,
		log:       log.With().Str("handler", "optimization").Logger(),
	}
}

// OptimizeRequest represents a request to select a portfolio
type OptimizeRequest struct {
	Returns []float64 `json:"returns"`
	Risks   []float64 `json:"risks"`
	Budget  *int      `json:"budget,omitempty"`

	// Optional per-period asset returns; when present their covariance,
	// scaled by RiskAversion (default 1), is added to the objective.
	ReturnHistory [][]float64 `json:"return_history,omitempty"`
	RiskAversion  *float64    `json:"risk_aversion,omitempty"`
}

// optimizeInput is the ledger form of a request, with defaults resolved.
type optimizeInput struct {
	Returns       []float64   `json:"returns"`
	Risks         []float64   `json:"risks"`
	Budget        int         `json:"budget"`
	ReturnHistory [][]float64 `json:"return_history,omitempty"`
	RiskAversion  float64     `json:"risk_aversion,omitempty"`
}

// HandleOptimizePortfolio handles POST /api/optimize_portfolio
func (h *Handler) HandleOptimizePortfolio(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	budget := DefaultBudget
	if req.Budget != nil {
		budget = *req.Budget
	}

	aversion := DefaultRiskAversion
	if req.RiskAversion != nil {
		aversion = *req.RiskAversion
	}

	var quadratic *mat.SymDense
	if len(req.ReturnHistory) > 0 {
		var err error
		quadratic, err = optimization.RiskTerm(req.ReturnHistory, len(req.Returns), aversion)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	result, err := h.optimizer.OptimizePortfolioWithRisk(r.Context(), req.Returns, req.Risks, budget, quadratic)
	if err != nil {
		if optimization.IsValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("Failed to optimize portfolio")
		http.Error(w, "Optimization failed", http.StatusInternalServerError)
		return
	}

	var runID string
	if h.recorder != nil {
		input := optimizeInput{Returns: req.Returns, Risks: req.Risks, Budget: budget}
		if quadratic != nil {
			input.ReturnHistory = req.ReturnHistory
			input.RiskAversion = aversion
		}
		runID = h.recorder.Record(r.Context(), runs.KindOptimization, result.Solver, input, result, result.Duration)
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"selection":       result.Selection,
			"solver":          result.Solver,
			"objective":       result.Objective,
			"fallback_reason": result.FallbackReason,
			"selected":        result.Selection.Indices(),
		},
		"metadata": map[string]interface{}{
			"timestamp":   time.Now().Format(time.RFC3339),
			"run_id":      runID,
			"duration_ms": result.Duration.Milliseconds(),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// capacityReporter is implemented by solvers with a size limit.
type capacityReporter interface {
	Capacity() int
}

// HandleGetStatus handles GET /api/optimizer/status
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	solver := h.optimizer.Solver()

	status := map[string]interface{}{
		"solver":    solver.Name(),
		"available": solver.Available(),
		"fallback":  optimization.SolverGreedy,
	}
	if c, ok := solver.(capacityReporter); ok {
		status["max_assets"] = c.Capacity()
	}
	if q, ok := solver.(*optimization.QAOASolver); ok {
		cfg := q.Config()
		status["qaoa"] = map[string]interface{}{
			"reps":           cfg.Reps,
			"optimizer":      cfg.Optimizer,
			"shots":          cfg.Shots,
			"max_iterations": cfg.MaxIterations,
		}
	}

	response := map[string]interface{}{
		"data": status,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
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
