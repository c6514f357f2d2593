// Package handlers provides HTTP handlers for the run ledger.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/creditrisk/internal/modules/runs"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// maxListLimit caps the limit query parameter.
const maxListLimit = 500

// Handler handles run ledger HTTP requests
type Handler struct {
	repo *runs.Repository
	log  zerolog.Logger
}

// NewHandler creates a new runs handler
func NewHandler(repo *runs.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "runs").Logger(),
	}
}

// runResponse is the JSON form of a ledger entry.
type runResponse struct {
	ID         string      `json:"id"`
	Kind       runs.Kind   `json:"kind"`
	Solver     string      `json:"solver,omitempty"`
	DurationMs int64       `json:"duration_ms"`
	CreatedAt  string      `json:"created_at"`
	Input      interface{} `json:"input,omitempty"`
	Output     interface{} `json:"output,omitempty"`
}

func (h *Handler) toResponse(run *runs.Run, withPayloads bool) runResponse {
	resp := runResponse{
		ID:         run.ID,
		Kind:       run.Kind,
		Solver:     run.Solver,
		DurationMs: run.DurationMs,
		CreatedAt:  run.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !withPayloads {
		return resp
	}

	var input, output interface{}
	if err := run.DecodeInput(&input); err != nil {
		h.log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to decode run input")
	}
	if err := run.DecodeOutput(&output); err != nil {
		h.log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to decode run output")
	}
	resp.Input, resp.Output = input, output
	return resp
}

// HandleListRuns handles GET /api/runs?kind=&limit=
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	kind := runs.Kind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.Valid() {
		http.Error(w, "Unknown run kind", http.StatusBadRequest)
		return
	}

	limit := runs.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(parsed, maxListLimit)
	}

	list, err := h.repo.List(r.Context(), kind, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}

	items := make([]runResponse, 0, len(list))
	for i := range list {
		items = append(items, h.toResponse(&list[i], false))
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"runs":  items,
			"count": len(items),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetRun handles GET /api/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, runs.ErrRunNotFound) {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to get run")
		http.Error(w, "Failed to get run", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": h.toResponse(run, true),
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
