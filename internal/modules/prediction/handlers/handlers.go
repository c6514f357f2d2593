// Package handlers provides HTTP handlers for default probability prediction.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/creditrisk/internal/modules/prediction"
	"github.com/rs/zerolog"
)

// Handler handles prediction HTTP requests
type Handler struct {
	service *prediction.Service
	log     zerolog.Logger
}

// NewHandler creates a new prediction handler
func NewHandler(service *prediction.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "prediction").Logger(),
	}
}

// PredictRequest represents a request to predict a probability of default
type PredictRequest struct {
	Features []float64 `json:"features"`
}

// HandlePredictPD handles POST /api/predict_pd
func (h *Handler) HandlePredictPD(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result := h.service.PredictPD(req.Features)

	response := map[string]interface{}{
		"data": result,
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
