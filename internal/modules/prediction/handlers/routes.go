package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the prediction routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/predict_pd", h.HandlePredictPD)
}
