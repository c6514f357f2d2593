package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the default simulation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/simulate_default", h.HandleSimulateDefault)
}
