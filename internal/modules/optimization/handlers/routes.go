package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the portfolio optimization routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/optimize_portfolio", h.HandleOptimizePortfolio)
	r.Route("/optimizer", func(r chi.Router) {
		r.Get("/status", h.HandleGetStatus)
	})
}
