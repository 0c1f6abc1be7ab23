package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/v1", func(r chi.Router) {
		// Development ingress; production traffic arrives over NATS.
		r.Post("/messages", h.HandleIngressMessage)
		r.Post("/selections", h.HandleIngressSelection)

		// Tool callbacks for the reasoning engine.
		r.Post("/tools/lookup", h.HandleToolLookup)
		r.Post("/tools/search", h.HandleToolSearch)
		r.Post("/tools/extract", h.HandleToolExtract)

		r.Get("/documents", h.HandleListDocuments)
	})
}
