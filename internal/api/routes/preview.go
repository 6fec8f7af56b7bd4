package routes

import (
	"Giftly/internal/api/handlers/preview"
	"Giftly/internal/core/linkpreview"

	"github.com/go-chi/chi/v5"
)

// RegisterPreviewRoutes registers the link preview endpoint on the router.
// Authentication is handled upstream; the endpoint itself is session-agnostic.
func RegisterPreviewRoutes(r chi.Router, service linkpreview.Service) {
	handler := preview.NewHandler(service)

	// POST /api/link-preview - fetch metadata for a user-supplied URL
	r.Post("/api/link-preview", handler.HandlePreview)
}
