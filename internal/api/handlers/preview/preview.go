// Package preview provides the HTTP handler for link preview requests.
package preview

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"Giftly/internal/core/linkpreview"
)

// maxURLLength bounds the url field of a preview request.
const maxURLLength = 2048

// Handler handles link preview requests.
type Handler struct {
	service linkpreview.Service
}

// NewHandler creates a new preview handler.
func NewHandler(service linkpreview.Service) *Handler {
	return &Handler{service: service}
}

type previewRequest struct {
	URL   string `json:"url"`
	Force bool   `json:"force"`
}

type previewResponse struct {
	OK            bool                 `json:"ok"`
	NormalizedURL string               `json:"normalizedUrl"`
	Domain        string               `json:"domain"`
	Cached        bool                 `json:"cached"`
	Data          *linkpreview.Preview `json:"data"`
}

// HandlePreview handles POST /api/link-preview.
// Fetches and extracts metadata for a user-supplied URL, consulting the
// preview cache first.
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// A preview request is a URL and a flag; 16KB is generous.
	r.Body = http.MaxBytesReader(w, r.Body, 16*1024)

	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, linkpreview.KindInvalidURL, "invalid request body")
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, linkpreview.KindInvalidURL, "url is required")
		return
	}
	if len(req.URL) > maxURLLength {
		writeError(w, http.StatusBadRequest, linkpreview.KindInvalidURL, "url exceeds maximum length")
		return
	}

	result, err := h.service.Preview(r.Context(), req.URL, req.Force)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(previewResponse{
		OK:            true,
		NormalizedURL: result.NormalizedURL,
		Domain:        result.Domain,
		Cached:        result.Cached,
		Data:          result.Data,
	}); err != nil {
		log.Printf("Failed to encode preview response: %v", err)
	}
}
