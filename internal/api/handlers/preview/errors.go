package preview

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"Giftly/internal/core/linkpreview"
)

type errorBody struct {
	Code    linkpreview.Kind `json:"code"`
	Message string           `json:"message"`
}

type errorResponse struct {
	OK    bool      `json:"ok"`
	Error errorBody `json:"error"`
}

// writeError writes the JSON failure envelope.
func writeError(w http.ResponseWriter, statusCode int, code linkpreview.Kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(errorResponse{
		OK:    false,
		Error: errorBody{Code: code, Message: message},
	}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}

// handleServiceError maps service errors to HTTP responses: 400 when the fault
// was in the request, 422 when the fault arose servicing it. Internal error
// text is never surfaced.
func handleServiceError(w http.ResponseWriter, err error) {
	kind := linkpreview.KindOf(err)

	switch kind {
	case linkpreview.KindInvalidURL:
		writeError(w, http.StatusBadRequest, kind, publicMessage(err, "URL is invalid or not allowed"))

	case linkpreview.KindFetchBlocked,
		linkpreview.KindTimeout,
		linkpreview.KindFetchError,
		linkpreview.KindNoMetadata:
		writeError(w, http.StatusUnprocessableEntity, kind, publicMessage(err, "failed to generate a preview"))

	default:
		log.Printf("Unexpected error in preview handler: %v", err)
		writeError(w, http.StatusInternalServerError, linkpreview.KindFetchError,
			"an internal error occurred")
	}
}

// publicMessage returns the classified error's message, which the service layer
// constructs without internal details, or a fallback for anything else.
func publicMessage(err error, fallback string) string {
	var perr *linkpreview.Error
	if errors.As(err, &perr) && perr.Message != "" {
		return perr.Message
	}
	return fallback
}
