package linkpreview

import "time"

// Preview is the extracted metadata payload for a URL.
type Preview struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Image       *string  `json:"image"`
	Images      []string `json:"images"`
	Price       *Price   `json:"price"`
	Favicon     string   `json:"favicon"`
}

// Price is a product price extracted from structured data.
type Price struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// StatusOK and StatusError are the two cache entry states.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// CacheEntry is a row in the link_preview_cache table, keyed by normalized URL.
// Both successful and failed fetch attempts are recorded; expiry is evaluated
// lazily at read time.
type CacheEntry struct {
	URL        string
	Status     string
	HTTPStatus *int
	ErrorCode  *Kind
	Preview    *Preview
	FetchedAt  time.Time
	ExpiresAt  time.Time
}

// Result is what the orchestrator hands back to the HTTP layer on success.
type Result struct {
	NormalizedURL string   `json:"normalizedUrl"`
	Domain        string   `json:"domain"`
	Cached        bool     `json:"cached"`
	Data          *Preview `json:"data"`
}
