package linkpreview

import (
	"context"
	"time"
)

// Repository defines the interface for preview cache persistence.
type Repository interface {
	// Get retrieves the cache entry for the given normalized URL.
	// Returns nil, nil if no unexpired entry exists (not an error condition);
	// expiry is evaluated lazily at read time. Error entries ARE returned:
	// the service replays their failure instead of re-fetching, it just never
	// serves them as preview data.
	Get(ctx context.Context, normalizedURL string) (*CacheEntry, error)

	// Set upserts the cache entry for entry.URL with the specified TTL,
	// replacing the full row. expires_at is calculated as NOW() + ttl.
	Set(ctx context.Context, entry *CacheEntry, ttl time.Duration) error
}
