package linkpreview

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type postgresPreviewRepo struct {
	db *sql.DB
}

// NewRepository creates a new PostgreSQL preview cache repository.
func NewRepository(db *sql.DB) Repository {
	return &postgresPreviewRepo{db: db}
}

// Get retrieves the cache entry for the given normalized URL. Expired rows are
// treated as absent; they are overwritten by the next Set rather than deleted.
func (r *postgresPreviewRepo) Get(ctx context.Context, normalizedURL string) (*CacheEntry, error) {
	query := `
		SELECT url, status, http_status, error_code, metadata, fetched_at, expires_at
		FROM link_preview_cache
		WHERE url = $1 AND expires_at > NOW()
	`

	var (
		entry        CacheEntry
		httpStatus   sql.NullInt64
		errorCode    sql.NullString
		metadataJSON []byte
	)

	err := r.db.QueryRowContext(ctx, query, normalizedURL).Scan(
		&entry.URL, &entry.Status, &httpStatus, &errorCode, &metadataJSON,
		&entry.FetchedAt, &entry.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		// Not found or expired is not an error
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preview cache entry: %w", err)
	}

	if httpStatus.Valid {
		n := int(httpStatus.Int64)
		entry.HTTPStatus = &n
	}
	if errorCode.Valid {
		k := Kind(errorCode.String)
		entry.ErrorCode = &k
	}
	if len(metadataJSON) > 0 {
		var preview Preview
		if err := json.Unmarshal(metadataJSON, &preview); err != nil {
			return nil, fmt.Errorf("failed to unmarshal preview metadata: %w", err)
		}
		entry.Preview = &preview
	}

	return &entry, nil
}

// Set upserts the entry keyed by its normalized URL. Each write replaces the
// full row, so concurrent writers simply race to be last and the later TTL
// wins; no partial updates are possible.
func (r *postgresPreviewRepo) Set(ctx context.Context, entry *CacheEntry, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("invalid TTL %v: must be positive", ttl)
	}

	var metadataJSON []byte
	if entry.Preview != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Preview)
		if err != nil {
			return fmt.Errorf("failed to marshal preview metadata: %w", err)
		}
	}

	var httpStatus sql.NullInt64
	if entry.HTTPStatus != nil {
		httpStatus = sql.NullInt64{Int64: int64(*entry.HTTPStatus), Valid: true}
	}
	var errorCode sql.NullString
	if entry.ErrorCode != nil {
		errorCode = sql.NullString{String: string(*entry.ErrorCode), Valid: true}
	}

	query := `
		INSERT INTO link_preview_cache (url, status, http_status, error_code, metadata, fetched_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW() + $6::interval)
		ON CONFLICT (url) DO UPDATE
		SET status = EXCLUDED.status,
		    http_status = EXCLUDED.http_status,
		    error_code = EXCLUDED.error_code,
		    metadata = EXCLUDED.metadata,
		    fetched_at = NOW(),
		    expires_at = EXCLUDED.expires_at
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.URL, entry.Status, httpStatus, errorCode, metadataJSON, formatInterval(ttl))
	if err != nil {
		return fmt.Errorf("failed to upsert preview cache entry: %w", err)
	}

	return nil
}

// formatInterval converts a Go duration to a PostgreSQL interval string,
// e.g. "24 hours", "7 days".
func formatInterval(d time.Duration) string {
	seconds := int64(d.Seconds())

	switch {
	case seconds >= 86400 && seconds%86400 == 0:
		return fmt.Sprintf("%d days", seconds/86400)
	case seconds >= 3600 && seconds%3600 == 0:
		return fmt.Sprintf("%d hours", seconds/3600)
	case seconds >= 60 && seconds%60 == 0:
		return fmt.Sprintf("%d minutes", seconds/60)
	default:
		return fmt.Sprintf("%d seconds", seconds)
	}
}
