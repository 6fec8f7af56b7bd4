package linkpreview

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config validation errors
var (
	// ErrInvalidFetchTimeout is returned when FetchTimeout is not positive
	ErrInvalidFetchTimeout = errors.New("FetchTimeout must be positive")
	// ErrInvalidMaxBodyBytes is returned when MaxBodyBytes is not positive
	ErrInvalidMaxBodyBytes = errors.New("MaxBodyBytes must be positive")
	// ErrInvalidMaxRedirects is returned when MaxRedirects is negative
	ErrInvalidMaxRedirects = errors.New("MaxRedirects cannot be negative")
	// ErrInvalidTTL is returned when a cache TTL is not positive
	ErrInvalidTTL = errors.New("cache TTLs must be positive")
	// ErrMissingUserAgent is returned when UserAgent is empty
	ErrMissingUserAgent = errors.New("UserAgent is required")
)

// Config holds the tunable bounds of the link-preview subsystem. All values are
// injected into the components so tests can substitute tightened bounds without
// touching production defaults.
type Config struct {
	// UserAgent identifies outbound fetches to third-party sites.
	UserAgent string

	// FetchTimeout is the hard budget for a single HTTP attempt (per hop).
	FetchTimeout time.Duration

	// MaxBodyBytes caps how much of a response body is read. Responses that
	// exceed it fail rather than truncate.
	MaxBodyBytes int64

	// MaxRedirects bounds the redirect chain. A chain needing more hops fails.
	MaxRedirects int

	// PriceTTL is the cache lifetime for previews that carry a price.
	PriceTTL time.Duration

	// DefaultTTL is the cache lifetime for everything else, error entries
	// included.
	DefaultTTL time.Duration

	// AllowLoopback relaxes only the loopback checks so local development and
	// tests can fetch from 127.0.0.1. Every other private range stays blocked.
	AllowLoopback bool
}

// DefaultConfig returns a Config with production values.
func DefaultConfig() Config {
	return Config{
		UserAgent:     "GiftlyBot/1.0 (+https://giftly.app)",
		FetchTimeout:  8 * time.Second,
		MaxBodyBytes:  2 * 1024 * 1024,
		MaxRedirects:  5,
		PriceTTL:      24 * time.Hour,
		DefaultTTL:    7 * 24 * time.Hour,
		AllowLoopback: false,
	}
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.UserAgent == "" {
		return ErrMissingUserAgent
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidFetchTimeout, c.FetchTimeout)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxBodyBytes, c.MaxBodyBytes)
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxRedirects, c.MaxRedirects)
	}
	if c.PriceTTL <= 0 || c.DefaultTTL <= 0 {
		return fmt.Errorf("%w: price=%v default=%v", ErrInvalidTTL, c.PriceTTL, c.DefaultTTL)
	}
	return nil
}

// ConfigFromEnv creates a Config from environment variables, falling back to
// defaults for anything missing or malformed.
//
// Environment variables:
//   - LINK_PREVIEW_USER_AGENT: outbound User-Agent string
//   - LINK_PREVIEW_FETCH_TIMEOUT_SECONDS: per-hop fetch timeout (default: 8)
//   - LINK_PREVIEW_MAX_BODY_KB: response body cap in KiB (default: 2048)
//   - LINK_PREVIEW_MAX_REDIRECTS: redirect chain bound (default: 5)
//   - LINK_PREVIEW_PRICE_TTL_HOURS: TTL for previews with a price (default: 24)
//   - LINK_PREVIEW_DEFAULT_TTL_HOURS: TTL for everything else (default: 168)
//   - LINK_PREVIEW_ALLOW_LOOPBACK: "true"/"1" to allow loopback targets (dev only)
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("LINK_PREVIEW_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}

	if v := os.Getenv("LINK_PREVIEW_FETCH_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FetchTimeout = time.Duration(n) * time.Second
		} else {
			slog.Warn("[PREVIEW] invalid LINK_PREVIEW_FETCH_TIMEOUT_SECONDS, using default",
				"value", v,
				"default_seconds", int(cfg.FetchTimeout.Seconds()),
				"error", err,
			)
		}
	}

	if v := os.Getenv("LINK_PREVIEW_MAX_BODY_KB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxBodyBytes = int64(n) * 1024
		} else {
			slog.Warn("[PREVIEW] invalid LINK_PREVIEW_MAX_BODY_KB, using default",
				"value", v,
				"default_kb", cfg.MaxBodyBytes/1024,
				"error", err,
			)
		}
	}

	if v := os.Getenv("LINK_PREVIEW_MAX_REDIRECTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxRedirects = n
		} else {
			slog.Warn("[PREVIEW] invalid LINK_PREVIEW_MAX_REDIRECTS, using default",
				"value", v,
				"default", cfg.MaxRedirects,
				"error", err,
			)
		}
	}

	if v := os.Getenv("LINK_PREVIEW_PRICE_TTL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PriceTTL = time.Duration(n) * time.Hour
		} else {
			slog.Warn("[PREVIEW] invalid LINK_PREVIEW_PRICE_TTL_HOURS, using default",
				"value", v,
				"default_hours", int(cfg.PriceTTL.Hours()),
				"error", err,
			)
		}
	}

	if v := os.Getenv("LINK_PREVIEW_DEFAULT_TTL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DefaultTTL = time.Duration(n) * time.Hour
		} else {
			slog.Warn("[PREVIEW] invalid LINK_PREVIEW_DEFAULT_TTL_HOURS, using default",
				"value", v,
				"default_hours", int(cfg.DefaultTTL.Hours()),
				"error", err,
			)
		}
	}

	if v := os.Getenv("LINK_PREVIEW_ALLOW_LOOPBACK"); v != "" {
		cfg.AllowLoopback = v == "true" || v == "1"
	}

	return cfg
}
