package linkpreview

import (
	"context"
	"errors"
	"log"
	"net/url"

	"golang.org/x/sync/singleflight"
)

// Service handles link preview requests with caching.
type Service interface {
	// Preview validates rawURL, consults the cache, and fetches + extracts
	// metadata on a miss. force bypasses the cache read (never the write).
	Preview(ctx context.Context, rawURL string, force bool) (*Result, error)
}

type service struct {
	repo      Repository
	validator *Validator
	fetcher   *Fetcher
	cfg       Config
	flight    singleflight.Group
}

// ServiceOption configures the service.
type ServiceOption func(*service)

// WithLookup overrides DNS resolution, for tests.
func WithLookup(lookup LookupIPFunc) ServiceOption {
	return func(s *service) {
		resolver := NewResolverWithLookup(s.validator, lookup)
		s.fetcher = NewFetcher(s.cfg, s.validator, resolver)
	}
}

// NewService creates a new link preview service.
func NewService(repo Repository, cfg Config, opts ...ServiceOption) Service {
	s := &service{
		repo:      repo,
		cfg:       cfg,
		validator: NewValidator(cfg),
	}
	s.fetcher = NewFetcher(cfg, s.validator, NewResolver(s.validator))

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Preview implements the request state machine: validate, check cache, then on
// a miss resolve/fetch/extract, record the outcome (success or failure), and
// shape the response.
func (s *service) Preview(ctx context.Context, rawURL string, force bool) (*Result, error) {
	// Syntactic SSRF check before anything else. A URL blocked here never
	// reached the network, so the failure is input validation, not a fetch
	// failure.
	if err := s.validateInput(rawURL); err != nil {
		return nil, err
	}

	normalized, err := Normalize(rawURL)
	if err != nil {
		return nil, err
	}
	domain := ExtractDomain(normalized)

	if !force {
		if result, err, hit := s.checkCache(ctx, normalized, domain); hit {
			return result, err
		}
	}

	// Concurrent misses for the same normalized URL share one fetch. This is
	// an efficiency measure only: the upsert below is idempotent, so
	// correctness never depends on deduplication.
	shared, err, _ := s.flight.Do(normalized, func() (interface{}, error) {
		return s.fetchAndStore(ctx, normalized)
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		NormalizedURL: normalized,
		Domain:        domain,
		Cached:        false,
		Data:          shared.(*Preview),
	}, nil
}

func (s *service) validateInput(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return newError(KindInvalidURL, "failed to parse URL: %v", err)
	}
	if err := s.validator.ValidateURL(u); err != nil {
		return newError(KindInvalidURL, "URL is not allowed: %s", u.Hostname())
	}
	return nil
}

// checkCache returns (result, err, true) when an unexpired entry exists. A
// stored failure is replayed as a failure with its recorded kind; it is never
// surfaced as preview data. Cache read errors degrade to a miss.
func (s *service) checkCache(ctx context.Context, normalized, domain string) (*Result, error, bool) {
	entry, err := s.repo.Get(ctx, normalized)
	if err != nil {
		log.Printf("[PREVIEW] cache read failed for %s, treating as miss: %v", normalized, err)
		return nil, nil, false
	}
	if entry == nil {
		return nil, nil, false
	}

	if entry.Status != StatusOK {
		kind := KindFetchError
		if entry.ErrorCode != nil {
			kind = *entry.ErrorCode
		}
		perr := &Error{Kind: kind, Message: messageForKind(kind)}
		if entry.HTTPStatus != nil {
			perr.HTTPStatus = *entry.HTTPStatus
		}
		log.Printf("[PREVIEW] cached failure for %s (%s)", normalized, kind)
		return nil, perr, true
	}

	log.Printf("[PREVIEW] cache hit for %s", normalized)
	return &Result{
		NormalizedURL: normalized,
		Domain:        domain,
		Cached:        true,
		Data:          entry.Preview,
	}, nil, true
}

// fetchAndStore performs the network fetch and extraction, recording the
// outcome in the cache either way so persistently failing URLs degrade to
// cheap cache hits instead of repeated slow fetches.
func (s *service) fetchAndStore(ctx context.Context, normalized string) (*Preview, error) {
	body, finalURL, err := s.fetcher.Fetch(ctx, normalized)
	if err != nil {
		s.storeFailure(ctx, normalized, err)
		return nil, err
	}

	preview := Extract(body, finalURL)
	if preview.Title == nil && preview.Description == nil && preview.Image == nil {
		err := newError(KindNoMetadata, "no preview metadata found at %s", finalURL)
		s.storeFailure(ctx, normalized, err)
		return nil, err
	}

	ttl := s.cfg.DefaultTTL
	if preview.Price != nil {
		// Prices go stale faster than titles and images.
		ttl = s.cfg.PriceTTL
	}

	entry := &CacheEntry{
		URL:     normalized,
		Status:  StatusOK,
		Preview: &preview,
	}
	if cacheErr := s.repo.Set(ctx, entry, ttl); cacheErr != nil {
		// Cache is best-effort; the fetched preview is still good.
		log.Printf("[PREVIEW] failed to cache result for %s: %v", normalized, cacheErr)
	}

	log.Printf("[PREVIEW] fetched %s (final: %s, price: %v)", normalized, finalURL, preview.Price != nil)
	return &preview, nil
}

func (s *service) storeFailure(ctx context.Context, normalized string, failure error) {
	kind := KindOf(failure)
	entry := &CacheEntry{
		URL:       normalized,
		Status:    StatusError,
		ErrorCode: &kind,
	}
	var perr *Error
	if errors.As(failure, &perr) && perr.HTTPStatus != 0 {
		status := perr.HTTPStatus
		entry.HTTPStatus = &status
	}

	// Error entries carry no price, so the default TTL rule applies.
	if err := s.repo.Set(ctx, entry, s.cfg.DefaultTTL); err != nil {
		log.Printf("[PREVIEW] failed to cache failure for %s: %v", normalized, err)
	}
}
