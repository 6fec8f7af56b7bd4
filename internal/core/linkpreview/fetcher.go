package linkpreview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// redirectStatuses are the response codes treated as redirects by the fetcher.
var redirectStatuses = map[int]bool{
	http.StatusMovedPermanently:  true, // 301
	http.StatusFound:             true, // 302
	http.StatusSeeOther:          true, // 303
	http.StatusTemporaryRedirect: true, // 307
	http.StatusPermanentRedirect: true, // 308
}

// Fetcher retrieves HTML from user-supplied URLs with a hard timeout, a byte
// cap on the response body, and manual redirect handling that re-resolves and
// re-validates the target at every hop.
type Fetcher struct {
	client    *http.Client
	validator *Validator
	resolver  *Resolver
	cfg       Config
}

// NewFetcher creates a Fetcher. The underlying client never follows redirects
// on its own; each hop goes back through DNS screening first.
func NewFetcher(cfg Config, validator *Validator, resolver *Resolver) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		validator: validator,
		resolver:  resolver,
		cfg:       cfg,
	}
}

// Fetch retrieves the page at rawURL and returns its body together with the
// URL of the hop that produced the 2xx response, which may differ from rawURL
// after redirects. All failures are classified; there are no retries.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (body string, finalURL string, err error) {
	current, err := url.Parse(rawURL)
	if err != nil {
		return "", "", newError(KindInvalidURL, "failed to parse URL: %v", err)
	}

	// Explicit hop loop rather than recursion: the redirect bound doubles as
	// the loop's termination guarantee.
	for redirects := 0; ; redirects++ {
		if redirects > f.cfg.MaxRedirects {
			return "", "", newError(KindFetchBlocked, "too many redirects (max %d)", f.cfg.MaxRedirects)
		}

		// Every hop re-resolves its hostname and re-screens the answers. A
		// redirect chain cannot borrow the trust of an earlier hop, and a DNS
		// answer that changed since validation is re-checked here.
		if _, err := f.resolver.Resolve(ctx, current.Hostname()); err != nil {
			return "", "", err
		}

		done, next, err := f.fetchOnce(ctx, current)
		if err != nil {
			return "", "", err
		}
		if next != nil {
			current = next
			continue
		}
		return done, current.String(), nil
	}
}

// fetchOnce performs a single hop. It returns either the page body, or the
// validated redirect target to try next.
func (f *Fetcher) fetchOnce(ctx context.Context, u *url.URL) (body string, redirect *url.URL, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", nil, newError(KindFetchError, "failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded || isTimeoutError(err) {
			return "", nil, newError(KindTimeout, "request timed out after %v", f.cfg.FetchTimeout)
		}
		return "", nil, newError(KindFetchError, "request failed: %v", err)
	}
	defer resp.Body.Close()

	if redirectStatuses[resp.StatusCode] {
		loc := resp.Header.Get("Location")
		if loc == "" {
			return "", nil, newError(KindFetchError, "redirect response missing Location header")
		}
		ref, err := url.Parse(loc)
		if err != nil {
			return "", nil, newError(KindFetchError, "invalid redirect location %q: %v", loc, err)
		}
		target := u.ResolveReference(ref)
		if err := f.validator.ValidateURL(target); err != nil {
			return "", nil, newError(KindFetchBlocked, "redirect target not allowed: %s", target.Hostname())
		}
		return "", target, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", nil, &Error{
			Kind:       KindFetchError,
			Message:    fmt.Sprintf("unexpected status %d", resp.StatusCode),
			HTTPStatus: resp.StatusCode,
		}
	}

	if resp.ContentLength > 0 && resp.ContentLength > f.cfg.MaxBodyBytes {
		return "", nil, newError(KindFetchError, "content length %d exceeds maximum %d bytes",
			resp.ContentLength, f.cfg.MaxBodyBytes)
	}

	// Read one byte past the cap so a server that omits Content-Length and
	// streams an unbounded body is caught instead of silently truncated.
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded {
			return "", nil, newError(KindTimeout, "request timed out after %v", f.cfg.FetchTimeout)
		}
		return "", nil, newError(KindFetchError, "failed to read response body: %v", err)
	}
	if int64(len(data)) > f.cfg.MaxBodyBytes {
		return "", nil, newError(KindFetchError, "response body exceeds maximum %d bytes", f.cfg.MaxBodyBytes)
	}

	return string(data), nil, nil
}

// isTimeoutError checks if the error is a timeout-related error.
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if te, ok := err.(interface{ Timeout() bool }); ok {
		return te.Timeout()
	}
	return false
}
