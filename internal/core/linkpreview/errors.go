package linkpreview

import (
	"errors"
	"fmt"
)

// Kind classifies a preview failure. Kinds are stable wire values: they appear
// in API error responses and in the error_code column of the cache table.
type Kind string

const (
	// KindInvalidURL covers malformed input, disallowed schemes, and URLs that
	// fail the syntactic SSRF check before any network access.
	KindInvalidURL Kind = "INVALID_URL"

	// KindFetchBlocked covers DNS answers in disallowed ranges, disallowed
	// redirect targets, and over-long redirect chains.
	KindFetchBlocked Kind = "FETCH_BLOCKED"

	// KindTimeout is a fetch that exceeded its time budget.
	KindTimeout Kind = "TIMEOUT"

	// KindFetchError covers non-2xx responses, oversized bodies, missing
	// redirect locations, and other transport failures.
	KindFetchError Kind = "FETCH_ERROR"

	// KindNoMetadata is a successful fetch from which no usable fields
	// (title, description, image) could be extracted.
	KindNoMetadata Kind = "NO_METADATA"
)

// Error is a classified preview failure. HTTPStatus carries the upstream
// response status when one was received (e.g. a 404 from the target site).
type Error struct {
	Kind       Kind
	Message    string
	HTTPStatus int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err, or KindFetchError if err is not a classified
// preview error. The orchestrator guarantees no unclassified error escapes, so
// the fallback is a safety net rather than an expected path.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindFetchError
}

// IsKind reports whether err is a preview error of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}

// messageForKind produces the stored-failure message when replaying a cached
// error entry; the original message is not persisted.
func messageForKind(kind Kind) string {
	switch kind {
	case KindInvalidURL:
		return "URL is invalid or not allowed"
	case KindFetchBlocked:
		return "URL target is not allowed"
	case KindTimeout:
		return "fetching the URL timed out"
	case KindNoMetadata:
		return "no preview metadata found"
	default:
		return "failed to fetch the URL"
	}
}
