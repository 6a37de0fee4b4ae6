package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Kind classifies a provider failure. The split that matters operationally
// is Transient: transient failures are retried and eventually trigger
// fallback, permanent failures propagate immediately.
type Kind string

const (
	// KindAuth covers rejected or missing credentials.
	KindAuth Kind = "auth"

	// KindInvalidRequest covers malformed or rejected request payloads.
	KindInvalidRequest Kind = "invalid_request"

	// KindRateLimited covers throttling responses.
	KindRateLimited Kind = "rate_limited"

	// KindTimeout covers request timeouts.
	KindTimeout Kind = "timeout"

	// KindUnavailable covers backend outages and 5xx responses.
	KindUnavailable Kind = "unavailable"

	// KindUnknown covers failures that could not be classified. Treated
	// as transient: an unclassified network hiccup is worth one more try.
	KindUnknown Kind = "unknown"
)

// Error is a classified provider failure.
type Error struct {
	// Provider is the provider that failed.
	Provider string

	// Operation is the pipeline operation that was in flight.
	Operation string

	// Kind is the failure classification.
	Kind Kind

	// Message is a human-readable description.
	Message string

	// RetryAfter is the backend's requested wait before retrying, when
	// the response carried one. Zero means no hint.
	RetryAfter time.Duration

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("provider %s: %s: %s", e.Provider, e.Operation, e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying on the same
// provider.
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindRateLimited, KindTimeout, KindUnavailable, KindUnknown:
		return true
	default:
		return false
	}
}

// IsTransient reports whether err carries a transient provider Error.
// Unclassified errors are treated as transient.
func IsTransient(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Transient()
	}
	return true
}

// IsPermanent reports whether err carries a permanent provider Error.
func IsPermanent(err error) bool {
	return !IsTransient(err)
}

// classifyStatus maps an HTTP status code to a failure Kind.
func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout:
		return KindTimeout
	case status == http.StatusBadRequest || status == http.StatusNotFound ||
		status == http.StatusUnprocessableEntity:
		return KindInvalidRequest
	case status >= 500:
		return KindUnavailable
	default:
		return KindUnknown
	}
}

// retryAfterFromHeader parses a Retry-After header value. Only the
// delta-seconds form is honored; the HTTP-date form is rare from these
// backends and not worth the clock skew.
func retryAfterFromHeader(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
