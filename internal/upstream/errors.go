// Package upstream models the remote catalog API: request routing, the
// paginated response envelope, payload decoding, and the typed error
// taxonomy shared by every layer above the raw HTTP client.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Kind classifies a request failure. The retryable kinds advance the network
// client's backoff state; the rest are terminal for the request that caused
// them.
type Kind uint8

const (
	// KindNoConnection means the transport could not reach the upstream.
	KindNoConnection Kind = iota

	// KindUnauthorized means the API key was rejected (HTTP 401).
	KindUnauthorized

	// KindForbidden means the request was understood and denied (403).
	KindForbidden

	// KindNotFound means the resource does not exist (404). For detail
	// lookups callers treat this as "item no longer exists".
	KindNotFound

	// KindRateLimited means the upstream throttled the request (429).
	KindRateLimited

	// KindServerError covers upstream 5xx responses.
	KindServerError

	// KindDecoding means the response body did not match the expected
	// shape. Malformed upstream data is surfaced, never silently treated
	// as an empty result.
	KindDecoding

	// KindCancelled means the caller's context was cancelled.
	KindCancelled

	// KindTimeout means the per-call deadline elapsed.
	KindTimeout

	// KindInvalidRequest covers remaining 4xx responses.
	KindInvalidRequest
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNoConnection:
		return "no_connection"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindServerError:
		return "server_error"
	case KindDecoding:
		return "decoding"
	case KindCancelled:
		return "cancelled"
	case KindTimeout:
		return "timeout"
	case KindInvalidRequest:
		return "invalid_request"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// Retryable reports whether a later attempt of the same request could
// succeed.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindServerError, KindTimeout, KindNoConnection:
		return true
	default:
		return false
	}
}

// Error is a typed request failure.
type Error struct {
	// Kind is the failure classification.
	Kind Kind

	// StatusCode is the HTTP status, when one was received.
	StatusCode int

	// RetryAfter is the upstream-suggested delay for rate-limited
	// failures, zero otherwise.
	RetryAfter time.Duration

	// cause is the wrapped underlying error, possibly nil.
	cause error
}

// NewError creates an Error of the given kind wrapping a cause.
func NewError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("upstream %s", e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}

	return msg
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether the failure kind is retryable.
func (e *Error) Retryable() bool {
	return e.Kind.Retryable()
}

// IsKind reports whether err is an upstream Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind == kind
	}

	return false
}

// IsRetryable reports whether err is an upstream Error of a retryable
// kind.
func IsRetryable(err error) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Retryable()
}

// ClassifyStatus maps a non-2xx HTTP status to a typed error. The retryAfter
// hint only applies to rate-limit responses.
func ClassifyStatus(status int, retryAfter time.Duration) *Error {
	e := &Error{StatusCode: status}

	switch {
	case status == 401:
		e.Kind = KindUnauthorized

	case status == 403:
		e.Kind = KindForbidden

	case status == 404:
		e.Kind = KindNotFound

	case status == 429:
		e.Kind = KindRateLimited
		e.RetryAfter = retryAfter

	case status >= 500:
		e.Kind = KindServerError

	default:
		e.Kind = KindInvalidRequest
	}

	return e
}

// ClassifyTransport maps a transport-level error (no HTTP response) to a
// typed error.
func ClassifyTransport(err error) *Error {
	switch {
	case errors.Is(err, context.Canceled):
		return NewError(KindCancelled, err)

	case errors.Is(err, context.DeadlineExceeded):
		return NewError(KindTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewError(KindTimeout, err)
	}

	return NewError(KindNoConnection, err)
}
