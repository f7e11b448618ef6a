package comments

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSignatureInvalid covers any author-signature mismatch. Callers must
	// not retry with the same inputs. Deliberately opaque about which
	// sub-check failed.
	ErrSignatureInvalid = errors.New("signature invalid")

	// ErrUpstreamUnavailable is a transient failure reading chain state or
	// broadcasting. Retryable with backoff on the read path only.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrSubmissionReverted means the broadcast succeeded but the on-chain
	// state transition failed. Distinct from a network failure.
	ErrSubmissionReverted = errors.New("submission reverted")

	// ErrAuthorNotApproved means submission was requested without an author
	// signature while the author has not delegated to the app signer.
	ErrAuthorNotApproved = errors.New("author has not approved the app signer")
)

// ValidationError is a structured 400: a map from field name to the list of
// human-readable reasons. Guard failures become entries here, never panics.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d field(s)", len(e.Fields))
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: {reason}}}
}

func (e *ValidationError) Add(field, reason string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], reason)
}

// AuthorizationError is a hard policy rejection (muted or flagged author).
// Not retryable without a moderation change.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return "unauthorized: " + e.Reason }

// RateLimitedError carries the window reset so callers can set Retry-After.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter.Round(time.Second))
}

// RetryAfterSeconds rounds up to whole seconds for the Retry-After header.
func (e *RateLimitedError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
