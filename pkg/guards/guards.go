// Package guards is the ordered validation pipeline in front of signing and
// submission. Guard failures are data, not exceptions: each guard returns a
// Result and Run short-circuits on the first failure. Anything a guard
// cannot classify fails closed as upstream-unavailable.
package guards

import (
	"context"
	"time"

	"github.com/ecp-eth/comments-monorepo-sub007/pkg/comments"
)

type Code string

const (
	CodeDeadlineInvalid     Code = "DEADLINE_INVALID"
	CodeContentTooLarge     Code = "CONTENT_TOO_LARGE"
	CodeRateLimited         Code = "RATE_LIMITED"
	CodeAuthorBlocked       Code = "AUTHOR_BLOCKED"
	CodeSignatureInvalid    Code = "SIGNATURE_INVALID"
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"
)

// Result is a pass, or a failure with the offending field and a
// human-readable reason.
type Result struct {
	OK     bool
	Code   Code
	Field  string
	Reason string

	// Set on rate-limit failures: time until the window resets.
	RetryAfter time.Duration
}

func Pass() Result { return Result{OK: true} }

func Fail(code Code, field, reason string) Result {
	return Result{Code: code, Field: field, Reason: reason}
}

// Err maps a failed Result onto the pipeline error taxonomy. A passing
// Result maps to nil.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	switch r.Code {
	case CodeRateLimited:
		return &comments.RateLimitedError{RetryAfter: r.RetryAfter}
	case CodeAuthorBlocked:
		return &comments.AuthorizationError{Reason: r.Reason}
	case CodeSignatureInvalid:
		return comments.ErrSignatureInvalid
	case CodeUpstreamUnavailable:
		return comments.ErrUpstreamUnavailable
	default:
		return comments.NewValidationError(r.Field, r.Reason)
	}
}

// Guard is one independent pre-condition check.
type Guard interface {
	Name() string
	Check(ctx context.Context, req comments.OperationRequest) Result
}

// Run executes guards in order and stops at the first failure.
func Run(ctx context.Context, req comments.OperationRequest, gs ...Guard) Result {
	for _, g := range gs {
		if res := g.Check(ctx, req); !res.OK {
			return res
		}
	}
	return Pass()
}
