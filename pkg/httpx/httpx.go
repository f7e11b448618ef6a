package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/ecp-eth/comments-monorepo-sub007/pkg/comments"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/submitter"
)

func NewRequestID() string { return "req_" + uuid.NewString() }

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ReadJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	resp := map[string]any{
		"request_id": NewRequestID(),
		"error": map[string]any{
			"code": code, "message": message, "details": details,
		},
	}
	WriteJSON(w, status, resp)
}

// WriteFieldErrors is the validation-failure envelope: a map from field
// name to a list of human-readable reasons, never one combined string.
func WriteFieldErrors(w http.ResponseWriter, fields map[string][]string) {
	WriteJSON(w, http.StatusBadRequest, map[string]any{
		"request_id": NewRequestID(),
		"errors":     fields,
	})
}

// WritePipelineError maps the relay error taxonomy onto HTTP. Anything not
// explicitly recognized fails closed as a generic 500 without leaking
// internal detail.
func WritePipelineError(w http.ResponseWriter, err error) {
	var verr *comments.ValidationError
	if errors.As(err, &verr) {
		WriteFieldErrors(w, verr.Fields)
		return
	}
	var aerr *comments.AuthorizationError
	if errors.As(err, &aerr) {
		WriteError(w, http.StatusForbidden, "AUTHOR_BLOCKED", aerr.Reason, nil)
		return
	}
	var rerr *comments.RateLimitedError
	if errors.As(err, &rerr) {
		w.Header().Set("Retry-After", strconv.Itoa(rerr.RetryAfterSeconds()))
		WriteError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limited", map[string]any{
			"retry_after_seconds": rerr.RetryAfterSeconds(),
		})
		return
	}
	switch {
	case errors.Is(err, comments.ErrSignatureInvalid), errors.Is(err, submitter.ErrAppSignatureMismatch):
		WriteError(w, http.StatusBadRequest, "SIGNATURE_INVALID", "signature verification failed", nil)
	case errors.Is(err, comments.ErrAuthorNotApproved):
		WriteError(w, http.StatusForbidden, "AUTHOR_NOT_APPROVED", "author has not approved the app signer", nil)
	case errors.Is(err, comments.ErrSubmissionReverted):
		WriteError(w, http.StatusConflict, "SUBMISSION_REVERTED", "transaction executed but reverted on-chain", nil)
	default:
		WriteError(w, http.StatusInternalServerError, "UPSTREAM_UNAVAILABLE", "upstream unavailable", nil)
	}
}
