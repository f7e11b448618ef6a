package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ecp-eth/comments-monorepo-sub007/pkg/comments"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/submitter"
)

func TestWritePipelineErrorValidation(t *testing.T) {
	verr := comments.NewValidationError("content", "content is required")
	verr.Add("author", "author must be a hex address")

	rec := httptest.NewRecorder()
	WritePipelineError(rec, verr)

	if rec.Code != 400 {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body struct {
		RequestID string              `json:"request_id"`
		Errors    map[string][]string `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(body.RequestID, "req_") {
		t.Fatalf("expected request id, got %q", body.RequestID)
	}
	if len(body.Errors["content"]) != 1 || len(body.Errors["author"]) != 1 {
		t.Fatalf("expected per-field reason lists, got %+v", body.Errors)
	}
}

func TestWritePipelineErrorRateLimited(t *testing.T) {
	rec := httptest.NewRecorder()
	WritePipelineError(rec, &comments.RateLimitedError{RetryAfter: 42*time.Second + 300*time.Millisecond})

	if rec.Code != 429 {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "43" {
		t.Fatalf("expected Retry-After rounded up to 43, got %q", got)
	}
}

func TestWritePipelineErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
		want string
	}{
		{&comments.AuthorizationError{Reason: "author is muted"}, 403, "AUTHOR_BLOCKED"},
		{comments.ErrSignatureInvalid, 400, "SIGNATURE_INVALID"},
		{fmt.Errorf("send: %w", submitter.ErrAppSignatureMismatch), 400, "SIGNATURE_INVALID"},
		{comments.ErrAuthorNotApproved, 403, "AUTHOR_NOT_APPROVED"},
		{comments.ErrSubmissionReverted, 409, "SUBMISSION_REVERTED"},
		{fmt.Errorf("%w: dial tcp", comments.ErrUpstreamUnavailable), 500, "UPSTREAM_UNAVAILABLE"},
		{errors.New("something internal"), 500, "UPSTREAM_UNAVAILABLE"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		WritePipelineError(rec, tc.err)
		if rec.Code != tc.code {
			t.Fatalf("%v: expected status %d, got %d", tc.err, tc.code, rec.Code)
		}
		var body struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Error.Code != tc.want {
			t.Fatalf("%v: expected code %s, got %s", tc.err, tc.want, body.Error.Code)
		}
	}
}
