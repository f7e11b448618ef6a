package relayclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ecp-eth/comments-monorepo-sub007/pkg/comments"
)

func TestPreparePostsToKindEndpoint(t *testing.T) {
	var gotPath, gotIdem string
	var gotBody OperationInput
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotIdem = r.Header.Get("X-Idempotency-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"request_id": "req_test",
			"result":     map[string]any{"status": "AWAITING_AUTHOR_SIGNATURE", "nonce": "3"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	env, err := c.Prepare(context.Background(), comments.KindPostComment, OperationInput{
		Author:    "0x00000000000000000000000000000000000000aa",
		TargetURI: "https://example.com",
		Content:   "hi",
	})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if gotPath != "/api/post_comment/prepare" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotIdem != "" {
		t.Fatalf("prepare must not send an idempotency key, got %q", gotIdem)
	}
	if gotBody.Content != "hi" {
		t.Fatalf("unexpected body %+v", gotBody)
	}
	if env.RequestID != "req_test" || env.Result.Nonce.String() != "3" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestSendCarriesIdempotencyKey(t *testing.T) {
	var gotIdem string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdem = r.Header.Get("X-Idempotency-Key")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"request_id": "req_test",
			"result":     map[string]any{"status": "SUBMITTED"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.Send(context.Background(), comments.KindAddApproval, OperationInput{
		Author: "0x00000000000000000000000000000000000000aa",
	}, "idem-123"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotIdem != "idem-123" {
		t.Fatalf("expected idempotency key forwarded, got %q", gotIdem)
	}
}

func TestErrorStatusSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": "RATE_LIMITED"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Prepare(context.Background(), comments.KindPostComment, OperationInput{})
	if err == nil {
		t.Fatalf("expected error for 429 response")
	}
	if got := err.Error(); !strings.Contains(got, "429") || !strings.Contains(got, "RATE_LIMITED") {
		t.Fatalf("expected status and code in error, got %q", got)
	}
}
