package guards

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ecp-eth/comments-monorepo-sub007/pkg/appsigner"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/comments"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/ratelimit"
)

var testAuthor = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func baseRequest() comments.OperationRequest {
	return comments.OperationRequest{
		Kind:      comments.KindPostComment,
		Author:    testAuthor,
		TargetURI: "https://example.com",
		Content:   "hello",
	}
}

func TestDeadlineBoundaries(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	g := NewDeadline(24 * time.Hour)
	g.Now = func() time.Time { return now }

	cases := []struct {
		name     string
		deadline time.Time
		wantOK   bool
	}{
		{"unset defaults later", time.Time{}, true},
		{"exactly now", now, true},
		{"one second past", now.Add(-time.Second), false},
		{"at max window", now.Add(24 * time.Hour), true},
		{"one second beyond max", now.Add(24*time.Hour + time.Second), false},
	}
	for _, tc := range cases {
		req := baseRequest()
		req.Deadline = tc.deadline
		res := g.Check(context.Background(), req)
		if res.OK != tc.wantOK {
			t.Fatalf("%s: expected OK=%v, got %+v", tc.name, tc.wantOK, res)
		}
		if !res.OK && res.Code != CodeDeadlineInvalid {
			t.Fatalf("%s: expected CodeDeadlineInvalid, got %s", tc.name, res.Code)
		}
	}
}

func TestContentLength(t *testing.T) {
	g := NewContentLength(5)

	req := baseRequest()
	req.Content = "hello"
	if res := g.Check(context.Background(), req); !res.OK {
		t.Fatalf("expected content at limit to pass, got %+v", res)
	}

	req.Content = "hello!"
	res := g.Check(context.Background(), req)
	if res.OK || res.Code != CodeContentTooLarge {
		t.Fatalf("expected CodeContentTooLarge, got %+v", res)
	}

	// Approval operations carry no text and skip the check entirely.
	req.Kind = comments.KindAddApproval
	if res := g.Check(context.Background(), req); !res.OK {
		t.Fatalf("expected approval kind to skip content check, got %+v", res)
	}
}

func TestRateLimitWindow(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	limiter := ratelimit.NewInMemory(60 * time.Second).WithClock(func() time.Time { return now })
	g := NewRateLimit(limiter)
	req := baseRequest()

	if res := g.Check(context.Background(), req); !res.OK {
		t.Fatalf("expected first request to pass, got %+v", res)
	}

	res := g.Check(context.Background(), req)
	if res.OK || res.Code != CodeRateLimited {
		t.Fatalf("expected second request rejected, got %+v", res)
	}
	if res.RetryAfter <= 0 || res.RetryAfter > 60*time.Second {
		t.Fatalf("expected retry-after within the window, got %s", res.RetryAfter)
	}

	// Address case must not open a second window.
	mixed := req
	mixed.Author = common.HexToAddress(testAuthor.Hex())
	if res := g.Check(context.Background(), mixed); res.OK {
		t.Fatalf("expected case-normalized author to share the window")
	}

	now = now.Add(61 * time.Second)
	if res := g.Check(context.Background(), req); !res.OK {
		t.Fatalf("expected request after window to pass, got %+v", res)
	}
}

type fakeModeration struct {
	status Moderation
	err    error
}

func (f fakeModeration) ModerationStatus(context.Context, common.Address) (Moderation, error) {
	return f.status, f.err
}

func TestReputation(t *testing.T) {
	req := baseRequest()

	if res := NewReputation(fakeModeration{}).Check(context.Background(), req); !res.OK {
		t.Fatalf("expected clean author to pass, got %+v", res)
	}

	res := NewReputation(fakeModeration{status: Moderation{Muted: true}}).Check(context.Background(), req)
	if res.OK || res.Code != CodeAuthorBlocked {
		t.Fatalf("expected muted author rejected, got %+v", res)
	}

	res = NewReputation(fakeModeration{status: Moderation{Spammer: true}}).Check(context.Background(), req)
	if res.OK || res.Code != CodeAuthorBlocked {
		t.Fatalf("expected spam author rejected, got %+v", res)
	}

	// Lookup failures fail closed, not open.
	res = NewReputation(fakeModeration{err: errors.New("boom")}).Check(context.Background(), req)
	if res.OK || res.Code != CodeUpstreamUnavailable {
		t.Fatalf("expected fail-closed upstream error, got %+v", res)
	}
}

func TestAuthorSignatureGuard(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	signer, err := appsigner.New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	digest := common.HexToHash("0x5ee4e5e13087a6f0ba2784f9f0b3c59ee4e5e13087a6f0ba2784f9f0b3c59e11")
	sig, err := signer.SignDigest(digest)
	if err != nil {
		t.Fatalf("SignDigest: %v", err)
	}

	req := baseRequest()
	req.Author = signer.Address()
	req.AuthorSignature = sig
	if res := NewAuthorSignature(digest).Check(context.Background(), req); !res.OK {
		t.Fatalf("expected valid signature to pass, got %+v", res)
	}

	// Wrong digest, missing signature and wrong author all fail with the
	// same opaque reason.
	other := common.HexToHash("0x01")
	failures := []Result{
		NewAuthorSignature(other).Check(context.Background(), req),
	}
	req2 := req
	req2.AuthorSignature = nil
	failures = append(failures, NewAuthorSignature(digest).Check(context.Background(), req2))
	req3 := req
	req3.Author = testAuthor
	failures = append(failures, NewAuthorSignature(digest).Check(context.Background(), req3))

	for i, res := range failures {
		if res.OK || res.Code != CodeSignatureInvalid {
			t.Fatalf("case %d: expected CodeSignatureInvalid, got %+v", i, res)
		}
		if res.Reason != "signature verification failed" {
			t.Fatalf("case %d: expected opaque reason, got %q", i, res.Reason)
		}
	}
}

type recordingGuard struct {
	name   string
	result Result
	calls  *[]string
}

func (g recordingGuard) Name() string { return g.name }
func (g recordingGuard) Check(context.Context, comments.OperationRequest) Result {
	*g.calls = append(*g.calls, g.name)
	return g.result
}

func TestRunShortCircuits(t *testing.T) {
	calls := []string{}
	res := Run(context.Background(), baseRequest(),
		recordingGuard{"first", Pass(), &calls},
		recordingGuard{"second", Fail(CodeDeadlineInvalid, "deadline", "bad"), &calls},
		recordingGuard{"third", Pass(), &calls},
	)
	if res.OK {
		t.Fatalf("expected failure result")
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("expected short-circuit after second guard, got %v", calls)
	}
}

func TestResultErrMapping(t *testing.T) {
	if err := Pass().Err(); err != nil {
		t.Fatalf("expected nil error for pass, got %v", err)
	}

	res := Fail(CodeRateLimited, "author", "slow down")
	res.RetryAfter = 30 * time.Second
	var rerr *comments.RateLimitedError
	if err := res.Err(); !errors.As(err, &rerr) || rerr.RetryAfter != 30*time.Second {
		t.Fatalf("expected RateLimitedError with window, got %v", err)
	}

	var aerr *comments.AuthorizationError
	if err := Fail(CodeAuthorBlocked, "author", "muted").Err(); !errors.As(err, &aerr) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}

	if err := Fail(CodeSignatureInvalid, "signature", "no").Err(); !errors.Is(err, comments.ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
	if err := Fail(CodeUpstreamUnavailable, "", "down").Err(); !errors.Is(err, comments.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}

	var verr *comments.ValidationError
	if err := Fail(CodeDeadlineInvalid, "deadline", "bad").Err(); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	} else if len(verr.Fields["deadline"]) != 1 {
		t.Fatalf("expected deadline field entry, got %+v", verr.Fields)
	}
}
