package guards

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ecp-eth/comments-monorepo-sub007/pkg/comments"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/ratelimit"
)

// RateLimit keys the sliding window by the case-normalized author address.
// A counter-store failure fails closed.
type RateLimit struct {
	Limiter ratelimit.Limiter
}

func NewRateLimit(l ratelimit.Limiter) *RateLimit { return &RateLimit{Limiter: l} }

func (g *RateLimit) Name() string { return "rate-limit" }

func (g *RateLimit) Check(ctx context.Context, req comments.OperationRequest) Result {
	key := strings.ToLower(req.Author.Hex())
	allowed, retryAfter, err := g.Limiter.Allow(ctx, key)
	if err != nil {
		return Fail(CodeUpstreamUnavailable, "", "rate limit store unavailable")
	}
	if !allowed {
		res := Fail(CodeRateLimited, "author",
			fmt.Sprintf("rate limited, retry in %s", retryAfter.Round(time.Second)))
		res.RetryAfter = retryAfter
		return res
	}
	return Pass()
}
