package guards

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ecp-eth/comments-monorepo-sub007/pkg/comments"
)

// Moderation is the external signal consulted before relaying for an author.
type Moderation struct {
	Muted   bool
	Spammer bool
}

// ModerationSource looks up the moderation state for an author. A lookup
// error fails the pipeline closed.
type ModerationSource interface {
	ModerationStatus(ctx context.Context, author common.Address) (Moderation, error)
}

// Reputation hard-rejects muted or spam-flagged authors, independent of
// rate limiting.
type Reputation struct {
	Source ModerationSource
}

func NewReputation(src ModerationSource) *Reputation { return &Reputation{Source: src} }

func (g *Reputation) Name() string { return "reputation" }

func (g *Reputation) Check(ctx context.Context, req comments.OperationRequest) Result {
	status, err := g.Source.ModerationStatus(ctx, req.Author)
	if err != nil {
		return Fail(CodeUpstreamUnavailable, "", "moderation source unavailable")
	}
	if status.Muted {
		return Fail(CodeAuthorBlocked, "author", "author is muted")
	}
	if status.Spammer {
		return Fail(CodeAuthorBlocked, "author", "author is flagged as spam")
	}
	return Pass()
}
