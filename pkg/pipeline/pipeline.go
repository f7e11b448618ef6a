// Package pipeline wires the guard pipeline, the typed-payload factory, the
// resolvers and the relay submitter into the two endpoint families: prepare
// (co-sign, then submit or hand back for counter-signing) and send (author
// signature supplied out-of-band, relay immediately). One pipeline instance
// per deployment; requests are independent, stateless units of work.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/ecp-eth/comments-monorepo-sub007/pkg/comments"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/guards"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/ratelimit"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/submitter"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/typedpayload"
)

// Resolver reads {nonce, approved} for an (author, app signer) pair.
type Resolver interface {
	Resolve(ctx context.Context, author, app common.Address) (comments.ApprovalStatus, error)
}

// AppSigner co-signs payloads. Implemented by appsigner.Signer.
type AppSigner interface {
	Address() common.Address
	SignPayload(td apitypes.TypedData) ([]byte, common.Hash, error)
}

// Submitter broadcasts through the relay account.
type Submitter interface {
	Submit(ctx context.Context, req submitter.Request) (submitter.TxHandle, error)
}

type Config struct {
	MaxContentLength  int
	MaxDeadlineWindow time.Duration
}

type Pipeline struct {
	factory   *typedpayload.Factory
	signer    AppSigner
	resolver  Resolver
	submitter Submitter
	pre       []guards.Guard
}

// New assembles a pipeline from explicitly injected components. Guards 1-4
// run in their fixed order on both endpoint families; the signature guard
// is constructed per request on the send path.
func New(factory *typedpayload.Factory, signer AppSigner, resolver Resolver, sub Submitter,
	limiter ratelimit.Limiter, moderation guards.ModerationSource, cfg Config) *Pipeline {
	return &Pipeline{
		factory:   factory,
		signer:    signer,
		resolver:  resolver,
		submitter: sub,
		pre: []guards.Guard{
			guards.NewDeadline(cfg.MaxDeadlineWindow),
			guards.NewContentLength(cfg.MaxContentLength),
			guards.NewRateLimit(limiter),
			guards.NewReputation(moderation),
		},
	}
}

// Prepare validates, builds and co-signs an operation. When the author has
// already approved the app signer and asked for submission, the transaction
// goes straight through the relay; otherwise the app-signed payload comes
// back for the author's wallet to counter-sign.
func (p *Pipeline) Prepare(ctx context.Context, req comments.OperationRequest) (*Result, error) {
	if err := validate(req, false); err != nil {
		return nil, err
	}
	if res := guards.Run(ctx, req, p.pre...); !res.OK {
		return nil, res.Err()
	}

	td, digest, appSig, status, err := p.buildAndSign(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.SubmitIfApproved && status.Approved {
		handle, err := p.submitter.Submit(ctx, submitter.Request{
			Op:           req,
			Payload:      td,
			Digest:       digest,
			AppSignature: appSig,
			Approved:     true,
		})
		if err != nil {
			return nil, err
		}
		return submittedResult(td, digest, appSig, handle), nil
	}
	return awaitingResult(td, digest, appSig), nil
}

// Send accepts an author signature obtained out-of-band and relays
// immediately. The awaiting branch never applies here.
func (p *Pipeline) Send(ctx context.Context, req comments.OperationRequest) (*Result, error) {
	if err := validate(req, true); err != nil {
		return nil, err
	}
	if res := guards.Run(ctx, req, p.pre...); !res.OK {
		return nil, res.Err()
	}

	td, digest, appSig, status, err := p.buildAndSign(ctx, req)
	if err != nil {
		return nil, err
	}

	// The signature guard runs after payload construction: it verifies
	// against the digest just built, and must short-circuit before any
	// submission attempt.
	if res := guards.NewAuthorSignature(digest).Check(ctx, req); !res.OK {
		return nil, res.Err()
	}

	handle, err := p.submitter.Submit(ctx, submitter.Request{
		Op:           req,
		Payload:      td,
		Digest:       digest,
		AppSignature: appSig,
		Approved:     status.Approved,
	})
	if err != nil {
		return nil, err
	}
	return submittedResult(td, digest, appSig, handle), nil
}

// buildAndSign is the resolve -> build -> co-sign sequence. It is one
// logical unit: no intermediate state is visible to callers, and the nonce
// and approval flag come from a single resolver read.
func (p *Pipeline) buildAndSign(ctx context.Context, req comments.OperationRequest) (apitypes.TypedData, common.Hash, []byte, comments.ApprovalStatus, error) {
	status, err := p.resolver.Resolve(ctx, req.Author, p.signer.Address())
	if err != nil {
		return apitypes.TypedData{}, common.Hash{}, nil, comments.ApprovalStatus{}, err
	}
	td, err := p.factory.Build(req, p.signer.Address(), status.Nonce)
	if err != nil {
		if err == typedpayload.ErrTargetAmbiguous {
			return apitypes.TypedData{}, common.Hash{}, nil, comments.ApprovalStatus{},
				comments.NewValidationError("targetUri", "exactly one of targetUri or parentId is required")
		}
		return apitypes.TypedData{}, common.Hash{}, nil, comments.ApprovalStatus{}, err
	}
	appSig, digest, err := p.signer.SignPayload(td)
	if err != nil {
		return apitypes.TypedData{}, common.Hash{}, nil, comments.ApprovalStatus{}, err
	}
	return td, digest, appSig, status, nil
}

func validate(req comments.OperationRequest, send bool) error {
	verr := &comments.ValidationError{}
	if req.Author == (common.Address{}) {
		verr.Add("author", "author address is required")
	}
	if req.ChainID == nil || req.ChainID.Sign() <= 0 {
		verr.Add("chainId", "chain id is required")
	}
	if req.Contract == (common.Address{}) {
		verr.Add("contract", "contract address is required")
	}
	switch req.Kind {
	case comments.KindPostComment:
		hasTarget := strings.TrimSpace(req.TargetURI) != ""
		hasParent := req.ParentID != comments.ZeroParentID
		if hasTarget == hasParent {
			verr.Add("targetUri", "exactly one of targetUri or parentId is required")
		}
		if req.Content == "" {
			verr.Add("content", "content is required")
		}
	case comments.KindEditComment:
		if req.CommentID == (common.Hash{}) {
			verr.Add("commentId", "comment id is required")
		}
		if req.Content == "" {
			verr.Add("content", "content is required")
		}
	case comments.KindDeleteComment:
		if req.CommentID == (common.Hash{}) {
			verr.Add("commentId", "comment id is required")
		}
	case comments.KindAddApproval, comments.KindRevokeApproval:
		// No extra fields.
	default:
		verr.Add("kind", "unknown operation kind")
	}
	if send && len(req.AuthorSignature) == 0 {
		verr.Add("signature", "author signature is required")
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}
