package guards

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ecp-eth/comments-monorepo-sub007/pkg/appsigner"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/comments"
)

// AuthorSignature verifies that the supplied author signature recovers to
// the claimed author over the exact payload digest. Constructed per request
// after the payload is built, since it validates against the digest. The
// failure reason is deliberately a single opaque message: this guard sits on
// the authorization boundary and must not reveal which sub-check failed.
type AuthorSignature struct {
	Digest common.Hash
}

func NewAuthorSignature(digest common.Hash) *AuthorSignature {
	return &AuthorSignature{Digest: digest}
}

func (g *AuthorSignature) Name() string { return "author-signature" }

func (g *AuthorSignature) Check(_ context.Context, req comments.OperationRequest) Result {
	if len(req.AuthorSignature) == 0 {
		return Fail(CodeSignatureInvalid, "signature", "signature verification failed")
	}
	if !appsigner.Verify(g.Digest, req.AuthorSignature, req.Author) {
		return Fail(CodeSignatureInvalid, "signature", "signature verification failed")
	}
	return Pass()
}
