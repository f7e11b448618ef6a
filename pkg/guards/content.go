package guards

import (
	"context"
	"fmt"

	"github.com/ecp-eth/comments-monorepo-sub007/pkg/comments"
)

// DefaultMaxContentLength bounds comment text in bytes.
const DefaultMaxContentLength = 10240

// ContentLength applies to post and edit only; the remaining kinds carry no
// user text.
type ContentLength struct {
	Max int
}

func NewContentLength(max int) *ContentLength {
	if max <= 0 {
		max = DefaultMaxContentLength
	}
	return &ContentLength{Max: max}
}

func (g *ContentLength) Name() string { return "content-length" }

func (g *ContentLength) Check(_ context.Context, req comments.OperationRequest) Result {
	if !req.Kind.HasContent() {
		return Pass()
	}
	if len(req.Content) > g.Max {
		return Fail(CodeContentTooLarge, "content",
			fmt.Sprintf("content exceeds %d bytes", g.Max))
	}
	return Pass()
}
