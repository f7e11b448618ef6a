package guards

import (
	"context"
	"fmt"
	"time"

	"github.com/ecp-eth/comments-monorepo-sub007/pkg/comments"
)

// MaxDeadlineWindow caps how far ahead a caller may place a deadline.
const MaxDeadlineWindow = 24 * time.Hour

// Deadline rejects deadlines in the past and deadlines further ahead than
// the maximum window. An unset deadline passes; the payload factory applies
// the default window.
type Deadline struct {
	MaxWindow time.Duration
	Now       func() time.Time
}

func NewDeadline(maxWindow time.Duration) *Deadline {
	if maxWindow <= 0 {
		maxWindow = MaxDeadlineWindow
	}
	return &Deadline{MaxWindow: maxWindow, Now: time.Now}
}

func (g *Deadline) Name() string { return "deadline" }

func (g *Deadline) Check(_ context.Context, req comments.OperationRequest) Result {
	if req.Deadline.IsZero() {
		return Pass()
	}
	now := g.Now()
	// A deadline exactly at now is still acceptable.
	if req.Deadline.Before(now) {
		return Fail(CodeDeadlineInvalid, "deadline", "deadline is in the past")
	}
	if req.Deadline.After(now.Add(g.MaxWindow)) {
		return Fail(CodeDeadlineInvalid, "deadline",
			fmt.Sprintf("deadline is more than %s ahead", g.MaxWindow))
	}
	return Pass()
}
