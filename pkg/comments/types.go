package comments

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// OperationKind selects the typed-data shape and the contract entry point
// for a relayed operation.
type OperationKind string

const (
	KindPostComment    OperationKind = "POST_COMMENT"
	KindEditComment    OperationKind = "EDIT_COMMENT"
	KindDeleteComment  OperationKind = "DELETE_COMMENT"
	KindAddApproval    OperationKind = "ADD_APPROVAL"
	KindRevokeApproval OperationKind = "REVOKE_APPROVAL"
)

// Kinds lists every supported operation kind in a stable order.
var Kinds = []OperationKind{
	KindPostComment,
	KindEditComment,
	KindDeleteComment,
	KindAddApproval,
	KindRevokeApproval,
}

func ParseKind(s string) (OperationKind, bool) {
	k := OperationKind(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// HasContent reports whether the kind carries user-authored text that is
// subject to content limits.
func (k OperationKind) HasContent() bool {
	return k == KindPostComment || k == KindEditComment
}

// ZeroParentID is the sentinel for "no parent comment". It participates in
// the signed hash, so an unset parent is always this value, never omitted.
var ZeroParentID = common.Hash{}

// OperationRequest is the per-call input to the relay pipeline. It is built
// once per HTTP request and discarded with the response.
type OperationRequest struct {
	Kind   OperationKind
	Author common.Address

	// PostComment: exactly one of TargetURI or ParentID is set.
	TargetURI string
	ParentID  common.Hash

	// EditComment / DeleteComment.
	CommentID common.Hash

	// PostComment / EditComment.
	Content  string
	Metadata []string

	// Optional caller-requested deadline; zero means "apply the default window".
	Deadline time.Time

	// Prepare path only: submit through the relay account when the author has
	// already approved the app signer.
	SubmitIfApproved bool

	// Send path only.
	AuthorSignature []byte

	ChainID  *big.Int
	Contract common.Address
}

// ApprovalStatus is the batched read of the replay counter and the
// delegation flag for an (author, app signer) pair. The two values are only
// meaningful together; see chainreader.
type ApprovalStatus struct {
	Nonce    *big.Int
	Approved bool
}

// OperationState tracks a single operation through the relay pipeline.
type OperationState string

const (
	StateReceived                OperationState = "RECEIVED"
	StateGuarded                 OperationState = "GUARDED"
	StatePayloadBuilt            OperationState = "PAYLOAD_BUILT"
	StateAppSigned               OperationState = "APP_SIGNED"
	StateAwaitingAuthorSignature OperationState = "AWAITING_AUTHOR_SIGNATURE"
	StateApprovalVerified        OperationState = "APPROVAL_VERIFIED"
	StateSubmitted               OperationState = "SUBMITTED"
	StateConfirmed               OperationState = "CONFIRMED"
	StateReverted                OperationState = "REVERTED"
)
