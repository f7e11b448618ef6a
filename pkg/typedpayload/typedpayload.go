// Package typedpayload builds the canonical EIP-712 typed data for each
// relayed operation. The message must exactly match what the comment
// contract verifies, so all defaulting happens here: unset metadata becomes
// an empty list, an unset deadline becomes now plus the default window, and
// an unset parent is the zero-bytes32 sentinel (the sentinel participates in
// the signed hash, omission is not representable).
package typedpayload

import (
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/ecp-eth/comments-monorepo-sub007/pkg/comments"
)

const (
	// DefaultDeadlineWindow is applied when the caller does not request a
	// deadline.
	DefaultDeadlineWindow = 24 * time.Hour

	DefaultDomainName    = "GaslessComments"
	DefaultDomainVersion = "1"
)

var (
	ErrUnknownKind     = errors.New("unknown operation kind")
	ErrMissingNonce    = errors.New("nonce is required")
	ErrMissingChain    = errors.New("chain id and contract are required")
	ErrTargetAmbiguous = errors.New("exactly one of targetUri or parentId is required")
)

var typeDefs = map[comments.OperationKind]struct {
	primary string
	fields  []apitypes.Type
}{
	comments.KindPostComment: {"PostComment", []apitypes.Type{
		{Name: "author", Type: "address"},
		{Name: "app", Type: "address"},
		{Name: "parentId", Type: "bytes32"},
		{Name: "targetUri", Type: "string"},
		{Name: "content", Type: "string"},
		{Name: "metadata", Type: "string[]"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	}},
	comments.KindEditComment: {"EditComment", []apitypes.Type{
		{Name: "author", Type: "address"},
		{Name: "app", Type: "address"},
		{Name: "commentId", Type: "bytes32"},
		{Name: "content", Type: "string"},
		{Name: "metadata", Type: "string[]"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	}},
	comments.KindDeleteComment: {"DeleteComment", []apitypes.Type{
		{Name: "author", Type: "address"},
		{Name: "app", Type: "address"},
		{Name: "commentId", Type: "bytes32"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	}},
	comments.KindAddApproval: {"AddApproval", []apitypes.Type{
		{Name: "author", Type: "address"},
		{Name: "app", Type: "address"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	}},
	comments.KindRevokeApproval: {"RevokeApproval", []apitypes.Type{
		{Name: "author", Type: "address"},
		{Name: "app", Type: "address"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	}},
}

// Factory builds typed payloads for one protocol domain. One instance per
// deployment; Build is safe for concurrent use.
type Factory struct {
	domainName    string
	domainVersion string
	now           func() time.Time
}

type Option func(*Factory)

func WithDomain(name, version string) Option {
	return func(f *Factory) {
		if strings.TrimSpace(name) != "" {
			f.domainName = name
		}
		if strings.TrimSpace(version) != "" {
			f.domainVersion = version
		}
	}
}

// WithClock overrides the deadline-defaulting clock. Tests only.
func WithClock(now func() time.Time) Option {
	return func(f *Factory) { f.now = now }
}

func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		domainName:    DefaultDomainName,
		domainVersion: DefaultDomainVersion,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Build constructs the typed data for req, co-signed by appSigner, using the
// resolved nonce. The payload is constructed fresh per request and never
// cached; a stale nonce is the authoritative contract's problem, not ours.
func (f *Factory) Build(req comments.OperationRequest, appSigner common.Address, nonce *big.Int) (apitypes.TypedData, error) {
	def, ok := typeDefs[req.Kind]
	if !ok {
		return apitypes.TypedData{}, ErrUnknownKind
	}
	if nonce == nil {
		return apitypes.TypedData{}, ErrMissingNonce
	}
	if req.ChainID == nil || req.ChainID.Sign() <= 0 || req.Contract == (common.Address{}) {
		return apitypes.TypedData{}, ErrMissingChain
	}

	deadline := req.Deadline
	if deadline.IsZero() {
		deadline = f.now().Add(DefaultDeadlineWindow)
	}

	msg := apitypes.TypedDataMessage{
		"author":   req.Author.Hex(),
		"app":      appSigner.Hex(),
		"nonce":    (*math.HexOrDecimal256)(new(big.Int).Set(nonce)),
		"deadline": (*math.HexOrDecimal256)(big.NewInt(deadline.Unix())),
	}

	switch req.Kind {
	case comments.KindPostComment:
		target := strings.TrimSpace(req.TargetURI)
		hasTarget := target != ""
		hasParent := req.ParentID != comments.ZeroParentID
		if hasTarget == hasParent {
			return apitypes.TypedData{}, ErrTargetAmbiguous
		}
		msg["parentId"] = req.ParentID.Hex()
		msg["targetUri"] = target
		msg["content"] = req.Content
		msg["metadata"] = metadataList(req.Metadata)
	case comments.KindEditComment:
		msg["commentId"] = req.CommentID.Hex()
		msg["content"] = req.Content
		msg["metadata"] = metadataList(req.Metadata)
	case comments.KindDeleteComment:
		msg["commentId"] = req.CommentID.Hex()
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			def.primary: def.fields,
		},
		PrimaryType: def.primary,
		Domain: apitypes.TypedDataDomain{
			Name:              f.domainName,
			Version:           f.domainVersion,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(req.ChainID)),
			VerifyingContract: req.Contract.Hex(),
		},
		Message: msg,
	}, nil
}

// Digest is the canonical 32-byte signing hash of a typed payload. Identical
// fields and identical domain hash identically.
func Digest(td apitypes.TypedData) (common.Hash, error) {
	sighash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(sighash), nil
}

// DeadlineFrom extracts the deadline encoded into a built payload.
func DeadlineFrom(td apitypes.TypedData) (*big.Int, bool) {
	raw, ok := td.Message["deadline"]
	if !ok {
		return nil, false
	}
	hd, ok := raw.(*math.HexOrDecimal256)
	if !ok {
		return nil, false
	}
	return (*big.Int)(hd), true
}

// NonceFrom extracts the nonce encoded into a built payload.
func NonceFrom(td apitypes.TypedData) (*big.Int, bool) {
	raw, ok := td.Message["nonce"]
	if !ok {
		return nil, false
	}
	hd, ok := raw.(*math.HexOrDecimal256)
	if !ok {
		return nil, false
	}
	return (*big.Int)(hd), true
}

func metadataList(meta []string) []interface{} {
	out := make([]interface{}, 0, len(meta))
	for _, m := range meta {
		out = append(out, m)
	}
	return out
}
