// Package submitter broadcasts finally-assembled operations through the
// funded relay account. The relay key pays for execution and nothing else:
// it never signs application-level intent. Before any gas is spent the
// submitter independently re-verifies the app co-signature against the
// exact payload it is about to broadcast.
package submitter

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/ecp-eth/comments-monorepo-sub007/pkg/appsigner"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/comments"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/contractabi"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/typedpayload"
)

var (
	// ErrAppSignatureMismatch is the double-check failure: the app signature
	// handed to the submitter does not verify against the payload about to
	// be broadcast. Refused before any gas is spent.
	ErrAppSignatureMismatch = errors.New("app signature does not match payload")

	ErrMissingPayloadFields = errors.New("payload is missing nonce or deadline")
)

// Backend is the subset of *ethclient.Client the submitter needs.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Request is one fully prepared operation handed to the submitter.
type Request struct {
	Op           comments.OperationRequest
	Payload      apitypes.TypedData
	Digest       common.Hash
	AppSignature []byte
	Approved     bool
}

// TxHandle reports how far a broadcast got. Submitted does not imply
// success; Confirmed and Reverted are the terminal outcomes.
type TxHandle struct {
	Hash  common.Hash
	State comments.OperationState
}

type Submitter struct {
	backend    Backend
	key        *ecdsa.PrivateKey
	from       common.Address
	appSigner  common.Address
	chainID    *big.Int
	timeout    time.Duration
	pollEvery  time.Duration
	gasMarginP uint64

	// Serializes submissions from the one relay identity this process owns,
	// so concurrent requests cannot race on the account's sequence number.
	mu sync.Mutex
}

type Option func(*Submitter)

// WithTimeout bounds broadcast plus confirmation wait.
func WithTimeout(d time.Duration) Option {
	return func(s *Submitter) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Submitter) {
		if d > 0 {
			s.pollEvery = d
		}
	}
}

func New(backend Backend, relayKeyHex string, appSigner common.Address, chainID *big.Int, opts ...Option) (*Submitter, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(relayKeyHex), "0x")
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid relay key: %w", err)
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, errors.New("chain id is required")
	}
	s := &Submitter{
		backend:    backend,
		key:        key,
		from:       crypto.PubkeyToAddress(key.PublicKey),
		appSigner:  appSigner,
		chainID:    new(big.Int).Set(chainID),
		timeout:    45 * time.Second,
		pollEvery:  time.Second,
		gasMarginP: 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// From is the funded relay address.
func (s *Submitter) From() common.Address { return s.from }

// Submit broadcasts a prepared operation. Requirements, in order:
// the app signature must verify against the exact digest (tampering
// defense), and an absent author signature is only acceptable when the
// author has delegated to the app signer.
func (s *Submitter) Submit(ctx context.Context, req Request) (TxHandle, error) {
	if !appsigner.Verify(req.Digest, req.AppSignature, s.appSigner) {
		return TxHandle{}, ErrAppSignatureMismatch
	}
	if len(req.Op.AuthorSignature) == 0 && !req.Approved {
		return TxHandle{}, comments.ErrAuthorNotApproved
	}

	data, err := packCalldata(req)
	if err != nil {
		return TxHandle{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.broadcast(ctx, req.Op.Contract, data)
	if err != nil {
		return TxHandle{}, err
	}
	return s.awaitReceipt(ctx, tx.Hash())
}

func (s *Submitter) broadcast(ctx context.Context, contract common.Address, data []byte) (*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountNonce, err := s.backend.PendingNonceAt(ctx, s.from)
	if err != nil {
		return nil, fmt.Errorf("%w: pending nonce: %v", comments.ErrUpstreamUnavailable, err)
	}
	tip, err := s.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: gas tip: %v", comments.ErrUpstreamUnavailable, err)
	}
	head, err := s.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: head: %v", comments.ErrUpstreamUnavailable, err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	gas, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: s.from,
		To:   &contract,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: gas estimate: %v", comments.ErrUpstreamUnavailable, err)
	}
	gas += gas * s.gasMarginP / 100

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     accountNonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &contract,
		Data:      data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return nil, err
	}
	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("%w: broadcast: %v", comments.ErrUpstreamUnavailable, err)
	}
	return signed, nil
}

// awaitReceipt polls until confirmation or the submit timeout. On timeout
// the handle stays in Submitted: the broadcast went out, the outcome is
// unknown, and the caller must not assume success.
func (s *Submitter) awaitReceipt(ctx context.Context, hash common.Hash) (TxHandle, error) {
	handle := TxHandle{Hash: hash, State: comments.StateSubmitted}
	ticker := time.NewTicker(s.pollEvery)
	defer ticker.Stop()

	for {
		receipt, err := s.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusFailed {
				handle.State = comments.StateReverted
				return handle, comments.ErrSubmissionReverted
			}
			handle.State = comments.StateConfirmed
			return handle, nil
		}
		// Not found yet, or a transient lookup failure: keep polling
		// until the deadline.
		select {
		case <-ctx.Done():
			return handle, nil
		case <-ticker.C:
		}
	}
}

func packCalldata(req Request) ([]byte, error) {
	nonce, ok := typedpayload.NonceFrom(req.Payload)
	if !ok {
		return nil, ErrMissingPayloadFields
	}
	deadline, ok := typedpayload.DeadlineFrom(req.Payload)
	if !ok {
		return nil, ErrMissingPayloadFields
	}
	authorSig := req.Op.AuthorSignature
	if authorSig == nil {
		authorSig = []byte{}
	}
	op := req.Op
	meta := op.Metadata
	if meta == nil {
		meta = []string{}
	}

	switch op.Kind {
	case comments.KindPostComment:
		return contractabi.Comments.Pack(contractabi.MethodPostComment,
			op.Author, req.appAddress(), op.ParentID, strings.TrimSpace(op.TargetURI),
			op.Content, meta, nonce, deadline, authorSig, req.AppSignature)
	case comments.KindEditComment:
		return contractabi.Comments.Pack(contractabi.MethodEditComment,
			op.Author, req.appAddress(), op.CommentID, op.Content, meta,
			nonce, deadline, authorSig, req.AppSignature)
	case comments.KindDeleteComment:
		return contractabi.Comments.Pack(contractabi.MethodDeleteComment,
			op.Author, req.appAddress(), op.CommentID, nonce, deadline,
			authorSig, req.AppSignature)
	case comments.KindAddApproval:
		return contractabi.Comments.Pack(contractabi.MethodAddApproval,
			op.Author, req.appAddress(), nonce, deadline, authorSig, req.AppSignature)
	case comments.KindRevokeApproval:
		return contractabi.Comments.Pack(contractabi.MethodRevokeApproval,
			op.Author, req.appAddress(), nonce, deadline, authorSig, req.AppSignature)
	default:
		return nil, typedpayload.ErrUnknownKind
	}
}

// appAddress reads the app signer back out of the payload message so the
// calldata and the signed fields cannot drift apart.
func (r Request) appAddress() common.Address {
	if raw, ok := r.Payload.Message["app"]; ok {
		if s, ok := raw.(string); ok {
			return common.HexToAddress(s)
		}
	}
	return common.Address{}
}
