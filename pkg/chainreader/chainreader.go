// Package chainreader resolves the replay nonce and the delegation flag for
// an (author, app signer) pair from the authoritative contract. The two
// values are read in one JSON-RPC batch when the endpoint supports it and
// through two sequential calls otherwise; only latency differs. Values are
// never cached across requests, staleness here turns directly into wasted
// fees or rejected transactions.
package chainreader

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/ecp-eth/comments-monorepo-sub007/pkg/comments"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/contractabi"
)

var errEmptyResult = errors.New("empty call result")

// RPCClient is the subset of *rpc.Client the resolver needs.
type RPCClient interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
	BatchCallContext(ctx context.Context, b []rpc.BatchElem) error
}

// RetryPolicy bounds retries around the two idempotent reads. It is never
// applied to submission.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 150 * time.Millisecond, MaxDelay: 2 * time.Second}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d <= 0 {
		return 0
	}
	// Full jitter keeps concurrent retries from synchronizing.
	return time.Duration(rand.Int63n(int64(d)) + int64(d)/2)
}

type Resolver struct {
	client   RPCClient
	contract common.Address
	retry    RetryPolicy
	timeout  time.Duration
}

type Option func(*Resolver)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(r *Resolver) { r.retry = p }
}

func WithCallTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func New(client RPCClient, contract common.Address, opts ...Option) *Resolver {
	r := &Resolver{
		client:   client,
		contract: contract,
		retry:    DefaultRetryPolicy(),
		timeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve reads {nonce, approved} for the pair. A read that cannot complete
// surfaces as ErrUpstreamUnavailable; a missing nonce is never treated as
// zero.
func (r *Resolver) Resolve(ctx context.Context, author, app common.Address) (comments.ApprovalStatus, error) {
	var lastErr error
	for attempt := 0; attempt < r.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return comments.ApprovalStatus{}, fmt.Errorf("%w: %v", comments.ErrUpstreamUnavailable, ctx.Err())
			case <-time.After(r.retry.delay(attempt - 1)):
			}
		}
		st, err := r.resolveOnce(ctx, author, app)
		if err == nil {
			return st, nil
		}
		lastErr = err
	}
	return comments.ApprovalStatus{}, fmt.Errorf("%w: %v", comments.ErrUpstreamUnavailable, lastErr)
}

func (r *Resolver) resolveOnce(ctx context.Context, author, app common.Address) (comments.ApprovalStatus, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	nonceData, err := contractabi.Comments.Pack(contractabi.MethodGetNonce, author, app)
	if err != nil {
		return comments.ApprovalStatus{}, err
	}
	approvedData, err := contractabi.Comments.Pack(contractabi.MethodIsApproved, author, app)
	if err != nil {
		return comments.ApprovalStatus{}, err
	}

	nonceRaw, approvedRaw, err := r.readPair(callCtx, nonceData, approvedData)
	if err != nil {
		return comments.ApprovalStatus{}, err
	}

	nonce, err := unpackNonce(nonceRaw)
	if err != nil {
		return comments.ApprovalStatus{}, err
	}
	approved, err := unpackApproved(approvedRaw)
	if err != nil {
		return comments.ApprovalStatus{}, err
	}
	return comments.ApprovalStatus{Nonce: nonce, Approved: approved}, nil
}

// readPair prefers one batched round trip and falls back to two sequential
// calls when the transport rejects the batch.
func (r *Resolver) readPair(ctx context.Context, nonceData, approvedData []byte) (hexutil.Bytes, hexutil.Bytes, error) {
	var nonceOut, approvedOut hexutil.Bytes
	batch := []rpc.BatchElem{
		{Method: "eth_call", Args: []interface{}{r.callArg(nonceData), "latest"}, Result: &nonceOut},
		{Method: "eth_call", Args: []interface{}{r.callArg(approvedData), "latest"}, Result: &approvedOut},
	}
	if err := r.client.BatchCallContext(ctx, batch); err == nil {
		if batch[0].Error == nil && batch[1].Error == nil {
			return nonceOut, approvedOut, nil
		}
		if batch[0].Error != nil {
			return nil, nil, batch[0].Error
		}
		return nil, nil, batch[1].Error
	}

	if err := r.client.CallContext(ctx, &nonceOut, "eth_call", r.callArg(nonceData), "latest"); err != nil {
		return nil, nil, err
	}
	if err := r.client.CallContext(ctx, &approvedOut, "eth_call", r.callArg(approvedData), "latest"); err != nil {
		return nil, nil, err
	}
	return nonceOut, approvedOut, nil
}

func (r *Resolver) callArg(input []byte) map[string]interface{} {
	return map[string]interface{}{
		"to":    r.contract,
		"input": hexutil.Bytes(input),
	}
}

func unpackNonce(data []byte) (*big.Int, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("getNonce: %w", errEmptyResult)
	}
	out, err := contractabi.Comments.Unpack(contractabi.MethodGetNonce, data)
	if err != nil {
		return nil, err
	}
	nonce, ok := out[0].(*big.Int)
	if !ok || nonce == nil {
		return nil, fmt.Errorf("getNonce: %w", errEmptyResult)
	}
	return nonce, nil
}

func unpackApproved(data []byte) (bool, error) {
	if len(data) == 0 {
		return false, fmt.Errorf("isApproved: %w", errEmptyResult)
	}
	out, err := contractabi.Comments.Unpack(contractabi.MethodIsApproved, data)
	if err != nil {
		return false, err
	}
	approved, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("isApproved: %w", errEmptyResult)
	}
	return approved, nil
}
