package pipeline

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/ecp-eth/comments-monorepo-sub007/pkg/comments"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/submitter"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/typedpayload"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/wire"
)

type ResultStatus string

const (
	// StatusSubmitted: the relay broadcast the transaction.
	StatusSubmitted ResultStatus = "SUBMITTED"
	// StatusAwaitingAuthorSignature: the app-signed payload is returned for
	// the author's wallet to counter-sign; nothing was broadcast.
	StatusAwaitingAuthorSignature ResultStatus = "AWAITING_AUTHOR_SIGNATURE"
)

// Result is the success shape of both endpoint families. Wide integers
// (nonce, deadline, chain id) travel as decimal strings; a float64 round
// trip must never be able to corrupt them.
type Result struct {
	Status ResultStatus `json:"status"`

	// Submitted shape only.
	TxHash  *common.Hash            `json:"tx_hash,omitempty"`
	TxState comments.OperationState `json:"tx_state,omitempty"`

	// Both shapes.
	AppSignature hexutil.Bytes      `json:"app_signature"`
	Hash         common.Hash        `json:"hash"`
	TypedPayload apitypes.TypedData `json:"typed_payload"`
	Nonce        wire.BigInt        `json:"nonce"`
	Deadline     wire.BigInt        `json:"deadline"`
	ChainID      wire.BigInt        `json:"chain_id"`
}

func submittedResult(td apitypes.TypedData, digest common.Hash, appSig []byte, handle submitter.TxHandle) *Result {
	r := baseResult(td, digest, appSig)
	r.Status = StatusSubmitted
	hash := handle.Hash
	r.TxHash = &hash
	r.TxState = handle.State
	return r
}

func awaitingResult(td apitypes.TypedData, digest common.Hash, appSig []byte) *Result {
	r := baseResult(td, digest, appSig)
	r.Status = StatusAwaitingAuthorSignature
	return r
}

func baseResult(td apitypes.TypedData, digest common.Hash, appSig []byte) *Result {
	r := &Result{
		AppSignature: appSig,
		Hash:         digest,
		TypedPayload: td,
	}
	if nonce, ok := typedpayload.NonceFrom(td); ok {
		r.Nonce = wire.NewBigInt(nonce)
	}
	if deadline, ok := typedpayload.DeadlineFrom(td); ok {
		r.Deadline = wire.NewBigInt(deadline)
	}
	if td.Domain.ChainId != nil {
		r.ChainID = wire.NewBigInt((*big.Int)(td.Domain.ChainId))
	}
	return r
}
