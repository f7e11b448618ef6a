package main

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/labstack/gommon/log"

	"github.com/ecp-eth/comments-monorepo-sub007/pkg/comments"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/httpx"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/pipeline"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/submitter"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/wire"
	"github.com/ecp-eth/comments-monorepo-sub007/services/relay/internal/idempotency"
	"github.com/ecp-eth/comments-monorepo-sub007/services/relay/internal/metrics"
	"github.com/ecp-eth/comments-monorepo-sub007/services/relay/internal/store"
)

type handlers struct {
	pipe     *pipeline.Pipeline
	st       *store.Store
	chainID  *big.Int
	contract common.Address
}

// operationBody is the wire form of an operation request. Wide integers
// (deadline, chain id) arrive as decimal strings.
type operationBody struct {
	Author           string       `json:"author"`
	TargetURI        string       `json:"target_uri,omitempty"`
	ParentID         string       `json:"parent_id,omitempty"`
	CommentID        string       `json:"comment_id,omitempty"`
	Content          string       `json:"content,omitempty"`
	Metadata         []string     `json:"metadata,omitempty"`
	Deadline         *wire.BigInt `json:"deadline,omitempty"`
	SubmitIfApproved bool         `json:"submit_if_approved,omitempty"`
	AuthorSignature  string       `json:"author_signature,omitempty"`
	ChainID          *wire.BigInt `json:"chain_id,omitempty"`
	Contract         string       `json:"contract,omitempty"`
}

func (h *handlers) decodeOperation(r *http.Request) (comments.OperationRequest, error) {
	kind, ok := comments.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		return comments.OperationRequest{}, comments.NewValidationError("kind", "unknown operation kind")
	}
	var body operationBody
	if err := httpx.ReadJSON(r, &body); err != nil {
		return comments.OperationRequest{}, comments.NewValidationError("body", "malformed JSON body")
	}

	verr := &comments.ValidationError{}
	req := comments.OperationRequest{
		Kind:             kind,
		TargetURI:        body.TargetURI,
		Content:          body.Content,
		Metadata:         body.Metadata,
		SubmitIfApproved: body.SubmitIfApproved,
		ChainID:          new(big.Int).Set(h.chainID),
		Contract:         h.contract,
	}

	if !common.IsHexAddress(strings.TrimSpace(body.Author)) {
		verr.Add("author", "author must be a hex address")
	} else {
		req.Author = common.HexToAddress(strings.TrimSpace(body.Author))
	}
	if parent, ok := parseHash(body.ParentID); ok {
		req.ParentID = parent
	} else {
		verr.Add("parent_id", "parent id must be a 32-byte hex value")
	}
	if commentID, ok := parseHash(body.CommentID); ok {
		req.CommentID = commentID
	} else {
		verr.Add("comment_id", "comment id must be a 32-byte hex value")
	}
	if body.Deadline != nil {
		req.Deadline = time.Unix(body.Deadline.Int().Int64(), 0).UTC()
	}
	if sig := strings.TrimSpace(body.AuthorSignature); sig != "" {
		decoded, err := hexutil.Decode(sig)
		if err != nil {
			verr.Add("author_signature", "author signature must be hex encoded")
		} else {
			req.AuthorSignature = decoded
		}
	}
	if body.ChainID != nil {
		req.ChainID = body.ChainID.Int()
	}
	if c := strings.TrimSpace(body.Contract); c != "" {
		if !common.IsHexAddress(c) {
			verr.Add("contract", "contract must be a hex address")
		} else {
			req.Contract = common.HexToAddress(c)
		}
	}
	if len(verr.Fields) > 0 {
		return comments.OperationRequest{}, verr
	}
	return req, nil
}

func (h *handlers) prepare(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeOperation(r)
	if err != nil {
		httpx.WritePipelineError(w, err)
		return
	}
	metrics.RequestsTotal.WithLabelValues(string(req.Kind), "prepare").Inc()

	result, err := h.pipe.Prepare(r.Context(), req)
	if err != nil {
		h.fail(w, r, req, err)
		return
	}
	h.recordOutcome(r, req, result)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"request_id": httpx.NewRequestID(),
		"result":     result,
	})
}

func (h *handlers) send(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeOperation(r)
	if err != nil {
		httpx.WritePipelineError(w, err)
		return
	}
	metrics.RequestsTotal.WithLabelValues(string(req.Kind), "send").Inc()

	endpoint := "send/" + strings.ToLower(string(req.Kind))
	idemKey := strings.TrimSpace(r.Header.Get("X-Idempotency-Key"))
	if status, body, found, err := idempotency.Replay(r.Context(), h.st, req.Author, idemKey, endpoint); err == nil && found {
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(body)
		return
	}

	result, err := h.pipe.Send(r.Context(), req)
	if err != nil {
		h.fail(w, r, req, err)
		return
	}
	h.recordOutcome(r, req, result)

	resp := map[string]any{
		"request_id": httpx.NewRequestID(),
		"result":     result,
	}
	if body, err := json.Marshal(resp); err == nil {
		if err := idempotency.Save(r.Context(), h.st, req.Author, idemKey, endpoint, http.StatusOK, body); err != nil {
			log.Warnf("idempotency save: %v", err)
		}
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// moderate lets operators mute or flag an author; the reputation guard
// consumes these rows.
func (h *handlers) moderate(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "author")
	if !common.IsHexAddress(raw) {
		httpx.WriteFieldErrors(w, map[string][]string{"author": {"author must be a hex address"}})
		return
	}
	var body struct {
		Muted   bool `json:"muted"`
		Spammer bool `json:"spammer"`
	}
	if err := httpx.ReadJSON(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_JSON", err.Error(), nil)
		return
	}
	author := common.HexToAddress(raw)
	if err := h.st.SetModeration(r.Context(), author, body.Muted, body.Spammer); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "DB_ERROR", "moderation update failed", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"request_id": httpx.NewRequestID(),
		"author":     strings.ToLower(author.Hex()),
		"muted":      body.Muted,
		"spammer":    body.Spammer,
	})
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, req comments.OperationRequest, err error) {
	metrics.GuardFailuresTotal.WithLabelValues(errCode(err)).Inc()
	if errors.Is(err, comments.ErrSubmissionReverted) {
		metrics.SubmissionsTotal.WithLabelValues(string(comments.StateReverted)).Inc()
		if aerr := h.st.AddEvent(r.Context(), string(req.Kind), req.Author, "", map[string]any{
			"outcome": "reverted",
		}); aerr != nil {
			log.Warnf("audit event: %v", aerr)
		}
	}
	httpx.WritePipelineError(w, err)
}

func (h *handlers) recordOutcome(r *http.Request, req comments.OperationRequest, result *pipeline.Result) {
	if result.Status != pipeline.StatusSubmitted {
		return
	}
	metrics.SubmissionsTotal.WithLabelValues(string(result.TxState)).Inc()
	txHash := ""
	if result.TxHash != nil {
		txHash = result.TxHash.Hex()
	}
	if err := h.st.AddEvent(r.Context(), string(req.Kind), req.Author, txHash, map[string]any{
		"outcome": strings.ToLower(string(result.TxState)),
	}); err != nil {
		log.Warnf("audit event: %v", err)
	}
}

func errCode(err error) string {
	var verr *comments.ValidationError
	var aerr *comments.AuthorizationError
	var rerr *comments.RateLimitedError
	switch {
	case errors.As(err, &verr):
		return "VALIDATION"
	case errors.As(err, &aerr):
		return "AUTHOR_BLOCKED"
	case errors.As(err, &rerr):
		return "RATE_LIMITED"
	case errors.Is(err, comments.ErrSignatureInvalid), errors.Is(err, submitter.ErrAppSignatureMismatch):
		return "SIGNATURE_INVALID"
	case errors.Is(err, comments.ErrSubmissionReverted):
		return "SUBMISSION_REVERTED"
	default:
		return "UPSTREAM_UNAVAILABLE"
	}
}

// parseHash accepts "" (the zero sentinel) or a 0x-prefixed 32-byte hex
// value.
func parseHash(s string) (common.Hash, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return common.Hash{}, true
	}
	decoded, err := hexutil.Decode(s)
	if err != nil || len(decoded) != common.HashLength {
		return common.Hash{}, false
	}
	return common.BytesToHash(decoded), true
}
