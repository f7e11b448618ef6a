package main

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecp-eth/comments-monorepo-sub007/pkg/comments"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/submitter"
)

func newOperationRequest(t *testing.T, kind, body string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/api/"+kind+"/prepare", strings.NewReader(body))
	r.Header.Set("content-type", "application/json")
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("kind", kind)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func testHandlers() *handlers {
	return &handlers{
		chainID:  big.NewInt(31337),
		contract: common.HexToAddress("0x00000000000000000000000000000000000000cc"),
	}
}

func TestDecodeOperationDefaultsChainFromConfig(t *testing.T) {
	h := testHandlers()
	r := newOperationRequest(t, "post_comment", `{
		"author": "0x00000000000000000000000000000000000000aa",
		"target_uri": "https://example.com",
		"content": "hi"
	}`)

	req, err := h.decodeOperation(r)
	require.NoError(t, err)
	assert.Equal(t, comments.KindPostComment, req.Kind)
	assert.Equal(t, "31337", req.ChainID.String())
	assert.Equal(t, h.contract, req.Contract)
	assert.True(t, req.Deadline.IsZero())
}

func TestDecodeOperationOverrides(t *testing.T) {
	h := testHandlers()
	r := newOperationRequest(t, "Delete_Comment", `{
		"author": "0x00000000000000000000000000000000000000aa",
		"comment_id": "0x1111111111111111111111111111111111111111111111111111111111111111",
		"deadline": "1700000000",
		"chain_id": "8453",
		"contract": "0x00000000000000000000000000000000000000dd",
		"author_signature": "0x0badc0de"
	}`)

	req, err := h.decodeOperation(r)
	require.NoError(t, err)
	assert.Equal(t, comments.KindDeleteComment, req.Kind)
	assert.Equal(t, "8453", req.ChainID.String())
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000dd"), req.Contract)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), req.Deadline)
	assert.Equal(t, []byte{0x0b, 0xad, 0xc0, 0xde}, req.AuthorSignature)
	assert.NotEqual(t, common.Hash{}, req.CommentID)
}

func TestDecodeOperationRejectsUnknownKind(t *testing.T) {
	h := testHandlers()
	r := newOperationRequest(t, "mint_token", `{}`)

	_, err := h.decodeOperation(r)
	var verr *comments.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "kind")
}

func TestDecodeOperationCollectsFieldErrors(t *testing.T) {
	h := testHandlers()
	r := newOperationRequest(t, "post_comment", `{
		"author": "not-an-address",
		"parent_id": "0x1234",
		"author_signature": "zz"
	}`)

	_, err := h.decodeOperation(r)
	var verr *comments.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "author")
	assert.Contains(t, verr.Fields, "parent_id")
	assert.Contains(t, verr.Fields, "author_signature")
}

func TestDecodeOperationRejectsMalformedJSON(t *testing.T) {
	h := testHandlers()
	r := newOperationRequest(t, "post_comment", `{"author":`)

	_, err := h.decodeOperation(r)
	var verr *comments.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "body")
}

func TestParseHash(t *testing.T) {
	h, ok := parseHash("")
	assert.True(t, ok)
	assert.Equal(t, common.Hash{}, h)

	h, ok = parseHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	assert.True(t, ok)
	assert.NotEqual(t, common.Hash{}, h)

	for _, bad := range []string{"0x12", "1111", "0xzz"} {
		_, ok := parseHash(bad)
		assert.False(t, ok, "expected %q rejected", bad)
	}
}

func TestErrCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{comments.NewValidationError("content", "too long"), "VALIDATION"},
		{&comments.AuthorizationError{Reason: "muted"}, "AUTHOR_BLOCKED"},
		{&comments.RateLimitedError{RetryAfter: time.Minute}, "RATE_LIMITED"},
		{comments.ErrSignatureInvalid, "SIGNATURE_INVALID"},
		{submitter.ErrAppSignatureMismatch, "SIGNATURE_INVALID"},
		{comments.ErrSubmissionReverted, "SUBMISSION_REVERTED"},
		{comments.ErrUpstreamUnavailable, "UPSTREAM_UNAVAILABLE"},
		{errors.New("anything else"), "UPSTREAM_UNAVAILABLE"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, errCode(tc.err), "errCode(%v)", tc.err)
	}
}
