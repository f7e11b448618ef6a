// Package relayclient is a small typed client for the relay HTTP API, used
// by relayctl and by applications embedding the relay.
package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ecp-eth/comments-monorepo-sub007/pkg/comments"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/pipeline"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{},
	}
}

// OperationInput mirrors the relay's request body. Integer-valued fields
// are decimal strings.
type OperationInput struct {
	Author           string   `json:"author"`
	TargetURI        string   `json:"target_uri,omitempty"`
	ParentID         string   `json:"parent_id,omitempty"`
	CommentID        string   `json:"comment_id,omitempty"`
	Content          string   `json:"content,omitempty"`
	Metadata         []string `json:"metadata,omitempty"`
	Deadline         string   `json:"deadline,omitempty"`
	SubmitIfApproved bool     `json:"submit_if_approved,omitempty"`
	AuthorSignature  string   `json:"author_signature,omitempty"`
	ChainID          string   `json:"chain_id,omitempty"`
	Contract         string   `json:"contract,omitempty"`
}

type ResultEnvelope struct {
	RequestID string          `json:"request_id"`
	Result    pipeline.Result `json:"result"`
}

func (c *Client) Prepare(ctx context.Context, kind comments.OperationKind, in OperationInput) (*ResultEnvelope, error) {
	return c.post(ctx, kind, "prepare", in, "")
}

// Send relays with an author signature attached. idemKey, when non-empty,
// makes retries safe against double broadcast.
func (c *Client) Send(ctx context.Context, kind comments.OperationKind, in OperationInput, idemKey string) (*ResultEnvelope, error) {
	return c.post(ctx, kind, "send", in, idemKey)
}

func (c *Client) post(ctx context.Context, kind comments.OperationKind, endpoint string, in OperationInput, idemKey string) (*ResultEnvelope, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/api/%s/%s", c.BaseURL, strings.ToLower(string(kind)), endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		req.Header.Set("X-Idempotency-Key", idemKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var errBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return nil, fmt.Errorf("http %d: %v", resp.StatusCode, errBody)
	}
	var out ResultEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
