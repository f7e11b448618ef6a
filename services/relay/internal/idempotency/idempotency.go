// Package idempotency replays stored responses for retried send calls so a
// client retry can never cause a second broadcast.
package idempotency

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

type Store interface {
	GetIdempotencyRecord(ctx context.Context, author common.Address, key, endpoint string) (int, []byte, bool, error)
	SaveIdempotencyRecord(ctx context.Context, author common.Address, key, endpoint string, status int, body []byte) error
}

func Replay(ctx context.Context, st Store, author common.Address, key, endpoint string) (int, []byte, bool, error) {
	if key == "" {
		return 0, nil, false, nil
	}
	status, body, found, err := st.GetIdempotencyRecord(ctx, author, key, endpoint)
	if err != nil {
		return 0, nil, false, err
	}
	if !found {
		return 0, nil, false, nil
	}
	return status, body, true, nil
}

func Save(ctx context.Context, st Store, author common.Address, key, endpoint string, status int, body []byte) error {
	if key == "" {
		return nil
	}
	return st.SaveIdempotencyRecord(ctx, author, key, endpoint, status, body)
}
