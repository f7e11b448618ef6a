package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecp-eth/comments-monorepo-sub007/pkg/guards"
)

type Store struct{ DB *pgxpool.Pool }

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func authorKey(author common.Address) string {
	return strings.ToLower(author.Hex())
}

// ModerationStatus implements guards.ModerationSource. An unknown author
// has a clean record; a query failure propagates so the guard fails closed.
func (s *Store) ModerationStatus(ctx context.Context, author common.Address) (guards.Moderation, error) {
	var m guards.Moderation
	err := s.DB.QueryRow(ctx, `
SELECT muted,spammer
FROM author_moderation
WHERE author=$1
`, authorKey(author)).Scan(&m.Muted, &m.Spammer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return guards.Moderation{}, nil
		}
		return guards.Moderation{}, err
	}
	return m, nil
}

func (s *Store) SetModeration(ctx context.Context, author common.Address, muted, spammer bool) error {
	_, err := s.DB.Exec(ctx, `
INSERT INTO author_moderation(author,muted,spammer,updated_at)
VALUES($1,$2,$3,now())
ON CONFLICT (author) DO UPDATE SET muted=$2,spammer=$3,updated_at=now()
`, authorKey(author), muted, spammer)
	return err
}

// Idempotency records keep a client retry of a send from broadcasting
// twice. Keyed by (author, idempotency key, endpoint), first writer wins.
func (s *Store) GetIdempotencyRecord(ctx context.Context, author common.Address, key, endpoint string) (int, []byte, bool, error) {
	var (
		status int
		body   []byte
	)
	err := s.DB.QueryRow(ctx, `
SELECT response_status,response_body
FROM relay_idempotency_records
WHERE author=$1 AND idempotency_key=$2 AND endpoint=$3
`, authorKey(author), key, endpoint).Scan(&status, &body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil, false, nil
		}
		return 0, nil, false, err
	}
	return status, body, true, nil
}

func (s *Store) SaveIdempotencyRecord(ctx context.Context, author common.Address, key, endpoint string, status int, body []byte) error {
	_, err := s.DB.Exec(ctx, `
INSERT INTO relay_idempotency_records(author,idempotency_key,endpoint,response_status,response_body)
VALUES($1,$2,$3,$4,$5::jsonb)
ON CONFLICT (author,idempotency_key,endpoint) DO NOTHING
`, authorKey(author), key, endpoint, status, string(body))
	return err
}

// AddEvent records one audit row per pipeline outcome. Best effort at the
// call sites; a failed insert never fails the request.
func (s *Store) AddEvent(ctx context.Context, kind string, author common.Address, txHash string, details map[string]any) error {
	b, _ := json.Marshal(details)
	_, err := s.DB.Exec(ctx, `
INSERT INTO relay_events(kind,author,tx_hash,details)
VALUES($1,$2,$3,$4::jsonb)
`, kind, authorKey(author), txHash, string(b))
	return err
}
