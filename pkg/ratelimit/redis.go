package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis holds one key per (prefix, author) with the window as TTL. SET NX
// makes the check-and-claim atomic across relay instances.
type Redis struct {
	client *redis.Client
	window time.Duration
	prefix string
}

func NewRedis(client *redis.Client, window time.Duration) *Redis {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Redis{client: client, window: window, prefix: "relay:ratelimit:"}
}

func (l *Redis) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	full := l.prefix + key
	ok, err := l.client.SetNX(ctx, full, 1, l.window).Result()
	if err != nil {
		return false, 0, err
	}
	if ok {
		return true, 0, nil
	}
	ttl, err := l.client.PTTL(ctx, full).Result()
	if err != nil || ttl <= 0 {
		ttl = l.window
	}
	return false, ttl, nil
}
