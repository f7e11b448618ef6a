// Package ratelimit implements the per-author sliding window used by the
// guard pipeline: one accepted request per window per key. The counter
// store is external by design; the in-memory limiter exists for tests and
// single-instance deployments, the Redis limiter for everything else.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow matches the observed relay policy of one accepted request
// per author per minute.
const DefaultWindow = 60 * time.Second

// Limiter reports whether a key may proceed. When blocked, retryAfter is
// the time until the window resets.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

type InMemory struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func NewInMemory(window time.Duration) *InMemory {
	if window <= 0 {
		window = DefaultWindow
	}
	return &InMemory{window: window, now: time.Now, last: map[string]time.Time{}}
}

// WithClock overrides the limiter clock. Tests only.
func (l *InMemory) WithClock(now func() time.Time) *InMemory {
	l.now = now
	return l
}

func (l *InMemory) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if at, ok := l.last[key]; ok {
		elapsed := now.Sub(at)
		if elapsed < l.window {
			return false, l.window - elapsed, nil
		}
	}
	l.last[key] = now
	if len(l.last) > 4096 {
		l.prune(now)
	}
	return true, 0, nil
}

func (l *InMemory) prune(now time.Time) {
	for k, at := range l.last {
		if now.Sub(at) >= l.window {
			delete(l.last, k)
		}
	}
}
