package ratelimit

import (
	"context"
	"fmt"
	"time"

	"EduPulse/pkg/cache"
)

// Counter is the part of cache.Service a fixed window needs.
type Counter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

var _ Counter = (cache.Service)(nil)

// FixedWindow counts requests per key in a shared store, so every replica sees the same budget.
type FixedWindow struct {
	counter Counter
	limit   int
	window  time.Duration
}

func NewFixedWindow(counter Counter, limit int, window time.Duration) *FixedWindow {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &FixedWindow{counter: counter, limit: limit, window: window}
}

func (l *FixedWindow) Allow(ctx context.Context, key string) (Decision, error) {
	n, ttl, err := l.counter.IncrWindow(ctx, cache.Key("ratelimit", key), l.window)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit counter: %w", err)
	}
	if ttl <= 0 {
		ttl = l.window
	}
	d := Decision{
		Allowed:   n <= int64(l.limit),
		Limit:     l.limit,
		Remaining: l.limit - int(n),
		Reset:     ttl,
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	return d, nil
}
