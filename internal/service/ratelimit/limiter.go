package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// Reset is the time until the caller gets at least one more request.
	Reset time.Duration
}

// Limiter admits or rejects one request for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

type bucket struct {
	tokens float64
	last   time.Time
}

// TokenBucket is an in-process limiter: limit tokens per window, refilled continuously.
type TokenBucket struct {
	mu         sync.Mutex
	m          map[string]*bucket
	capacity   float64
	refillRate float64 // tokens per second
	limit      int
	now        func() time.Time
}

// NewTokenBucket allows bursts of limit requests and limit requests per window on average.
func NewTokenBucket(limit int, window time.Duration) *TokenBucket {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &TokenBucket{
		m:          make(map[string]*bucket),
		capacity:   float64(limit),
		refillRate: float64(limit) / window.Seconds(),
		limit:      limit,
		now:        time.Now,
	}
}

// Allow consumes one token for key when available.
func (l *TokenBucket) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}
	// refill
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(l.capacity, b.tokens+elapsed*l.refillRate)
		b.last = now
	}

	d := Decision{Limit: l.limit}
	if b.tokens >= 1 {
		b.tokens--
		d.Allowed = true
	}
	d.Remaining = int(math.Floor(b.tokens))
	if b.tokens < 1 {
		d.Reset = time.Duration((1 - b.tokens) / l.refillRate * float64(time.Second))
	}
	return d, nil
}

// Prune drops buckets that have been idle long enough to be full again.
func (l *TokenBucket) Prune() int {
	now := l.now()
	full := time.Duration(l.capacity / l.refillRate * float64(time.Second))
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for key, b := range l.m {
		if now.Sub(b.last) >= full {
			delete(l.m, key)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (l *TokenBucket) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
