package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(opts ...MemoryOption) (*MemoryCache, *clock) {
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	opts = append([]MemoryOption{WithMemoryClock(clk.Now), WithMemoryCleanup(0)}, opts...)
	return NewMemoryCache(opts...), clk
}

func TestMemoryGetDecodesStructs(t *testing.T) {
	c, _ := newTestCache()
	defer c.Close()
	ctx := context.Background()

	type token struct {
		Value string `json:"value"`
	}
	require.NoError(t, c.Set(ctx, "tok", token{Value: "abc"}, time.Minute))

	var got token
	require.NoError(t, c.Get(ctx, "tok", &got))
	assert.Equal(t, "abc", got.Value)

	require.NoError(t, c.Set(ctx, "raw", "plain", 0))
	var s string
	require.NoError(t, c.Get(ctx, "raw", &s))
	assert.Equal(t, "plain", s)
}

func TestMemoryExpiry(t *testing.T) {
	c, clk := newTestCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Second))
	clk.Advance(time.Second)

	var s string
	assert.ErrorIs(t, c.Get(ctx, "k", &s), ErrCacheMiss)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryIncrWindow(t *testing.T) {
	c, clk := newTestCache()
	defer c.Close()
	ctx := context.Background()

	n, ttl, err := c.IncrWindow(ctx, "hits", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, time.Minute, ttl)

	clk.Advance(20 * time.Second)
	n, ttl, err = c.IncrWindow(ctx, "hits", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 40*time.Second, ttl, "window is not extended")

	clk.Advance(40 * time.Second)
	n, _, err = c.IncrWindow(ctx, "hits", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "new window")

	var count int
	require.NoError(t, c.Get(ctx, "hits", &count))
	assert.Equal(t, 1, count)
}

func TestMemoryIncrWindowRejectsNonInteger(t *testing.T) {
	c, _ := newTestCache()
	defer c.Close()
	require.NoError(t, c.Set(context.Background(), "k", "abc", 0))
	_, _, err := c.IncrWindow(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	c, clk := newTestCache(WithMemoryMaxSize(2))
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1", 0))
	clk.Advance(time.Millisecond)
	require.NoError(t, c.Set(ctx, "b", "2", 0))
	clk.Advance(time.Millisecond)

	var s string
	require.NoError(t, c.Get(ctx, "a", &s))
	clk.Advance(time.Millisecond)
	require.NoError(t, c.Set(ctx, "c", "3", 0))

	assert.ErrorIs(t, c.Get(ctx, "b", &s), ErrCacheMiss)
	assert.NoError(t, c.Get(ctx, "a", &s))
	assert.NoError(t, c.Get(ctx, "c", &s))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "edupulse:rl:u1", Key("edupulse", "rl", "", "u1"))
}
