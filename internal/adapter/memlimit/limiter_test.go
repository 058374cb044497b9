package memlimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/linkshop/internal/port/ratelimit"
)

var _ ratelimit.Limiter = (*Limiter)(nil)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter() (*Limiter, *clock) {
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New()
	l.now = c.now
	return l, c
}

func TestAllow_SlidingWindow(t *testing.T) {
	l, c := newTestLimiter()
	ctx := context.Background()
	rule := ratelimit.Rule{Max: 3, Interval: 60 * time.Second}
	start := c.t

	for i := range 3 {
		res, err := l.Allow(ctx, "ip:1", rule)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "call %d", i+1)
		assert.Equal(t, 2-i, res.Remaining)
		assert.Equal(t, start.Add(60*time.Second), res.ResetAt)
		c.advance(time.Second)
	}

	res, err := l.Allow(ctx, "ip:1", rule)
	require.NoError(t, err)
	assert.False(t, res.Allowed, "4th call within the window must be rejected")
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, start.Add(60*time.Second), res.ResetAt)

	// Once the oldest timestamp ages out a new call succeeds.
	c.t = start.Add(61 * time.Second)
	res, err = l.Allow(ctx, "ip:1", rule)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, start.Add(time.Second+60*time.Second), res.ResetAt, "reset follows the oldest retained timestamp")
}

func TestAllow_RejectedCallsAreNotRecorded(t *testing.T) {
	l, c := newTestLimiter()
	ctx := context.Background()
	rule := ratelimit.Rule{Max: 1, Interval: 10 * time.Second}

	res, _ := l.Allow(ctx, "k", rule)
	require.True(t, res.Allowed)
	for range 5 {
		c.advance(time.Second)
		res, _ = l.Allow(ctx, "k", rule)
		require.False(t, res.Allowed)
	}
	c.advance(6 * time.Second)
	res, _ = l.Allow(ctx, "k", rule)
	assert.True(t, res.Allowed, "rejections must not extend the window")
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter()
	ctx := context.Background()
	rule := ratelimit.Rule{Max: 1, Interval: time.Minute}

	res, _ := l.Allow(ctx, "a", rule)
	assert.True(t, res.Allowed)
	res, _ = l.Allow(ctx, "a", rule)
	assert.False(t, res.Allowed)
	res, _ = l.Allow(ctx, "b", rule)
	assert.True(t, res.Allowed)
}

func TestAllow_MaxKeys(t *testing.T) {
	l, _ := newTestLimiter()
	l.maxKeys = 2
	ctx := context.Background()
	rule := ratelimit.Rule{Max: 5, Interval: time.Minute}

	for i := range 2 {
		res, _ := l.Allow(ctx, fmt.Sprintf("k%d", i), rule)
		require.True(t, res.Allowed)
	}
	res, _ := l.Allow(ctx, "k-new", rule)
	assert.False(t, res.Allowed)
	res, _ = l.Allow(ctx, "k0", rule)
	assert.True(t, res.Allowed, "known keys keep working at capacity")
}

func TestCleanup_RemovesIdleKeys(t *testing.T) {
	l, c := newTestLimiter()
	ctx := context.Background()
	rule := ratelimit.Rule{Max: 3, Interval: time.Minute}

	_, _ = l.Allow(ctx, "old", rule)
	c.advance(6 * time.Minute)
	_, _ = l.Allow(ctx, "fresh", rule)
	require.Equal(t, 2, l.Len())

	l.cleanup(5 * time.Minute)
	assert.Equal(t, 1, l.Len())
	l.mu.Lock()
	_, ok := l.logs["fresh"]
	l.mu.Unlock()
	assert.True(t, ok)
}

func TestAllow_Concurrent(t *testing.T) {
	l := New()
	ctx := context.Background()
	rule := ratelimit.Rule{Max: 50, Interval: time.Minute}

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Allow(ctx, "shared", rule)
			if err == nil && res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestStartCleanup_StopsOnCancel(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	l.StartCleanup(ctx, time.Millisecond, time.Millisecond)
	cancel()
}
