// Package memlimit implements the ratelimit port with an in-process
// sliding window log. State is lost on restart and is not shared between
// instances.
package memlimit

import (
	"context"
	"sync"
	"time"

	"github.com/Strob0t/linkshop/internal/port/ratelimit"
)

// Limiter keeps a timestamp log per key.
type Limiter struct {
	mu      sync.Mutex
	logs    map[string][]time.Time
	maxKeys int // max tracked keys (prevents memory exhaustion)
	now     func() time.Time
}

// New creates an empty limiter.
func New() *Limiter {
	return &Limiter{
		logs:    make(map[string][]time.Time),
		maxKeys: 100000,
		now:     time.Now,
	}
}

// Allow prunes timestamps older than now-interval, then records now and
// allows the request when fewer than rule.Max remain.
func (l *Limiter) Allow(_ context.Context, key string, rule ratelimit.Rule) (ratelimit.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-rule.Interval)

	log, exists := l.logs[key]
	kept := log[:0]
	for _, ts := range log {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= rule.Max {
		l.logs[key] = kept
		return ratelimit.Result{Allowed: false, Remaining: 0, ResetAt: resetAt(kept, now, rule.Interval)}, nil
	}
	if !exists && len(l.logs) >= l.maxKeys {
		return ratelimit.Result{Allowed: false, Remaining: 0, ResetAt: now.Add(rule.Interval)}, nil
	}

	kept = append(kept, now)
	l.logs[key] = kept
	return ratelimit.Result{
		Allowed:   true,
		Remaining: rule.Max - len(kept),
		ResetAt:   resetAt(kept, now, rule.Interval),
	}, nil
}

func resetAt(log []time.Time, now time.Time, interval time.Duration) time.Time {
	if len(log) == 0 {
		return now.Add(interval)
	}
	return log[0].Add(interval)
}

// StartCleanup spawns a goroutine that removes idle keys every interval.
// A key is idle when none of its timestamps is newer than maxIdle.
// The goroutine stops when ctx is cancelled.
func (l *Limiter) StartCleanup(ctx context.Context, interval, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.cleanup(maxIdle)
			}
		}
	}()
}

func (l *Limiter) cleanup(maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-maxIdle)
	for key, log := range l.logs {
		if len(log) == 0 || !log[len(log)-1].After(cutoff) {
			delete(l.logs, key)
		}
	}
}

// Len returns the number of tracked keys (for metrics and testing).
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.logs)
}
