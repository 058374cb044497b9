// Package ratelimit defines the port for sliding-window request limiting.
package ratelimit

import (
	"context"
	"time"
)

// Rule caps a key at Max requests within any trailing Interval.
type Rule struct {
	Max      int
	Interval time.Duration
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Remaining int
	// ResetAt is when the oldest request in the window ages out.
	ResetAt time.Time
}

// RetryAfterSeconds returns how long a rejected caller should wait,
// rounded up to whole seconds and never less than one.
func (r Result) RetryAfterSeconds(now time.Time) int64 {
	d := r.ResetAt.Sub(now)
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter records requests per key and decides whether each is allowed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	Allow(ctx context.Context, key string, rule Rule) (Result, error)
}
