// Package redislimit implements the ratelimit port on Redis sorted sets so
// that every instance shares one window per key.
package redislimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Strob0t/linkshop/internal/port/ratelimit"
)

const keyPrefix = "linkshop:rl:"

// slidingWindow prunes members older than now-window, records now when the
// key is under max and returns {allowed, count, resetAtMillis}. Idle keys
// expire with the window.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', '(' .. (now - window))
local count = redis.call('ZCARD', key)
local allowed = 0
if count < max then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)

local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end
return {allowed, count, reset}
`)

// Limiter is a Redis-backed sliding window log.
type Limiter struct {
	client redis.UniversalClient
	now    func() time.Time
}

// Connect creates a client for addr and verifies the connection.
func Connect(ctx context.Context, addr, password string, db int) (*Limiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return New(client), nil
}

// New wraps an existing client.
func New(client redis.UniversalClient) *Limiter {
	return &Limiter{client: client, now: time.Now}
}

// Allow runs the sliding window script atomically for key.
func (l *Limiter) Allow(ctx context.Context, key string, rule ratelimit.Rule) (ratelimit.Result, error) {
	now := l.now()
	res, err := slidingWindow.Run(ctx, l.client,
		[]string{keyPrefix + key},
		now.UnixMilli(), rule.Interval.Milliseconds(), rule.Max, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return ratelimit.Result{}, fmt.Errorf("redis rate limit %s: %w", key, err)
	}
	if len(res) != 3 {
		return ratelimit.Result{}, fmt.Errorf("redis rate limit %s: unexpected reply length %d", key, len(res))
	}

	allowed := res[0] == 1
	remaining := 0
	if allowed {
		remaining = rule.Max - int(res[1])
	}
	return ratelimit.Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(res[2]),
	}, nil
}

// Close releases the client.
func (l *Limiter) Close() error {
	return l.client.Close()
}
