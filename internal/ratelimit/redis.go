package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lua script for an atomic fixed-window increment. INCR and PEXPIRE must be
// one round trip or two gateway instances could both create the key and only
// one would set the expiry.
const fixedWindowLuaScript = `
local current = redis.call('INCR', KEYS[1])
if current == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {current, ttl}
`

var fixedWindowScript = redis.NewScript(fixedWindowLuaScript)

// RedisLimiter is the shared-store Limiter. Counters live in Redis with a
// TTL equal to the policy window, so every gateway instance sees the same
// per-key count and the "at most N per window" invariant holds across a
// horizontally scaled deployment.
type RedisLimiter struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisLimiter creates a Redis-backed fixed-window limiter.
func NewRedisLimiter(client redis.UniversalClient) (*RedisLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisLimiter{client: client, keyPrefix: "ratelimit"}, nil
}

// Check implements Limiter. A Redis failure is returned to the caller; the
// middleware fails open so a cache outage does not take the gateway down.
func (l *RedisLimiter) Check(ctx context.Context, key string, policy Policy) (Result, error) {
	redisKey := fmt.Sprintf("%s:%s:%s", l.keyPrefix, policy.Name, key)
	windowMs := policy.Window.Milliseconds()

	raw, err := fixedWindowScript.Run(ctx, l.client, []string{redisKey}, windowMs).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check for %s: %w", redisKey, err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return Result{}, fmt.Errorf("unexpected script result %T for %s", raw, redisKey)
	}
	count, _ := values[0].(int64)
	ttlMs, _ := values[1].(int64)
	if ttlMs < 0 {
		ttlMs = windowMs
	}

	ttl := time.Duration(ttlMs) * time.Millisecond
	resetAt := time.Now().Add(ttl)

	remaining := int64(policy.MaxRequests) - count
	if remaining < 0 {
		remaining = 0
	}

	res := Result{
		Allowed:   count <= int64(policy.MaxRequests),
		Limit:     policy.MaxRequests,
		Remaining: int(remaining),
		ResetAt:   resetAt,
	}
	if !res.Allowed {
		res.RetryAfter = ttl
	}
	return res, nil
}
