package ratelimit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow keeps a sorted set of request timestamps per tenant and
// admits a request iff fewer than limit entries fall inside the trailing
// window. Prune, count and add happen in one script, so concurrent checks
// on the same key cannot race.
//
// KEYS[1] window set  ARGV: now_ms, window_ms, limit, member
// Returns {allowed, count, oldest_ms}.
var slidingWindow = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", KEYS[1], 0, now - window)
local count = redis.call("ZCARD", KEYS[1])
if count >= limit then
  local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
  return {0, count, tonumber(oldest[2])}
end
redis.call("ZADD", KEYS[1], now, ARGV[4])
redis.call("PEXPIRE", KEYS[1], window)
return {1, count + 1, 0}
`)

type RedisLimiter struct {
	client *redis.Client
}

func NewRedisLimiter(redisURL string) (*RedisLimiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	return &RedisLimiter{client: redis.NewClient(opt)}, nil
}

func (rl *RedisLimiter) Check(ctx context.Context, tenantID, planTier string, override int) (Result, error) {
	limit := limitFor(planTier, override)
	now := time.Now()
	key := fmt.Sprintf("uniclass:ratelimit:%s:%s", planTier, tenantID)

	vals, err := slidingWindow.Run(ctx, rl.client, []string{key},
		now.UnixMilli(), Window.Milliseconds(), limit, uuid.NewString(),
	).Int64Slice()
	if err != nil || len(vals) != 3 {
		// Fail open: losing a window to a Redis hiccup beats denying all traffic.
		log.Printf("Rate limit check failed, allowing request: %v", err)
		return Result{Allowed: true, Limit: limit, Remaining: limit - 1, ResetAt: now.Add(Window)}, nil
	}

	if vals[0] == 1 {
		return Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - int(vals[1]),
			ResetAt:   now.Add(Window),
		}, nil
	}

	resetAt := time.UnixMilli(vals[2]).Add(Window)
	retryAfter := int(time.Until(resetAt).Seconds()) + 1
	if retryAfter < 1 {
		retryAfter = 1
	}

	return Result{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: retryAfter,
	}, nil
}

func (rl *RedisLimiter) Close() error {
	return rl.client.Close()
}
