package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"social-publisher/internal/models"
)

// PlatformLimiter is a distributed token bucket per platform, backed by
// Redis so concurrent publisher replicas share one budget against each
// platform's API.
type PlatformLimiter struct {
	client   *redis.Client
	capacity int
	refill   float64 // tokens per second
	ttl      time.Duration
}

// NewPlatformLimiter constructs a limiter with the provided capacity/refill.
func NewPlatformLimiter(client *redis.Client, capacity int, refillPerSecond float64, ttl time.Duration) *PlatformLimiter {
	return &PlatformLimiter{
		client:   client,
		capacity: capacity,
		refill:   refillPerSecond,
		ttl:      ttl,
	}
}

// Allow consumes one publish token for the platform if available. The bucket
// state lives entirely in the Lua script so the check-and-decrement is atomic
// across replicas.
func (l *PlatformLimiter) Allow(ctx context.Context, platform models.Platform) (bool, error) {
	key := "publish:rl:" + string(platform)
	now := time.Now().UnixMilli()
	res, err := bucketScript.Run(ctx, l.client, []string{key}, l.capacity, l.refill, now, l.ttl.Milliseconds()).Result()
	if err != nil {
		return false, err
	}
	arr, ok := res.([]interface{})
	if !ok || len(arr) < 1 {
		return false, nil
	}
	allowed, _ := arr[0].(int64)
	return allowed == 1, nil
}

var bucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2]) -- tokens per second
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local data = redis.call('HMGET', key, 'tokens', 'last_ms')
local tokens = tonumber(data[1])
local last = tonumber(data[2])
if tokens == nil then tokens = capacity end
if last == nil then last = now end

local delta = math.max(0, now - last)
local add = delta / 1000 * refill
tokens = math.min(capacity, tokens + add)

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call('HMSET', key, 'tokens', tokens, 'last_ms', now)
if ttl > 0 then redis.call('PEXPIRE', key, ttl) end
return {allowed, tokens}
`)
