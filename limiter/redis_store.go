package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// tokenBucketScript refills and consumes a bucket atomically.
// KEYS[1]: bucket key
// ARGV: max tokens, tokens per second, now (float seconds), tokens to consume
// Returns 1 if allowed, 0 otherwise.
const tokenBucketScript = `
local max_tokens = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil then
	tokens = max_tokens
	ts = now
end

tokens = math.min(max_tokens, tokens + (now - ts) * refill)
local allowed = 0
if tokens >= cost then
	tokens = tokens - cost
	allowed = 1
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", tostring(now))
redis.call("EXPIRE", KEYS[1], math.ceil(max_tokens / refill) + 1)
return allowed
`

var redisScript = redis.NewScript(tokenBucketScript)

// redisStore implements the Store interface using Redis.
type redisStore struct {
	client redis.Scripter
}

// NewRedisStore creates a Redis rate limit store shared by every process
// using the same Redis.
func NewRedisStore(client redis.Scripter) Store {
	return &redisStore{client: client}
}

// Allow implements the Store interface for Redis storage.
func (s *redisStore) Allow(ctx context.Context, key string, rate float64, period float64) (bool, error) {
	now := float64(time.Now().UnixNano()) / 1e9
	keys := []string{"ratelimit:" + key}

	result, err := redisScript.Run(ctx, s.client, keys, rate, rate/period, now, 1.0).Int64()
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("redis lua script execution failed")
		return false, fmt.Errorf("redis command failed for key %s: %w", key, err)
	}
	return result == 1, nil
}
