package limiter

import (
	"context"
	_ "embed" // needed for go:embed
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed limiter.lua
var redisLimiterScript string

var redisScript = redis.NewScript(redisLimiterScript)

// redisKeyPrefix namespaces bucket keys.
const redisKeyPrefix = "hookpubsub:ratelimit:"

// redisStore implements the Store interface using Redis.
type redisStore struct {
	client redis.Scripter
}

// NewRedisStore creates a new Redis rate limit store.
// It expects a pre-configured client (e.g., *redis.Client or *redis.ClusterClient).
func NewRedisStore(client redis.Scripter) Store {
	return &redisStore{
		client: client,
	}
}

// Allow implements the Store interface for Redis storage using a Lua script for atomicity.
func (s *redisStore) Allow(ctx context.Context, key string, rate float64, period float64) (bool, error) {
	nowFloat := float64(time.Now().UnixNano()) / 1e9

	keys := []string{redisKeyPrefix + key}
	args := []any{
		rate,          // ARGV[1]: max tokens (burst capacity)
		rate / period, // ARGV[2]: tokens per second (refill rate)
		nowFloat,      // ARGV[3]: current timestamp (float seconds)
		1.0,           // ARGV[4]: tokens to consume
		period * 2,    // ARGV[5]: key ttl in seconds
	}

	// Run uses EVALSHA and falls back to EVAL when the script is not cached.
	result, err := redisScript.Run(ctx, s.client, keys, args...).Result()
	if err != nil {
		return false, fmt.Errorf("redis command failed for key %s: %w", key, err)
	}

	allowedInt, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected result type from redis script for key %s: %T", key, result)
	}
	return allowedInt == 1, nil
}
