// Package ratelimit provides a fixed-window counter backed by Redis,
// used to throttle credential-guessing on the token endpoint.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisLimiter allows at most limit events per key within a rolling window.
type RedisLimiter struct {
	client    *redis.Client
	limit     int
	window    time.Duration
	keyPrefix string
}

// NewRedisLimiter creates a Redis-backed fixed-window limiter
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, keyPrefix string) *RedisLimiter {
	return &RedisLimiter{
		client:    client,
		limit:     limit,
		window:    window,
		keyPrefix: keyPrefix,
	}
}

// allowScript increments the counter for the key, starting the window on the
// first hit. A Lua script keeps INCR and EXPIRE atomic.
var allowScript = redis.NewScript(
	`local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('EXPIRE', KEYS[1], tonumber(ARGV[1]))
	end
	return count`,
)

// Allow reports whether another event is permitted for the given key.
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := rl.keyPrefix + key

	result, err := allowScript.Run(ctx, rl.client, []string{redisKey}, int(rl.window.Seconds())).Result()
	if err != nil {
		return false, fmt.Errorf("failed to run limiter script: %w", err)
	}

	count, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected limiter script result: %v", result)
	}

	return int(count) <= rl.limit, nil
}

// Reset clears the counter for the given key.
func (rl *RedisLimiter) Reset(ctx context.Context, key string) error {
	return rl.client.Del(ctx, rl.keyPrefix+key).Err()
}
