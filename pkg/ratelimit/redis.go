package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	defaultKeyPrefix = "ratelimit:"
	redisCallTimeout = 500 * time.Millisecond
)

// slidingWindow keeps one sorted set per key scored by arrival time in ms.
// Returns 1 when the request is rejected.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
if redis.call('ZCARD', key) >= limit then
	return 1
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 0
`)

// RedisRateLimiter shares its window across every instance pointed at the
// same Redis.
type RedisRateLimiter struct {
	client    *redis.Client
	requests  int
	window    time.Duration
	keyPrefix string
	logger    Logger
}

func NewRedisRateLimiter(client *redis.Client, requests int, window time.Duration, logger Logger) *RedisRateLimiter {
	return NewPrefixedRedisRateLimiter(client, defaultKeyPrefix, requests, window, logger)
}

// NewPrefixedRedisRateLimiter namespaces counters so several limiters can
// share one Redis database.
func NewPrefixedRedisRateLimiter(client *redis.Client, keyPrefix string, requests int, window time.Duration, logger Logger) *RedisRateLimiter {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisRateLimiter{
		client:    client,
		requests:  requests,
		window:    window,
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

func (l *RedisRateLimiter) GetLimitDetails() (int, time.Duration) {
	return l.requests, l.window
}

func (l *RedisRateLimiter) IsLimited(key string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisCallTimeout)
	defer cancel()

	redisKey := l.keyPrefix + key
	args := []any{time.Now().UnixMilli(), l.window.Milliseconds(), l.requests, uuid.NewString()}

	rejected, err := slidingWindow.Run(ctx, l.client, []string{redisKey}, args...).Int()
	if err != nil {
		if l.logger != nil {
			l.logger.Error("Rate limit check failed", "key", redisKey, "error", err)
		}
		return false, fmt.Errorf("ratelimit: redis: %w", err)
	}
	return rejected == 1, nil
}

// Close is a no-op. The client belongs to the router.
func (l *RedisRateLimiter) Close() error { return nil }
