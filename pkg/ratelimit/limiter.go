package ratelimit

import (
	"time"

	"github.com/go-redis/redis/v8"
)

// Logger is the subset of *log.Logger the Redis limiter reports through.
type Logger interface {
	Error(msg string, args ...any)
}

// RateLimiter answers whether the caller identified by key is over its budget.
type RateLimiter interface {
	GetLimitDetails() (int, time.Duration)
	IsLimited(key string) (bool, error)
	Close() error
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	// Redis switches to the shared sliding window. Nil means per-process buckets.
	Redis     *redis.Client
	Logger    Logger
	KeyPrefix string
}

func NewRateLimiter(config *RateLimitConfig) RateLimiter {
	if config.Redis != nil {
		return NewPrefixedRedisRateLimiter(config.Redis, config.KeyPrefix, config.Requests, config.Window, config.Logger)
	}
	return NewInMemoryRateLimiter(config.Requests, config.Window)
}
