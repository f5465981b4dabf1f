package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/akeren/waitlist-foundry/internal/log"
	pkgredis "github.com/akeren/waitlist-foundry/pkg/redis"
	"github.com/akeren/waitlist-foundry/pkg/utils"
	"github.com/go-redis/redis/v8"
)

// Cache backs the public waitlist counter and the Redis rate limiters.
type Cache interface {
	// Get returns ("", nil) when a key is not found.
	Get(ctx context.Context, key string) (string, error)
	// Set uses ttl=0 for no expiry.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

var ErrCacheNotConfigured = errors.New("cache: neither REDIS_URL nor REDIS_HOST is set")

// CacheConfig prefers REDIS_URL (redis://[:password@]host:port/db) and falls
// back to the discrete REDIS_* variables.
type CacheConfig struct {
	URL      string
	Host     string
	Port     string
	Password string
	DB       int
}

func NewCacheConfig() *CacheConfig {
	return &CacheConfig{
		URL:      utils.GetEnvTrimmed("REDIS_URL"),
		Host:     utils.GetEnvTrimmed("REDIS_HOST"),
		Port:     utils.GetEnvTrimmedOrDefault("REDIS_PORT", "6379"),
		Password: sanitizeEnv(GetValueFromEnvironmentVariable("REDIS_PASSWORD", "")),
		DB:       utils.GetEnvIntOrDefault("REDIS_DB", 0),
	}
}

func (cc *CacheConfig) IsConfigured() bool {
	return cc.URL != "" || cc.Host != ""
}

func (cc *CacheConfig) redisConfig() (*pkgredis.Config, error) {
	if cc.URL == "" {
		return &pkgredis.Config{Host: cc.Host, Port: cc.Port, Password: cc.Password, DB: cc.DB}, nil
	}

	opts, err := redis.ParseURL(cc.URL)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid REDIS_URL: %w", err)
	}

	host, port, err := net.SplitHostPort(opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid REDIS_URL address %q: %w", opts.Addr, err)
	}

	return &pkgredis.Config{Host: host, Port: port, Password: opts.Password, DB: opts.DB}, nil
}

func (cc *CacheConfig) NewCache(logger *log.Logger) (Cache, error) {
	if !cc.IsConfigured() {
		return nil, ErrCacheNotConfigured
	}

	cfg, err := cc.redisConfig()
	if err != nil {
		return nil, err
	}

	cache, err := pkgredis.NewRedisCache(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("Cache (Redis) connected", "addr", cfg.Addr(), "db", cfg.DB)
	return cache, nil
}

// NewCacheOrNil returns nil when Redis is absent or unreachable; the count
// then comes straight from storage and rate limiting stays in memory.
func (cc *CacheConfig) NewCacheOrNil(logger *log.Logger) Cache {
	if !cc.IsConfigured() {
		logger.Info("Cache (Redis) is not configured; proceeding without external cache")
		return nil
	}

	cache, err := cc.NewCache(logger)
	if err != nil {
		logger.Error("Failed to create Cache (Redis)", "error", err)
		return nil
	}
	return cache
}

func CloseCache(cache Cache, logger *log.Logger) error {
	if cache == nil {
		return nil
	}

	if err := cache.Close(); err != nil {
		logger.Error("Failed to close cache", "error", err)
		return err
	}

	logger.Info("Cache connection closed")
	return nil
}
