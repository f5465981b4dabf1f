package config

import (
	"testing"

	"github.com/akeren/waitlist-foundry/internal/log"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheConfig_FromURL(t *testing.T) {
	cc := &CacheConfig{URL: "redis://:pw@cache.internal:6380/2"}

	cfg, err := cc.redisConfig()

	require.NoError(t, err)
	assert.Equal(t, "cache.internal", cfg.Host)
	assert.Equal(t, "6380", cfg.Port)
	assert.Equal(t, "pw", cfg.Password)
	assert.Equal(t, 2, cfg.DB)
}

func TestCacheConfig_InvalidURL(t *testing.T) {
	_, err := (&CacheConfig{URL: "http://cache.internal"}).redisConfig()
	assert.Error(t, err)
}

func TestNewCacheOrNil(t *testing.T) {
	logger := log.NewLoggerWithJSONOutput()

	assert.Nil(t, (&CacheConfig{}).NewCacheOrNil(logger))

	mr := miniredis.RunT(t)
	cache := (&CacheConfig{URL: "redis://" + mr.Addr() + "/0"}).NewCacheOrNil(logger)
	require.NotNil(t, cache)
	t.Cleanup(func() { _ = CloseCache(cache, logger) })

	_, err := (&CacheConfig{}).NewCache(logger)
	assert.ErrorIs(t, err, ErrCacheNotConfigured)
}
