package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/akeren/waitlist-foundry/internal/log"
	"github.com/akeren/waitlist-foundry/internal/models"
)

// CountCache is the slice of the application cache the count decorator needs.
type CountCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CachedStore serves Count from a short-lived cache entry and drops that
// entry whenever the row count may have changed. Cache failures fall through
// to the wrapped store.
type CachedStore struct {
	Store
	cache  CountCache
	key    string
	ttl    time.Duration
	logger *log.Logger
}

// WithCountCache wraps store; a nil cache returns store unchanged.
func WithCountCache(store Store, cache CountCache, key string, ttl time.Duration, logger *log.Logger) Store {
	if cache == nil {
		return store
	}
	return &CachedStore{Store: store, cache: cache, key: key, ttl: ttl, logger: logger}
}

func (s *CachedStore) Count(ctx context.Context) (int64, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	if raw, err := s.cache.Get(ctx, s.key); err != nil {
		logger.Warn("Count cache read failed", "error", err)
	} else if raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n, nil
		}
	}

	n, err := s.Store.Count(ctx)
	if err != nil {
		return 0, err
	}

	if err := s.cache.Set(ctx, s.key, strconv.FormatInt(n, 10), s.ttl); err != nil {
		logger.Warn("Count cache write failed", "error", err)
	}
	return n, nil
}

func (s *CachedStore) TryEnroll(ctx context.Context, entry *models.WaitlistEntry) (int64, error) {
	position, err := s.Store.TryEnroll(ctx, entry)
	if err == nil {
		s.invalidate(ctx)
	}
	return position, err
}

func (s *CachedStore) BulkImport(ctx context.Context, entries []models.WaitlistEntry) (ImportResult, error) {
	result, err := s.Store.BulkImport(ctx, entries)
	if result.Imported > 0 {
		s.invalidate(ctx)
	}
	return result, err
}

func (s *CachedStore) DeleteByID(ctx context.Context, id uint) error {
	err := s.Store.DeleteByID(ctx, id)
	if err == nil {
		s.invalidate(ctx)
	}
	return err
}

func (s *CachedStore) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, s.key); err != nil {
		log.GetLoggerInstanceFromContext(ctx, s.logger).Warn("Count cache invalidation failed", "error", err)
	}
}
