package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const sweepEvery = 1024

// InMemoryRateLimiter keeps one token bucket per key. Buckets refill at
// requests/window and hold at most requests tokens.
type InMemoryRateLimiter struct {
	requests int
	window   time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	calls   uint64
}

type bucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

func NewInMemoryRateLimiter(requests int, window time.Duration) *InMemoryRateLimiter {
	return &InMemoryRateLimiter{
		requests: requests,
		window:   window,
		buckets:  make(map[string]*bucket),
	}
}

func (l *InMemoryRateLimiter) GetLimitDetails() (int, time.Duration) {
	return l.requests, l.window
}

func (l *InMemoryRateLimiter) IsLimited(key string) (bool, error) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: rate.NewLimiter(rate.Every(l.window/time.Duration(max(l.requests, 1))), l.requests)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweep(now.Add(-2 * l.window))
	}

	return !b.tokens.AllowN(now, 1), nil
}

// sweep drops buckets idle since before cutoff. Callers hold l.mu.
func (l *InMemoryRateLimiter) sweep(cutoff time.Time) {
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

func (l *InMemoryRateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *InMemoryRateLimiter) Close() error { return nil }
