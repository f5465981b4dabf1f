package constants

import "time"

// RFC3339DateTimeFormat is used for every timestamp that leaves the process.
const RFC3339DateTimeFormat = "2006-01-02T15:04:05Z07:00"

// Global per-IP limit applied to every route without its own limiter.
const (
	DefaultRateLimitRequests      = 100
	DefaultRateLimitWindowMinutes = 1
)

func DefaultRateLimitWindow() time.Duration {
	return time.Duration(DefaultRateLimitWindowMinutes) * time.Minute
}

// Pagination defaults for admin listings.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// WaitlistCountCacheKey holds the cached public counter.
const WaitlistCountCacheKey = "waitlist:count"

// WaitlistCountCacheTTL matches how often the landing page polls the counter.
const WaitlistCountCacheTTL = 5 * time.Second
