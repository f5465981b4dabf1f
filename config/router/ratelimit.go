package router

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/akeren/waitlist-foundry/pkg/ratelimit"
	"github.com/gin-gonic/gin"
)

func (routerService *RouterService) initRateLimiting(requests int, window time.Duration) {
	routerService.rateLimiter = ratelimit.NewRateLimiter(&ratelimit.RateLimitConfig{
		Requests: requests,
		Window:   window,
		Redis:    routerService.redisClient,
		Logger:   routerService.logger,
	})

	backend := "memory"
	if routerService.redisClient != nil {
		backend = "redis"
	}
	routerService.logger.Info("Rate limiting initialized", "backend", backend, "requests", requests, "window", window.String())
}

// limiterFor picks the handler's own limiter, else the router-wide one. ok is
// false for paths no controller registered.
func (routerService *RouterService) limiterFor(method, route string) (limiter ratelimit.RateLimiter, ok bool) {
	key := routeKey(method, route)
	if _, registered := routerService.routeOwners[key]; !registered {
		return nil, false
	}
	if limiter, found := routerService.routeLimiters[key]; found {
		return limiter, true
	}
	return routerService.rateLimiter, true
}

func (routerService *RouterService) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		limiter, ok := routerService.limiterFor(c.Request.Method, c.FullPath())
		if !ok {
			GetLogger(c).Warn("No controller owns the requested route", "method", c.Request.Method, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusNotFound, NotFoundResult(fmt.Sprintf("There is no handler configured to handle any resource at the path %s", c.Request.URL.Path)).ToJSON())
			return
		}

		limit, window := limiter.GetLimitDetails()
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Window", window.String())

		// Each limiter namespaces the IP with its own key prefix.
		limited, err := limiter.IsLimited(clientIP)
		if err != nil {
			// Fail open.
			GetLogger(c).Error("Rate limiter error", "error", err, "client_ip", clientIP)
			c.Next()
			return
		}

		if limited {
			retryAfter := int(math.Max(1, math.Ceil(window.Seconds())))
			GetLogger(c).Warn("Rate limit exceeded", "client_ip", clientIP, "route", c.FullPath())

			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, TooManyRequestsResult(RateLimitResponse{
				Limit:      limit,
				Window:     window.String(),
				RetryAfter: strconv.Itoa(retryAfter),
			}).ToJSON())
			return
		}

		c.Next()
	}
}
