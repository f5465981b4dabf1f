package router

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/akeren/waitlist-foundry/internal/log"
	"github.com/akeren/waitlist-foundry/pkg/utils"
	"github.com/gin-gonic/gin"
)

const (
	correlationHeader = "X-Correlation-ID"
	maxCorrelationLen = 128

	// CSV imports through /v1/admin/import are the largest bodies we accept.
	defaultMaxBodyBytes = int64(5 << 20)
)

var (
	corsAllowHeaders  = "Content-Type, Content-Length, Accept, Accept-Encoding, Authorization, Cache-Control, X-Requested-With, X-Admin-Secret, " + correlationHeader
	corsExposeHeaders = "Content-Disposition, Retry-After, X-RateLimit-Limit, X-RateLimit-Window, " + correlationHeader
	corsAllowMethods  = "GET, POST, DELETE, OPTIONS"
)

// correlationIDMiddleware reuses a sane inbound X-Correlation-ID, echoes it
// back, and stores the correlated logger on the request context.
func (routerService *RouterService) correlationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(correlationHeader))
		if id == "" || len(id) > maxCorrelationLen {
			id = log.GenerateCorrelationID()
		}

		ctx := log.ContextWithCorrelationID(c.Request.Context(), id)
		ctx = log.ContextWithLogger(ctx, routerService.logger.WithCorrelationID(ctx))
		c.Request = c.Request.WithContext(ctx)

		c.Header(correlationHeader, id)
		c.Next()
	}
}

func (routerService *RouterService) requestLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger := GetLogger(c)
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"remote_addr", c.ClientIP(),
		}

		// Health probes arrive every few seconds; keep them out of info logs.
		if c.FullPath() == "/health" || c.FullPath() == "/" {
			logger.Debug("HTTP request", attrs...)
			return
		}
		logger.Info("HTTP request", attrs...)
	}
}

func (routerService *RouterService) securityHeadersMiddleware() gin.HandlerFunc {
	hstsEnabled := utils.GetEnvBoolOrDefault("HSTS_ENABLED", isProductionEnv())
	hstsValue := buildHSTSValue()

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if hstsEnabled && isHTTPS(c) {
			h.Set("Strict-Transport-Security", hstsValue)
		}
		c.Next()
	}
}

func isProductionEnv() bool {
	env := strings.ToLower(utils.GetEnvTrimmed("APP_ENV"))
	return env == "production" || env == "prod"
}

// isHTTPS also trusts X-Forwarded-Proto for TLS terminated at a proxy.
func isHTTPS(c *gin.Context) bool {
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(c.GetHeader("X-Forwarded-Proto")), "https")
}

func buildHSTSValue() string {
	value := fmt.Sprintf("max-age=%d", utils.GetEnvInt64OrDefault("HSTS_MAX_AGE", 31536000))
	if utils.GetEnvBoolOrDefault("HSTS_INCLUDE_SUBDOMAINS", true) {
		value += "; includeSubDomains"
	}
	return value
}

func (routerService *RouterService) maxBodySizeMiddleware() gin.HandlerFunc {
	maxBytes := utils.GetEnvInt64OrDefault("MAX_REQUEST_BODY_BYTES", defaultMaxBodyBytes)

	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResult(
				http.StatusRequestEntityTooLarge,
				"Request payload too large",
				nil,
			).ToJSON())
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// corsOriginsFromEnv reads CORS_ALLOWED_ORIGINS, falling back to the singular
// CORS_ALLOWED_ORIGIN older deployments set.
func corsOriginsFromEnv() []string {
	if origins := utils.GetEnvList("CORS_ALLOWED_ORIGINS"); origins != nil {
		return origins
	}
	return utils.GetEnvList("CORS_ALLOWED_ORIGIN")
}

func (routerService *RouterService) originAllowed(origin string) bool {
	for _, allowed := range routerService.corsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// corsMiddleware lets the landing page and admin dashboard call the API from
// their own origins. Requests without an Origin header pass through untouched.
func (routerService *RouterService) corsMiddleware() gin.HandlerFunc {
	if len(routerService.corsOrigins) == 0 {
		routerService.logger.Warn("CORS_ALLOWED_ORIGINS not set; cross-origin browser requests will be refused")
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		if !routerService.originAllowed(origin) {
			GetLogger(c).Warn("CORS origin not allowed", "origin", origin)
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
		h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
		h.Set("Access-Control-Allow-Methods", corsAllowMethods)
		h.Add("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// timeoutMiddleware bounds the request context. Handlers stay on the serving
// goroutine since gin.Context is not safe for concurrent use.
func (routerService *RouterService) timeoutMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), routerService.requestTimeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if ctx.Err() == context.DeadlineExceeded && !c.Writer.Written() {
			GetLogger(c).Warn("Request timeout detected", "timeout", routerService.requestTimeout.String())
			c.AbortWithStatusJSON(http.StatusRequestTimeout, ErrorResult(
				http.StatusRequestTimeout,
				"Request timeout",
				nil,
			).ToJSON())
		}
	}
}
