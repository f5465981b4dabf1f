package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/akeren/waitlist-foundry/internal/log"
	"github.com/akeren/waitlist-foundry/pkg/ratelimit"
	"github.com/akeren/waitlist-foundry/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultPort           = "8080"
)

type Cache interface {
	Ping(ctx context.Context) error
}

// RedisClientProvider is implemented by caches that can hand out their client
// for the Redis-backed rate limiters.
type RedisClientProvider interface {
	GetClient() *redis.Client
}

type RouterService struct {
	engine          *gin.Engine
	server          *http.Server
	logger          *log.Logger
	rateLimiter     ratelimit.RateLimiter
	redisClient     *redis.Client
	requestTimeout  time.Duration
	corsOrigins     []string
	metricsRegistry *prometheus.Registry

	// Keyed by routeKey(method, path).
	routeOwners   map[string]*RESTController
	routeLimiters map[string]ratelimit.RateLimiter
}

type RouterConfig struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RequestTimeout    time.Duration
}

func CreateRouterService(logger *log.Logger, cache Cache, routerConfig *RouterConfig) *RouterService {
	if mode := utils.GetEnvTrimmed("GIN_MODE"); mode != "" {
		logger.Info("Setting Gin mode", "mode", mode)
		gin.SetMode(mode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	if utils.IsTracingEnabled() {
		engine.Use(otelgin.Middleware(utils.OTelServiceName()))
		logger.Info("Tracing middleware enabled")
	}

	// Gin trusts every proxy by default, which lets X-Forwarded-For spoof the
	// client IP the rate limiters key on.
	trustedProxies := parseTrustedProxies(utils.GetEnvTrimmed("TRUSTED_PROXIES"))
	if err := engine.SetTrustedProxies(trustedProxies); err != nil {
		logger.Error("Invalid TRUSTED_PROXIES; disabling trusted proxies", "error", err)
		_ = engine.SetTrustedProxies(nil)
	} else if trustedProxies == nil {
		logger.Info("Trusted proxies disabled (TRUSTED_PROXIES not set)")
	}

	requestTimeout := routerConfig.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	rs := &RouterService{
		engine:         engine,
		logger:         logger,
		redisClient:    connectRedis(cache, logger),
		requestTimeout: requestTimeout,
		corsOrigins:    corsOriginsFromEnv(),
		routeOwners:    make(map[string]*RESTController),
		routeLimiters:  make(map[string]ratelimit.RateLimiter),
	}

	rs.initRateLimiting(routerConfig.RateLimitRequests, routerConfig.RateLimitWindow)

	// Registered before the middleware below so scrapes skip rate limiting.
	rs.mountMetrics()

	engine.Use(
		rs.correlationIDMiddleware(),
		rs.requestLoggingMiddleware(),
		rs.securityHeadersMiddleware(),
		rs.maxBodySizeMiddleware(),
		rs.corsMiddleware(),
		rs.rateLimitMiddleware(),
		rs.timeoutMiddleware(),
	)

	engine.HandleMethodNotAllowed = true
	engine.RedirectTrailingSlash = true

	engine.NoRoute(func(c *gin.Context) {
		GetLogger(c).Warn("Route not found", "path", c.Request.URL.Path)
		c.JSON(http.StatusNotFound, ErrorResult(http.StatusNotFound, "Route not found", nil).ToJSON())
	})

	engine.NoMethod(func(c *gin.Context) {
		GetLogger(c).Warn("Method not allowed", "method", c.Request.Method, "path", c.Request.URL.Path)
		c.JSON(http.StatusMethodNotAllowed, ErrorResult(http.StatusMethodNotAllowed, "Method not allowed", nil).ToJSON())
	})

	// Handlers run on the serving goroutine; these server timeouts are what
	// bound a slow request.
	rs.server = &http.Server{
		Addr:              ":" + defaultPort,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       requestTimeout,
		WriteTimeout:      requestTimeout,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("Router service initialized", "request_timeout", requestTimeout.String())
	return rs
}

// connectRedis returns the cache's Redis client when it answers a ping.
func connectRedis(cache Cache, logger *log.Logger) *redis.Client {
	if cache == nil {
		return nil
	}

	provider, ok := cache.(RedisClientProvider)
	if !ok {
		return nil
	}

	client := provider.GetClient()
	if client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unreachable; rate limiting falls back to process memory", "error", err)
		return nil
	}
	return client
}

func parseTrustedProxies(v string) []string {
	if v == "*" {
		return []string{"0.0.0.0/0", "::/0"}
	}
	return utils.SplitList(v)
}

// RedisClient returns the shared Redis client, or nil when running without Redis.
func (routerService *RouterService) RedisClient() *redis.Client {
	return routerService.redisClient
}

// MetricsRegistry is where domain collectors register. It is nil when
// metrics are disabled.
func (routerService *RouterService) MetricsRegistry() prometheus.Registerer {
	if routerService.metricsRegistry == nil {
		return nil
	}
	return routerService.metricsRegistry
}

func (routerService *RouterService) GetEngine() *gin.Engine {
	return routerService.engine
}

func (routerService *RouterService) GetLogger(c *RequestContext) *log.Logger {
	return log.GetLoggerInstanceFromContext(c.Request.Context(), routerService.logger)
}

func (routerService *RouterService) MountController(controller *RESTController) {
	controller.prepare(routerService, controller)

	routerService.logger.Info("Controller mounted",
		"name", controller.name,
		"path", controller.mountPoint,
		"version", controller.version,
		"handlers", controller.handlerCount,
	)
}

func (routerService *RouterService) RunHTTPServer() error {
	routerService.server.Addr = ":" + utils.GetEnvTrimmedOrDefault("APP_PORT", defaultPort)

	routerService.logger.Info("Starting HTTP server", "addr", routerService.server.Addr)

	if err := routerService.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		routerService.logger.Error("HTTP server stopped", "error", err)
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

func (routerService *RouterService) Shutdown(ctx context.Context) error {
	routerService.logger.Info("Shutting down HTTP server gracefully...")
	return routerService.server.Shutdown(ctx)
}

func (routerService *RouterService) Cleanup() {
	closed := map[ratelimit.RateLimiter]bool{}

	for _, limiter := range append([]ratelimit.RateLimiter{routerService.rateLimiter}, routeLimiterValues(routerService.routeLimiters)...) {
		if limiter == nil || closed[limiter] {
			continue
		}
		closed[limiter] = true

		if err := limiter.Close(); err != nil {
			routerService.logger.Error("Failed to close rate limiter", "error", err)
		}
	}

	routerService.logger.Info("Router service cleanup completed")
}

func routeLimiterValues(m map[string]ratelimit.RateLimiter) []ratelimit.RateLimiter {
	out := make([]ratelimit.RateLimiter, 0, len(m))
	for _, l := range m {
		out = append(out, l)
	}
	return out
}
