package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/akeren/waitlist-foundry/config/router"
	"github.com/akeren/waitlist-foundry/internal/log"
	"github.com/akeren/waitlist-foundry/pkg/ratelimit"
	"golang.org/x/sync/errgroup"
)

const (
	healthCheckTimeout = 3 * time.Second
	requestsPerMinute  = 10
)

// Pinger is anything the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus reports 1 for a healthy dependency and 0 for a failing or
// unconfigured one.
type HealthStatus struct {
	Database     int `json:"database"`
	Cache        int `json:"cache"`
	MessageQueue int `json:"message_queue"`
	Uptime       int `json:"uptime"`
}

type MonitoringController struct {
	store     Pinger
	cache     Pinger
	queue     Pinger
	startTime time.Time
}

// NewMonitoringController mounts / and /health. cache and queue may be nil.
func NewMonitoringController(store Pinger, logger *log.Logger, cache Pinger, queue Pinger) *router.RESTController {
	ctrl := &MonitoringController{
		store:     store,
		cache:     cache,
		queue:     queue,
		startTime: time.Now(),
	}

	return router.NewRESTController(
		"MonitoringController",
		"/",
		func(rs *router.RouterService, controller *router.RESTController) {
			limiter := ratelimit.NewRateLimiter(&ratelimit.RateLimitConfig{
				Requests:  requestsPerMinute,
				Window:    time.Minute,
				Redis:     rs.RedisClient(),
				KeyPrefix: "ratelimit:monitoring:",
				Logger:    logger,
			})

			rs.AddGetHandler(controller, limiter, "", ctrl.root)
			rs.AddGetHandler(controller, limiter, "health", ctrl.health)
		},
	)
}

func (ctrl *MonitoringController) root(*router.RequestContext) *router.ServiceResult {
	return router.OKResult("Waitlist service is operational.", "Monitoring successful")
}

func (ctrl *MonitoringController) health(c *router.RequestContext) *router.ServiceResult {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := ctrl.check(ctx, router.GetLogger(c))
	return &router.ServiceResult{
		StatusCode: http.StatusOK,
		Data:       status,
		Message:    "waitlist-foundry health check completed",
	}
}

// check probes every dependency concurrently. A slow one costs at most
// healthCheckTimeout.
func (ctrl *MonitoringController) check(ctx context.Context, logger *log.Logger) HealthStatus {
	status := HealthStatus{Uptime: int(time.Since(ctrl.startTime).Seconds())}

	var g errgroup.Group
	g.Go(func() error { status.Database = probe(ctx, "database", ctrl.store, logger); return nil })
	g.Go(func() error { status.Cache = probe(ctx, "cache", ctrl.cache, logger); return nil })
	g.Go(func() error { status.MessageQueue = probe(ctx, "message_queue", ctrl.queue, logger); return nil })
	_ = g.Wait()

	return status
}

func probe(ctx context.Context, name string, target Pinger, logger *log.Logger) int {
	if target == nil {
		logger.Debug("Health probe skipped, dependency not configured", "dependency", name)
		return 0
	}

	if err := target.Ping(ctx); err != nil {
		logger.Error("Health probe failed", "dependency", name, "error", err)
		return 0
	}
	return 1
}
