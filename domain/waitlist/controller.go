package waitlist

import (
	"time"

	"github.com/akeren/waitlist-foundry/config/router"
	"github.com/akeren/waitlist-foundry/internal/log"
	"github.com/akeren/waitlist-foundry/internal/notify"
	"github.com/akeren/waitlist-foundry/internal/storage"
	apperrors "github.com/akeren/waitlist-foundry/pkg/errors"
	"github.com/akeren/waitlist-foundry/pkg/ratelimit"
	"github.com/akeren/waitlist-foundry/pkg/utils"
)

const joinLimiterKeyPrefix = "ratelimit:join:"

func NewWaitlistController(
	store storage.Store,
	notifier notify.Notifier,
	logger *log.Logger,
) *router.RESTController {

	return router.NewVersionedRESTController(
		"WaitlistController",
		"v1",
		"/waitlist",
		func(rs *router.RouterService, c *router.RESTController) {
			service := NewWaitlistService(logger, store, notifier, NewMetrics(rs.MetricsRegistry()))

			joinLimiter := createJoinRateLimiter(rs, logger)

			rs.AddPostHandler(c, joinLimiter, "/join", joinWaitlistHandler(service))
			rs.AddGetHandler(c, nil, "/count", getWaitlistCountHandler(service))
		},
	)
}

// createJoinRateLimiter is stricter than the global limiter and keyed
// separately from it.
func createJoinRateLimiter(rs *router.RouterService, logger *log.Logger) ratelimit.RateLimiter {
	requests := utils.GetEnvIntOrDefault("JOIN_RATE_LIMIT_REQUESTS", 10)
	window := utils.GetEnvDurationOrDefault("JOIN_RATE_LIMIT_WINDOW", time.Minute)

	return ratelimit.NewRateLimiter(&ratelimit.RateLimitConfig{
		Requests:  requests,
		Window:    window,
		Redis:     rs.RedisClient(),
		KeyPrefix: joinLimiterKeyPrefix,
		Logger:    logger,
	})
}

func joinWaitlistHandler(service WaitlistService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		var req JoinWaitlistRequest
		if err := ctx.ShouldBindJSON(&req); err != nil {
			router.GetLogger(ctx).Warn("Rejected join payload", "error", err)

			if fields := apperrors.FormatValidationErrors(err, &req); len(fields) > 0 {
				return router.BadRequestResult("Invalid request payload", fields)
			}
			return router.BadRequestResult("Invalid request body", nil)
		}

		response, err := service.Join(ctx.Request.Context(), &req)
		if err != nil {
			return errorResult(err)
		}
		return router.CreatedResult(response, "Waitlist entry")
	}
}

func getWaitlistCountHandler(service WaitlistService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		response, err := service.Count(ctx.Request.Context())
		if err != nil {
			return errorResult(err)
		}
		return router.OKResult(response, "Waitlist count retrieved successfully")
	}
}

// errorResult keeps internal error text out of the response.
func errorResult(err error) *router.ServiceResult {
	return router.ErrorResult(apperrors.HTTPStatusCode(err), apperrors.GetHumanReadableMessage(err), apperrors.GetDetails(err))
}
