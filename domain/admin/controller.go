package admin

import (
	"errors"
	"mime"
	"strconv"

	"github.com/akeren/waitlist-foundry/config/router"
	"github.com/akeren/waitlist-foundry/internal/log"
	"github.com/akeren/waitlist-foundry/internal/storage"
	"github.com/akeren/waitlist-foundry/internal/transfer"
	apperrors "github.com/akeren/waitlist-foundry/pkg/errors"
)

func NewAdminController(
	store storage.Store,
	secret string,
	logger *log.Logger,
) *router.RESTController {

	return router.NewVersionedRESTController(
		"AdminController",
		"v1",
		"/admin",
		func(rs *router.RouterService, c *router.RESTController) {
			service := NewAdminService(logger, store)
			auth := RequireSecret(secret)

			if secret == "" {
				logger.Warn("ADMIN_SECRET is not set; admin endpoints will reject every request")
			}

			rs.AddGetHandler(c, nil, "/stats", getStatsHandler(service), auth)
			rs.AddGetHandler(c, nil, "/users", listUsersHandler(service), auth)
			rs.AddDeleteHandler(c, nil, "/users/:id", deleteUserHandler(service), auth)
			rs.AddGetHandler(c, nil, "/export/csv", exportCSVHandler(service), auth)
			rs.AddPostHandler(c, nil, "/import", importHandler(service), auth)
		},
	)
}

func errorResult(err error) *router.ServiceResult {
	return router.ErrorResult(
		apperrors.HTTPStatusCode(err),
		apperrors.GetHumanReadableMessage(err),
		nil,
	)
}

func getStatsHandler(service AdminService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		stats, err := service.Stats(ctx.Request.Context())
		if err != nil {
			return errorResult(err)
		}

		return router.OKResult(stats, "Waitlist stats retrieved successfully")
	}
}

func listUsersHandler(service AdminService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(ctx.Query("limit"))

		users, err := service.ListUsers(ctx.Request.Context(), ctx.Query("search"), page, limit)
		if err != nil {
			return errorResult(err)
		}

		return router.OKResult(users, "Waitlist entries retrieved successfully")
	}
}

func deleteUserHandler(service AdminService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		id, errResult := router.ParseIDParam(ctx, "id")
		if errResult != nil {
			return errResult
		}

		if err := service.DeleteUser(ctx.Request.Context(), id); err != nil {
			return errorResult(err)
		}

		return router.OKResult(nil, "Waitlist entry deleted successfully")
	}
}

func exportCSVHandler(service AdminService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		file, err := service.ExportCSV(ctx.Request.Context())
		if err != nil {
			return errorResult(err)
		}

		router.GetLogger(ctx).Info("Waitlist exported", "rows", file.Rows)
		return router.FileResult(file.Body, "text/csv; charset=utf-8", file.FileName)
	}
}

func importHandler(service AdminService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		logger := router.GetLogger(ctx)

		var (
			rows []transfer.Row
			err  error
		)

		mediaType, _, _ := mime.ParseMediaType(ctx.GetHeader("Content-Type"))
		switch mediaType {
		case "text/csv", "application/csv":
			rows, err = transfer.ReadCSV(ctx.Request.Body)
		default:
			rows, err = transfer.DecodeJSON(ctx.Request.Body)
		}

		if err != nil {
			logger.Error("Failed to decode import body", "content_type", mediaType, "error", err)
			if errors.Is(err, transfer.ErrEmptyFile) || errors.Is(err, transfer.ErrMissingColumn) {
				return router.BadRequestResult(err.Error(), nil)
			}
			return router.BadRequestResult("Invalid import payload", nil)
		}

		result, err := service.Import(ctx.Request.Context(), rows)
		if err != nil {
			return errorResult(err)
		}

		return router.OKResult(result, "Waitlist import completed")
	}
}
