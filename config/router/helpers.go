package router

import (
	"net/http"
	"strconv"

	"github.com/akeren/waitlist-foundry/internal/log"
)

// GetLogger returns the request-scoped logger injected by the router.
func GetLogger(ctx *RequestContext) *log.Logger {
	return log.GetLoggerInstanceFromContext(ctx.Request.Context(), nil)
}

func OKResult(data any, message string) *ServiceResult {
	return &ServiceResult{StatusCode: http.StatusOK, Data: data, Message: message}
}

func CreatedResult(data any, resourceName string) *ServiceResult {
	return &ServiceResult{StatusCode: http.StatusCreated, Data: data, Message: resourceName + " created successfully"}
}

func TooManyRequestsResult(data RateLimitResponse) *ServiceResult {
	return &ServiceResult{StatusCode: http.StatusTooManyRequests, Data: data, Message: "Too Many Requests"}
}

func BadRequestResult(message string, payload any) *ServiceResult {
	return &ServiceResult{StatusCode: http.StatusBadRequest, Data: payload, Message: message}
}

func UnauthorizedResult(message string) *ServiceResult {
	return &ServiceResult{StatusCode: http.StatusUnauthorized, Message: message}
}

func NotFoundResult(message string) *ServiceResult {
	return &ServiceResult{StatusCode: http.StatusNotFound, Message: message}
}

func InternalServerErrorResult(message string) *ServiceResult {
	return &ServiceResult{StatusCode: http.StatusInternalServerError, Message: message}
}

// FileResult sends body as a download named fileName.
func FileResult(body []byte, contentType, fileName string) *ServiceResult {
	return &ServiceResult{
		StatusCode:  http.StatusOK,
		Body:        body,
		ContentType: contentType,
		FileName:    fileName,
	}
}

func ErrorResult(statusCode int, message string, data any) *ServiceResult {
	return &ServiceResult{StatusCode: statusCode, Data: data, Message: message}
}

// ParseIDParam reads a positive entry id from the route.
func ParseIDParam(ctx *RequestContext, paramName string) (uint, *ServiceResult) {
	raw := ctx.Param(paramName)

	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		GetLogger(ctx).Warn("Invalid ID parameter", "param", paramName, "value", raw, "error", err)
		return 0, BadRequestResult("Invalid ID parameter", nil)
	}

	return uint(id), nil
}
