package router

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/akeren/waitlist-foundry/pkg/ratelimit"
)

func NewRESTController(name, mountPoint string, prepare func(*RouterService, *RESTController)) *RESTController {
	return &RESTController{
		name:       name,
		mountPoint: strings.ReplaceAll("/"+mountPoint, "//", "/"),
		prepare:    prepare,
	}
}

// NewVersionedRESTController mounts under /<version>/<mountPoint>.
func NewVersionedRESTController(name, version, mountPoint string, prepare func(*RouterService, *RESTController)) *RESTController {
	return &RESTController{
		name:       name,
		mountPoint: strings.ReplaceAll("/"+version+"/"+mountPoint, "//", "/"),
		version:    version,
		prepare:    prepare,
	}
}

func normalizePath(controller *RESTController, relativePath string) string {
	path := "/" + controller.mountPoint + "/" + relativePath
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}

	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

func routeKey(method, path string) string {
	return method + " " + path
}

// AddGetHandler registers handler under the controller. A nil limiter means the
// router-wide limiter applies.
func (routerService *RouterService) AddGetHandler(controller *RESTController, limiter ratelimit.RateLimiter, path string, handler HandlerFunction, middlewares ...MiddlewareFunc) {
	routerService.addHandler(http.MethodGet, controller, limiter, path, handler, middlewares)
}

func (routerService *RouterService) AddPostHandler(controller *RESTController, limiter ratelimit.RateLimiter, path string, handler HandlerFunction, middlewares ...MiddlewareFunc) {
	routerService.addHandler(http.MethodPost, controller, limiter, path, handler, middlewares)
}

func (routerService *RouterService) AddDeleteHandler(controller *RESTController, limiter ratelimit.RateLimiter, path string, handler HandlerFunction, middlewares ...MiddlewareFunc) {
	routerService.addHandler(http.MethodDelete, controller, limiter, path, handler, middlewares)
}

func (routerService *RouterService) addHandler(
	method string,
	controller *RESTController,
	limiter ratelimit.RateLimiter,
	path string,
	handler HandlerFunction,
	middlewares []MiddlewareFunc,
) {
	fullPath := normalizePath(controller, path)
	key := routeKey(method, fullPath)

	if other, ok := routerService.routeOwners[key]; ok {
		panic(fmt.Sprintf("route %s is already registered by controller %q", key, other.name))
	}
	routerService.routeOwners[key] = controller

	if limiter != nil {
		routerService.routeLimiters[key] = limiter
	}

	controller.handlerCount++
	chain := append(append([]MiddlewareFunc{}, middlewares...), createHandler(handler))
	routerService.engine.Handle(method, fullPath, chain...)

	routerService.logger.Debug("Handler registered", "method", method, "path", fullPath, "controller", controller.name)
}

func createHandler(handler HandlerFunction) MiddlewareFunc {
	return func(c *RequestContext) {
		result := handler(c)

		switch {
		case result == nil:
			GetLogger(c).Error("Handler returned no result", "path", c.FullPath())
			c.JSON(http.StatusInternalServerError, InternalServerErrorResult("An unexpected error occurred").ToJSON())
		case result.IsRaw():
			if result.FileName != "" {
				c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
			}
			c.Data(result.StatusCode, result.ContentType, result.Body)
		default:
			c.JSON(result.StatusCode, result.ToJSON())
		}
	}
}
