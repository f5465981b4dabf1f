package admin

import (
	"crypto/subtle"
	"net/http"

	"github.com/akeren/waitlist-foundry/config/router"
	"github.com/gin-gonic/gin"
)

const (
	SecretHeader     = "X-Admin-Secret"
	SecretQueryParam = "secret"
)

// RequireSecret rejects requests whose header or query secret does not match
// secret. An empty secret locks the admin surface entirely.
func RequireSecret(secret string) router.MiddlewareFunc {
	expected := []byte(secret)

	return func(c *gin.Context) {
		provided := c.GetHeader(SecretHeader)
		if provided == "" {
			provided = c.Query(SecretQueryParam)
		}

		if len(expected) == 0 || subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			router.GetLogger(c).Warn("Rejected admin request", "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, router.UnauthorizedResult("Unauthorized").ToJSON())
			return
		}

		c.Next()
	}
}
