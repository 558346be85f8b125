package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// MetricsAuthMiddleware protects /metrics with a static bearer token. An
// empty token leaves the endpoint open.
func MetricsAuthMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		provided, ok := BearerToken(c)
		if !ok {
			rejectMetrics(c, "Bearer token required")
			return
		}

		// Constant-time comparison to prevent timing attacks
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			rejectMetrics(c, "Invalid token")
			return
		}

		c.Next()
	}
}

func rejectMetrics(c *gin.Context, description string) {
	c.Header("WWW-Authenticate", `Bearer realm="Metrics"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":             "unauthorized",
		"error_description": description,
	})
}
