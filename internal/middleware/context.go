package middleware

import (
	"time"

	"github.com/agri-identity/agrigate/internal/logger"
	"github.com/agri-identity/agrigate/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const headerRequestID = "X-Request-ID"

// RequestContext copies the caller's IP, user agent and route onto the
// request context so services can attribute audit events, and attaches a
// request-scoped logger.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(headerRequestID)
		if reqID == "" || len(reqID) > 64 {
			reqID = uuid.NewString()
		}
		c.Header(headerRequestID, reqID)

		ctx := c.Request.Context()
		ctx = util.SetIPContext(ctx, c.ClientIP())
		ctx = util.SetUserAgentContext(ctx, c.Request.UserAgent())
		ctx = util.SetRequestInfoContext(ctx, c.Request.Method, c.Request.URL.Path)
		ctx = logger.ToContext(ctx, logger.L().With(zap.String("request_id", reqID)))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequestLogger writes one line per request through zap.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []zap.Field{
			logger.Method(c.Request.Method),
			logger.Path(path),
			logger.Status(c.Writer.Status()),
			logger.Duration(time.Since(start)),
			logger.ClientIP(c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		log := logger.From(c.Request.Context())
		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}
