package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/agri-identity/agrigate/internal/logger"
	"github.com/agri-identity/agrigate/internal/models"
	"github.com/agri-identity/agrigate/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterRedis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// RateLimitStoreType defines the type of rate limit store
type RateLimitStoreType string

const (
	// RateLimitStoreMemory uses in-memory storage (single instance only)
	RateLimitStoreMemory RateLimitStoreType = "memory"
	// RateLimitStoreRedis uses Redis storage (distributed, multi-pod support)
	RateLimitStoreRedis RateLimitStoreType = "redis"
)

// RateLimitConfig holds the configuration for one rate limited route.
type RateLimitConfig struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration // memory and redis store sweep interval
	StoreType         RateLimitStoreType

	// RedisClient is required when StoreType is RateLimitStoreRedis. The
	// caller owns it and closes it on shutdown.
	RedisClient *redis.Client

	// Endpoint labels audit events and log lines.
	Endpoint string

	// AuditService, when set, records every rejected request.
	AuditService *services.AuditService
}

// NewRateLimiter creates a per-IP rate limiter on the configured store.
func NewRateLimiter(config RateLimitConfig) (gin.HandlerFunc, error) {
	if config.RequestsPerMinute <= 0 {
		return nil, errors.New("rate limit must be positive")
	}

	rate := limiter.Rate{
		Period: time.Minute,
		Limit:  int64(config.RequestsPerMinute),
	}

	var store limiter.Store
	switch config.StoreType {
	case RateLimitStoreRedis:
		if config.RedisClient == nil {
			return nil, errors.New("redis rate limit store requires a redis client")
		}
		var err error
		store, err = limiterRedis.NewStoreWithOptions(config.RedisClient, limiter.StoreOptions{
			Prefix:          "agrigate:ratelimit",
			CleanUpInterval: config.CleanupInterval,
		})
		if err != nil {
			return nil, err
		}
	default:
		store = memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          "agrigate:ratelimit",
			CleanUpInterval: cleanupInterval(config.CleanupInterval),
		})
	}

	instance := limiter.New(store, rate)

	return mgin.NewMiddleware(instance,
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			logger.From(c.Request.Context()).Warn("rate limit exceeded",
				zap.String("endpoint", config.Endpoint),
				logger.ClientIP(c.ClientIP()),
			)
			if config.AuditService != nil {
				config.AuditService.Log(c.Request.Context(), services.AuditLogEntry{
					EventType: models.EventRateLimitExceeded,
					Severity:  models.SeverityWarning,
					SubjectID: SubjectID(c),
					ActorIP:   c.ClientIP(),
					Action:    "rate limit exceeded",
					Details: models.AuditDetails{
						"endpoint": config.Endpoint,
						"limit":    config.RequestsPerMinute,
					},
					Success: false,
				})
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":             "rate_limit_exceeded",
				"error_description": "Too many requests. Please try again later.",
			})
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			// Fail open: a broken limiter store must not take the portal down.
			logger.From(c.Request.Context()).Error("rate limiter store failure",
				zap.String("endpoint", config.Endpoint),
				logger.Err(err),
			)
			c.Next()
		}),
	), nil
}

// NewMemoryRateLimiter creates an in-memory rate limiter (single instance)
func NewMemoryRateLimiter(requestsPerMinute int) (gin.HandlerFunc, error) {
	return NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: requestsPerMinute,
		StoreType:         RateLimitStoreMemory,
	})
}

func cleanupInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return 5 * time.Minute
	}
	return d
}
