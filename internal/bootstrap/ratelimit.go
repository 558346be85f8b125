package bootstrap

import (
	"fmt"

	"github.com/agri-identity/agrigate/internal/config"
	"github.com/agri-identity/agrigate/internal/logger"
	"github.com/agri-identity/agrigate/internal/middleware"
	"github.com/agri-identity/agrigate/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// rateLimitMiddlewares holds rate limiting middlewares for different endpoints
type rateLimitMiddlewares struct {
	authorize gin.HandlerFunc
	grant     gin.HandlerFunc
}

// setupRateLimiting configures rate limiting middlewares based on configuration
func setupRateLimiting(
	cfg *config.Config,
	auditService *services.AuditService,
	redisClient *redis.Client,
) (rateLimitMiddlewares, error) {
	if !cfg.EnableRateLimit {
		noOp := func(c *gin.Context) { c.Next() }
		logger.L().Info("rate limiting disabled")
		return rateLimitMiddlewares{authorize: noOp, grant: noOp}, nil
	}
	return createRateLimiters(cfg, auditService, redisClient)
}

// createRateLimiters creates rate limiting middlewares for all endpoints
func createRateLimiters(
	cfg *config.Config,
	auditService *services.AuditService,
	redisClient *redis.Client,
) (rateLimitMiddlewares, error) {
	storeType := middleware.RateLimitStoreType(cfg.RateLimitStore)
	logger.L().Info("rate limiting enabled", zap.String("store", cfg.RateLimitStore))

	createLimiter := func(requestsPerMinute int, endpoint string) (gin.HandlerFunc, error) {
		limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMinute: requestsPerMinute,
			StoreType:         storeType,
			RedisClient:       redisClient, // nil for memory store
			CleanupInterval:   cfg.RateLimitCleanupInterval,
			Endpoint:          endpoint,
			AuditService:      auditService,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter for %s: %w", endpoint, err)
		}
		return limiter, nil
	}

	authorize, err := createLimiter(cfg.AuthorizeRateLimit, "/oauth/authorize")
	if err != nil {
		return rateLimitMiddlewares{}, err
	}
	grant, err := createLimiter(cfg.GrantRateLimit, "/oauth/grant")
	if err != nil {
		return rateLimitMiddlewares{}, err
	}
	return rateLimitMiddlewares{authorize: authorize, grant: grant}, nil
}
