package bootstrap

import (
	"context"
	"net/http"
	"time"

	"github.com/agri-identity/agrigate/internal/config"
	"github.com/agri-identity/agrigate/internal/logger"
	"github.com/agri-identity/agrigate/internal/metrics"
	"github.com/agri-identity/agrigate/internal/middleware"
	"github.com/agri-identity/agrigate/internal/services"
	"github.com/agri-identity/agrigate/internal/store"
	"github.com/agri-identity/agrigate/internal/token"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(
	cfg *config.Config,
	db *store.Store,
	registry *services.RegistryService,
	h handlerSet,
	prometheusMetrics metrics.Recorder,
	auditService *services.AuditService,
	rateLimitRedisClient *redis.Client,
) (*gin.Engine, error) {
	setupGinMode(cfg)
	r := gin.New()

	// Setup middleware
	r.Use(metrics.HTTPMetricsMiddleware(prometheusMetrics))
	r.Use(middleware.RequestContext(), middleware.RequestLogger(), gin.Recovery())
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(corsMiddleware(cfg))
	}

	// Health check endpoint
	r.GET("/health", createHealthCheckHandler(db, registry))

	// Setup metrics endpoint
	setupMetricsEndpoint(r, cfg)

	// Setup rate limiting
	rateLimiters, err := setupRateLimiting(cfg, auditService, rateLimitRedisClient)
	if err != nil {
		return nil, err
	}

	// Setup all routes
	setupAllRoutes(r, cfg, h, rateLimiters)

	logServerStartup(cfg)
	return r, nil
}

// corsMiddleware allows the farmer portal SPA to call the API.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config) {
	switch {
	case !cfg.MetricsEnabled:
		logger.L().Info("Prometheus metrics disabled")
	case cfg.MetricsToken != "":
		logger.L().Info("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		logger.L().Info("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// setupAllRoutes configures all application routes
func setupAllRoutes(
	r *gin.Engine,
	cfg *config.Config,
	h handlerSet,
	rateLimiters rateLimitMiddlewares,
) {
	// Public routes
	r.GET("/services", h.service.List)

	// Resource server routes (authenticated by the token itself or by
	// client credentials)
	resource := r.Group("/oauth")
	{
		resource.GET("/tokeninfo", h.token.TokenInfo)
		resource.POST("/introspect", h.token.Introspect)
	}

	// Portal routes (require a portal login credential). Limiters run
	// ahead of the credential check.
	requireBearer := middleware.RequireBearer(token.NewCodec(cfg.SessionJWTSecret))
	portal := r.Group("/oauth")
	{
		portal.POST("/authorize", rateLimiters.authorize, requireBearer, h.authorization.Authorize)
		portal.POST("/grant", rateLimiters.grant, requireBearer, h.authorization.Grant)
		portal.POST("/cancel", requireBearer, h.authorization.Cancel)
		portal.POST("/revoke", requireBearer, h.authorization.Revoke)
		portal.GET("/active", requireBearer, h.authorization.ListActive)
		portal.GET("/logs", requireBearer, h.audit.ListLogs)
	}
}

// createHealthCheckHandler reports database and registry cache health.
func createHealthCheckHandler(db *store.Store, registry *services.RegistryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		body := gin.H{
			"status":   "healthy",
			"database": "connected",
			"cache":    "connected",
		}
		if err := db.Health(ctx); err != nil {
			logger.From(ctx).Warn("database health check failed", logger.Err(err))
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["database"] = "disconnected"
		}
		if err := registry.CacheHealth(ctx); err != nil {
			logger.From(ctx).Warn("registry cache health check failed", logger.Err(err))
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["cache"] = "disconnected"
		}
		c.JSON(status, body)
	}
}

// setupGinMode sets Gin mode based on environment configuration
func setupGinMode(cfg *config.Config) {
	mode := ginModeMap[cfg.IsProduction]
	gin.SetMode(mode)
	logger.L().Info("gin mode", zap.String("mode", mode))
}

var ginModeMap = map[bool]string{
	true:  gin.ReleaseMode,
	false: gin.DebugMode,
}

// logServerStartup logs server startup information
func logServerStartup(cfg *config.Config) {
	logger.L().Info("consent server starting",
		zap.String("addr", cfg.ServerAddr),
		zap.String("base_url", cfg.BaseURL),
		zap.Strings("mandatory_scopes", cfg.MandatoryScopes),
		zap.Duration("auth_request_ttl", cfg.AuthRequestExpiration),
		zap.Duration("access_token_ttl", cfg.AccessTokenExpiration),
	)
}
