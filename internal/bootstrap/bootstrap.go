package bootstrap

import (
	"context"
	"net/http"

	"github.com/agri-identity/agrigate/internal/cache"
	"github.com/agri-identity/agrigate/internal/config"
	"github.com/agri-identity/agrigate/internal/metrics"
	"github.com/agri-identity/agrigate/internal/models"
	"github.com/agri-identity/agrigate/internal/services"
	"github.com/agri-identity/agrigate/internal/store"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config

	// Core infrastructure
	DB                   *store.Store
	MetricsRecorder      metrics.Recorder
	MetricsCache         cache.Cache[int64]
	MetricsCacheCloser   func() error
	RegistryCache        cache.Cache[models.Service]
	RateLimitRedisClient *redis.Client

	// Services
	AuditService         *services.AuditService
	RegistryService      *services.RegistryService
	TokenService         *services.TokenService
	AuthorizationService *services.AuthorizationService

	// HTTP
	HandlerSet handlerSet
	Router     *gin.Engine
	Server     *http.Server
}

// Run initializes and starts the application. It returns once the
// graceful manager has finished every shutdown job.
func Run(ctx context.Context, cfg *config.Config) error {
	app := &Application{Config: cfg}

	// Phase 1: Validate configuration
	if err := validateAllConfiguration(cfg); err != nil {
		return err
	}

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(ctx); err != nil {
		return err
	}

	// Phase 3: Initialize business layer
	if err := app.initializeBusinessLayer(ctx); err != nil {
		return err
	}

	// Phase 4: Initialize HTTP layer
	if err := app.initializeHTTPLayer(); err != nil {
		return err
	}

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown()

	return nil
}

// initializeInfrastructure sets up database, metrics, caches, and Redis
func (app *Application) initializeInfrastructure(ctx context.Context) error {
	var err error

	// Database
	app.DB, err = initializeDatabase(ctx, app.Config)
	if err != nil {
		return err
	}

	// Metrics
	app.MetricsRecorder = initializeMetrics(app.Config)
	app.MetricsCache, app.MetricsCacheCloser, err = initializeMetricsCache(ctx, app.Config)
	if err != nil {
		return err
	}

	// Service registry cache
	app.RegistryCache, err = initializeRegistryCache(ctx, app.Config)
	if err != nil {
		return err
	}

	// Redis (for rate limiting)
	app.RateLimitRedisClient, err = initializeRateLimitRedisClient(ctx, app.Config)
	if err != nil {
		return err
	}

	return nil
}

// initializeBusinessLayer sets up services and seeds the registry
func (app *Application) initializeBusinessLayer(ctx context.Context) error {
	// Audit service (required by other services)
	app.AuditService = services.NewAuditService(
		app.DB,
		app.Config.EnableAuditLogging,
		app.Config.AuditLogBufferSize,
	)

	app.RegistryService,
		app.TokenService,
		app.AuthorizationService = initializeServices(
		app.Config,
		app.DB,
		app.RegistryCache,
		app.AuditService,
		app.MetricsRecorder,
	)

	return seedRegistry(ctx, app.Config, app.RegistryService)
}

// initializeHTTPLayer sets up handlers, router, and server
func (app *Application) initializeHTTPLayer() error {
	app.HandlerSet = initializeHandlers(
		app.RegistryService,
		app.TokenService,
		app.AuthorizationService,
		app.AuditService,
	)

	var err error
	app.Router, err = setupRouter(
		app.Config,
		app.DB,
		app.RegistryService,
		app.HandlerSet,
		app.MetricsRecorder,
		app.AuditService,
		app.RateLimitRedisClient,
	)
	if err != nil {
		return err
	}

	app.Server = createHTTPServer(app.Config, app.Router)
	return nil
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	// Add jobs
	addServerRunningJob(m, app.Server)
	addServerShutdownJob(m, app.Config, app.Server)
	addRedisClientShutdownJob(m, app.RateLimitRedisClient)
	addAuditServiceShutdownJob(m, app.Config, app.AuditService)
	addAuditLogCleanupJob(m, app.Config, app.AuditService)
	addAuthRequestCleanupJob(m, app.Config, app.AuthorizationService)
	addMetricsGaugeUpdateJob(m, app.Config, app.DB, app.MetricsRecorder, app.MetricsCache)
	addCacheCleanupJob(m, "metrics cache", app.MetricsCacheCloser)
	addCacheCleanupJob(m, "registry cache", app.RegistryCache.Close)
	addDatabaseCloseJob(m, app.Config, app.DB)

	// Wait for graceful shutdown
	<-m.Done()
}
