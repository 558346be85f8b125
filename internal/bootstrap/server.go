package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/agri-identity/agrigate/internal/cache"
	"github.com/agri-identity/agrigate/internal/config"
	"github.com/agri-identity/agrigate/internal/logger"
	"github.com/agri-identity/agrigate/internal/metrics"
	"github.com/agri-identity/agrigate/internal/services"
	"github.com/agri-identity/agrigate/internal/store"

	"github.com/appleboy/graceful"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// createHTTPServer creates the HTTP server instance
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// addServerRunningJob adds the HTTP server running job
func addServerRunningJob(m *graceful.Manager, srv *http.Server) {
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.L().Fatal("failed to start server", logger.Err(err))
			}
		}()
		<-ctx.Done()
		return nil
	})
}

// addServerShutdownJob adds HTTP server shutdown handler
func addServerShutdownJob(m *graceful.Manager, cfg *config.Config, srv *http.Server) {
	m.AddShutdownJob(func() error {
		logger.L().Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.L().Error("server forced to shutdown", logger.Err(err))
			return err
		}

		logger.L().Info("server exited")
		return nil
	})
}

// addRedisClientShutdownJob adds Redis client shutdown handler
func addRedisClientShutdownJob(m *graceful.Manager, redisClient *redis.Client) {
	if redisClient == nil {
		return
	}

	m.AddShutdownJob(func() error {
		if err := redisClient.Close(); err != nil {
			logger.L().Error("error closing Redis client", logger.Err(err))
			return err
		}
		logger.L().Info("Redis connection closed")
		return nil
	})
}

// addAuditServiceShutdownJob adds audit service shutdown handler
func addAuditServiceShutdownJob(
	m *graceful.Manager,
	cfg *config.Config,
	auditService *services.AuditService,
) {
	m.AddShutdownJob(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.AuditShutdownTimeout)
		defer cancel()

		if err := auditService.Shutdown(ctx); err != nil {
			logger.L().Error("error shutting down audit service", logger.Err(err))
			return err
		}
		return nil
	})
}

// runPeriodically calls fn immediately and then on every tick until ctx is
// done.
func runPeriodically(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fn(ctx)
	for {
		select {
		case <-ticker.C:
			fn(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// addAuditLogCleanupJob adds periodic audit log cleanup job
func addAuditLogCleanupJob(
	m *graceful.Manager,
	cfg *config.Config,
	auditService *services.AuditService,
) {
	if !cfg.EnableAuditLogging || cfg.AuditLogRetention <= 0 {
		return
	}

	m.AddRunningJob(func(ctx context.Context) error {
		runPeriodically(ctx, 24*time.Hour, func(ctx context.Context) {
			deleted, err := auditService.CleanupOldLogs(ctx, cfg.AuditLogRetention)
			switch {
			case err != nil:
				logger.L().Error("failed to cleanup old audit logs", logger.Err(err))
			case deleted > 0:
				logger.L().Info("cleaned up old audit logs", zap.Int64("deleted", deleted))
			}
		})
		return nil
	})
}

// addAuthRequestCleanupJob expires overdue PENDING requests and deletes
// terminal ones past retention.
func addAuthRequestCleanupJob(
	m *graceful.Manager,
	cfg *config.Config,
	authorizationService *services.AuthorizationService,
) {
	if cfg.AuthRequestCleanupInterval <= 0 {
		return
	}

	m.AddRunningJob(func(ctx context.Context) error {
		runPeriodically(ctx, cfg.AuthRequestCleanupInterval, func(ctx context.Context) {
			expired, deleted, err := authorizationService.CleanupRequests(ctx)
			switch {
			case err != nil:
				logger.L().Error("failed to cleanup authorization requests", logger.Err(err))
			case expired > 0 || deleted > 0:
				logger.L().Info("cleaned up authorization requests",
					zap.Int64("expired", expired),
					zap.Int64("deleted", deleted),
				)
			}
		})
		return nil
	})
}

// addMetricsGaugeUpdateJob adds periodic metrics gauge update job
func addMetricsGaugeUpdateJob(
	m *graceful.Manager,
	cfg *config.Config,
	db *store.Store,
	prometheusMetrics metrics.Recorder,
	metricsCache cache.Cache[int64],
) {
	if metricsCache == nil {
		return
	}

	// The cache TTL matches the update interval so each tick sees fresh counts.
	updater := metrics.NewGaugeUpdater(db, metricsCache, prometheusMetrics, cfg.MetricsGaugeUpdateInterval)
	m.AddRunningJob(func(ctx context.Context) error {
		runPeriodically(ctx, cfg.MetricsGaugeUpdateInterval, updater.Update)
		return nil
	})
}

// addCacheCleanupJob adds cache cleanup on shutdown
func addCacheCleanupJob(m *graceful.Manager, name string, closer func() error) {
	if closer == nil {
		return
	}

	m.AddShutdownJob(func() error {
		if err := closer(); err != nil {
			logger.L().Error("error closing cache", zap.String("cache", name), logger.Err(err))
		} else {
			logger.L().Info("cache closed", zap.String("cache", name))
		}
		return nil
	})
}

// addDatabaseCloseJob closes the connection pool on shutdown
func addDatabaseCloseJob(m *graceful.Manager, cfg *config.Config, db *store.Store) {
	m.AddShutdownJob(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DBCloseTimeout)
		defer cancel()

		if err := db.Close(ctx); err != nil {
			logger.L().Error("error closing database", logger.Err(err))
			return err
		}
		return nil
	})
}
