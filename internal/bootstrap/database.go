package bootstrap

import (
	"context"
	"fmt"

	"github.com/agri-identity/agrigate/internal/config"
	"github.com/agri-identity/agrigate/internal/logger"
	"github.com/agri-identity/agrigate/internal/store"

	"go.uber.org/zap"
)

// initializeDatabase creates and initializes the database connection
func initializeDatabase(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	// Create timeout context for this specific operation
	ctx, cancel := context.WithTimeout(ctx, cfg.DBInitTimeout)
	defer cancel()

	db, err := store.New(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN, store.WithTimeout(cfg.StoreTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.L().Info("database ready",
		zap.String("driver", cfg.DatabaseDriver),
		zap.Duration("store_timeout", cfg.StoreTimeout),
	)
	return db, nil
}
