package bootstrap

import (
	"fmt"

	"github.com/agri-identity/agrigate/internal/config"
	"github.com/agri-identity/agrigate/internal/logger"
)

// validateAllConfiguration validates all configuration settings
func validateAllConfiguration(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.ServiceRegistryFile == "" {
		logger.L().Warn("SERVICE_REGISTRY_FILE not set; serving services already in the database")
	}
	if cfg.SessionJWTSecret == cfg.JWTSecret {
		logger.L().Warn("SESSION_JWT_SECRET equals JWT_SECRET; set a separate portal secret outside development")
	}
	return nil
}
