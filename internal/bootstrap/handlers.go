package bootstrap

import (
	"github.com/agri-identity/agrigate/internal/handlers"
	"github.com/agri-identity/agrigate/internal/services"
)

// handlerSet holds all HTTP handlers
type handlerSet struct {
	authorization *handlers.AuthorizationHandler
	token         *handlers.TokenHandler
	service       *handlers.ServiceHandler
	audit         *handlers.AuditHandler
}

// initializeHandlers creates all HTTP handlers
func initializeHandlers(
	registryService *services.RegistryService,
	tokenService *services.TokenService,
	authorizationService *services.AuthorizationService,
	auditService *services.AuditService,
) handlerSet {
	return handlerSet{
		authorization: handlers.NewAuthorizationHandler(authorizationService),
		token:         handlers.NewTokenHandler(tokenService, registryService),
		service:       handlers.NewServiceHandler(registryService),
		audit:         handlers.NewAuditHandler(auditService),
	}
}
