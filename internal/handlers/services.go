package handlers

import (
	"net/http"

	"github.com/agri-identity/agrigate/internal/services"

	"github.com/gin-gonic/gin"
)

// ServiceHandler serves the public catalogue of registered services.
type ServiceHandler struct {
	registryService *services.RegistryService
}

func NewServiceHandler(rs *services.RegistryService) *ServiceHandler {
	return &ServiceHandler{registryService: rs}
}

type serviceResponse struct {
	ServiceID       string   `json:"service_id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	AllowedScopes   []string `json:"allowed_scopes"`
	MandatoryScopes []string `json:"mandatory_scopes"`
}

// List returns the active services (GET /services). Secrets and redirect
// URIs are never exposed.
func (h *ServiceHandler) List(c *gin.Context) {
	svcs, err := h.registryService.ListServices(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]serviceResponse, 0, len(svcs))
	for i := range svcs {
		svc := &svcs[i]
		out = append(out, serviceResponse{
			ServiceID:       svc.ClientID,
			Name:            svc.Name,
			Description:     svc.Description,
			AllowedScopes:   nonNil(svc.AllowedScopes),
			MandatoryScopes: h.registryService.MandatoryScopes(svc),
		})
	}
	c.JSON(http.StatusOK, out)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
