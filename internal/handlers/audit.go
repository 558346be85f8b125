package handlers

import (
	"net/http"
	"strconv"

	"github.com/agri-identity/agrigate/internal/middleware"
	"github.com/agri-identity/agrigate/internal/services"
	"github.com/agri-identity/agrigate/internal/store"

	"github.com/gin-gonic/gin"
)

// AuditHandler exposes a farmer's own access history.
type AuditHandler struct {
	auditService *services.AuditService
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
	}
}

// ListLogs returns the caller's audit events, newest first
// (GET /oauth/logs?page=&page_size=).
func (h *AuditHandler) ListLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	params := store.NewPaginationParams(page, pageSize)

	logs, pagination, err := h.auditService.History(
		c.Request.Context(),
		middleware.SubjectID(c),
		params,
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":       logs,
		"pagination": pagination,
	})
}
