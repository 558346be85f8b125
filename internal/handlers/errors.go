package handlers

import (
	"net/http"

	"github.com/agri-identity/agrigate/internal/logger"
	"github.com/agri-identity/agrigate/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	errInvalidRequest = "invalid_request"
	errServerError    = "server_error"
)

// oauthErrorCode maps a service error to its wire code and HTTP status.
func oauthErrorCode(err error) (string, int) {
	code := services.ErrorCode(err)
	switch code {
	case "unknown_client",
		"invalid_scope",
		"invalid_redirect",
		errInvalidRequest,
		"scope_not_requested",
		"mandatory_scope_missing":
		return code, http.StatusBadRequest
	case "request_not_found":
		return code, http.StatusNotFound
	case "request_expired":
		return code, http.StatusGone
	case "request_already_consumed":
		return code, http.StatusConflict
	case "subject_mismatch":
		return code, http.StatusForbidden
	case "invalid_client":
		return code, http.StatusUnauthorized
	default:
		return errServerError, http.StatusInternalServerError
	}
}

// respondError writes the error body for err. Internal failures are logged
// and reported without detail.
func respondError(c *gin.Context, err error) {
	code, status := oauthErrorCode(err)
	if status == http.StatusInternalServerError {
		logger.From(c.Request.Context()).Error("request failed",
			logger.Path(c.FullPath()),
			logger.Err(err),
		)
		c.JSON(status, gin.H{
			"error":             code,
			"error_description": "The server encountered an unexpected error",
		})
		return
	}

	body := gin.H{
		"error":             code,
		"error_description": err.Error(),
	}
	if scopes := services.ScopesOf(err); len(scopes) > 0 {
		body["invalid_scopes"] = scopes
	}
	c.JSON(status, body)
}

// badRequest reports a malformed request body or query.
func badRequest(c *gin.Context, description string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":             errInvalidRequest,
		"error_description": description,
	})
}
