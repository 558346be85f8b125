package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/agri-identity/agrigate/internal/logger"
	"github.com/agri-identity/agrigate/internal/token"

	"github.com/gin-gonic/gin"
)

// ContextSubjectID is the gin context key holding the authenticated subject.
const ContextSubjectID = "subject_id"

// RequireBearer verifies the portal credential in the Authorization header
// and stores its subject on the gin context. Handlers read the subject from
// here and never from request bodies.
func RequireBearer(codec *token.Codec) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := BearerToken(c)
		if !ok {
			c.Header("WWW-Authenticate", `Bearer realm="agrigate"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":             "unauthorized",
				"error_description": "Bearer credential required",
			})
			return
		}

		subjectID, err := codec.DecodePortalSubject(raw)
		if err != nil {
			c.Header("WWW-Authenticate", `Bearer realm="agrigate", error="invalid_token"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":             "unauthorized",
				"error_description": describeCredentialError(err),
			})
			return
		}

		c.Set(ContextSubjectID, subjectID)
		ctx := logger.ToContext(c.Request.Context(),
			logger.From(c.Request.Context()).With(logger.SubjectID(subjectID)))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// SubjectID returns the subject set by RequireBearer, or "".
func SubjectID(c *gin.Context) string {
	return c.GetString(ContextSubjectID)
}

// BearerToken extracts the credential from an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(header[len("Bearer "):])
	return raw, raw != ""
}

func describeCredentialError(err error) string {
	switch {
	case errors.Is(err, token.ErrExpired):
		return "Credential has expired"
	case errors.Is(err, token.ErrInvalidSignature):
		return "Credential signature is invalid"
	case errors.Is(err, token.ErrNotPortalCredential):
		return "Access tokens are not accepted here"
	default:
		return "Credential is malformed"
	}
}
