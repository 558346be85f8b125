package token

import (
	"time"

	"github.com/agri-identity/agrigate/internal/scope"

	"github.com/golang-jwt/jwt/v5"
)

// Token type constants
const (
	TokenTypeBearer = "Bearer"

	// TypeAccess is the typ claim carried by access tokens minted for services.
	TypeAccess = "access"
)

// Claims is the JWT payload shared by portal credentials and access tokens.
// Portal credentials only need sub; access tokens also carry azp, scope and typ.
type Claims struct {
	Scope           string `json:"scope,omitempty"`
	AuthorizedParty string `json:"azp,omitempty"` // client_id of the service the token was minted for
	Type            string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// Scopes returns the space-delimited scope claim as a list.
func (c *Claims) Scopes() []string {
	return scope.Parse(c.Scope)
}

// AccessToken is a minted bearer credential scoped to a consent.
type AccessToken struct {
	Value     string
	TokenType string
	SubjectID string
	ServiceID string // client_id of the service
	Scopes    []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	JTI       string
}

// ExpiresIn returns the remaining lifetime in whole seconds, never negative.
func (t *AccessToken) ExpiresIn(now time.Time) int64 {
	secs := int64(t.ExpiresAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}
