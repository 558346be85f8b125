package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Service is a registered third-party relying party (loan provider, crop
// advisory, ...). Services are loaded from the registry file and are not
// mutated through the API.
type Service struct {
	ID              int64       `gorm:"primaryKey;autoIncrement"                json:"id"`
	ClientID        string      `gorm:"uniqueIndex;size:100;not null"           json:"client_id"`
	ClientSecret    string      `gorm:"not null;default:''"                     json:"-"` // bcrypt hash, empty for portal-only services
	Name            string      `gorm:"not null"                                json:"name"`
	Description     string      `gorm:"type:text"                               json:"description"`
	AllowedScopes   StringArray `gorm:"type:json"                               json:"allowed_scopes"`
	MandatoryScopes StringArray `gorm:"type:json"                               json:"mandatory_scopes"`
	RedirectURIs    StringArray `gorm:"type:json"                               json:"redirect_uris"`
	IsActive        bool        `gorm:"not null"                                json:"is_active"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// HasRedirectURI reports whether uri exactly matches a registered redirect URI.
func (s *Service) HasRedirectURI(uri string) bool {
	if uri == "" {
		return false
	}
	for _, registered := range s.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// ValidateClientSecret compares secret against the stored hash.
func (s *Service) ValidateClientSecret(secret []byte) bool {
	if s.ClientSecret == "" || len(secret) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(s.ClientSecret), secret) == nil
}

func (Service) TableName() string {
	return "services"
}
