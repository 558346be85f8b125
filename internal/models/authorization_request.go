package models

import "time"

// AuthRequestStatus is the lifecycle state of an AuthorizationRequest.
type AuthRequestStatus string

const (
	AuthRequestPending  AuthRequestStatus = "PENDING"
	AuthRequestConsumed AuthRequestStatus = "CONSUMED"
	AuthRequestExpired  AuthRequestStatus = "EXPIRED"
)

// AuthorizationRequest is a validated, not yet decided request from a service
// to access a farmer's data. It moves PENDING -> CONSUMED on a successful
// grant or PENDING -> EXPIRED on timeout or cancellation, and never leaves a
// terminal state.
type AuthorizationRequest struct {
	ID   uint   `gorm:"primaryKey;autoIncrement"`
	UUID string `gorm:"uniqueIndex;size:64;not null"` // public auth_request_id, 256-bit random hex

	ServiceID int64  `gorm:"not null;index"`
	ClientID  string `gorm:"not null;index"`
	SubjectID string `gorm:"not null;index"` // farmer who began the request

	RequestedScopes StringArray `gorm:"type:json"`
	RedirectURI     string      `gorm:"not null"`
	State           string      `gorm:"type:varchar(1024);default:''"`

	Status     AuthRequestStatus `gorm:"type:varchar(16);not null;index;default:'PENDING'"`
	ExpiresAt  time.Time         `gorm:"not null;index"`
	ConsumedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsExpiredAt reports whether the request's lifetime has elapsed at now,
// regardless of whether the row has been marked EXPIRED yet.
func (r *AuthorizationRequest) IsExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IsTerminal reports whether the request can no longer be granted.
func (r *AuthorizationRequest) IsTerminal() bool {
	return r.Status != AuthRequestPending
}

func (AuthorizationRequest) TableName() string {
	return "authorization_requests"
}
