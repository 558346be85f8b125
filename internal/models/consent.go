package models

import "time"

// Consent records the scopes a farmer has granted to a service. There is at
// most one row per (SubjectID, ServiceID); a later grant replaces the scopes
// and revocation flips IsActive off.
type Consent struct {
	ID   uint   `gorm:"primaryKey;autoIncrement"`
	UUID string `gorm:"uniqueIndex;size:36;not null"`

	SubjectID string `gorm:"not null;uniqueIndex:idx_subject_service"`
	ServiceID int64  `gorm:"not null;uniqueIndex:idx_subject_service"`
	ClientID  string `gorm:"not null;index"` // denormalized for listings and token checks

	Scopes    StringArray `gorm:"type:json"`
	GrantedAt time.Time
	RevokedAt *time.Time
	IsActive  bool `gorm:"not null;default:true;index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Consent) TableName() string {
	return "consents"
}
