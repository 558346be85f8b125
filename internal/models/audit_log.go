package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of audit event
type EventType string

const (
	// Authorization request lifecycle
	EventAuthorizationRequested EventType = "AUTHORIZATION_REQUESTED"
	EventAuthorizationRejected  EventType = "AUTHORIZATION_REJECTED"
	EventAuthorizationCancelled EventType = "AUTHORIZATION_CANCELLED"

	// Consent decisions
	EventConsentGranted EventType = "CONSENT_GRANTED"
	EventConsentDenied  EventType = "CONSENT_DENIED"
	EventConsentRevoked EventType = "CONSENT_REVOKED"

	// Token events
	EventAccessTokenIssued   EventType = "ACCESS_TOKEN_ISSUED" //nolint:gosec // G101: event name, not a credential
	EventTokenIntrospected   EventType = "TOKEN_INTROSPECTED"
	EventTokenSigningFailure EventType = "TOKEN_SIGNING_FAILURE"

	// Registry
	EventServiceRegistered EventType = "SERVICE_REGISTERED"

	// Security events
	EventRateLimitExceeded  EventType = "RATE_LIMIT_EXCEEDED"
	EventSuspiciousActivity EventType = "SUSPICIOUS_ACTIVITY"
)

// EventSeverity represents the severity level of an audit event
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "INFO"
	SeverityWarning  EventSeverity = "WARNING"
	SeverityError    EventSeverity = "ERROR"
	SeverityCritical EventSeverity = "CRITICAL"
)

// ResourceType represents the type of resource being operated on
type ResourceType string

const (
	ResourceAuthRequest ResourceType = "AUTH_REQUEST"
	ResourceConsent     ResourceType = "CONSENT"
	ResourceToken       ResourceType = "TOKEN"
	ResourceService     ResourceType = "SERVICE"
)

// AuditDetails stores additional event-specific information as JSON
type AuditDetails map[string]any

// Value implements the driver.Valuer interface for database storage
func (a AuditDetails) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil //nolint:nilnil // nil driver.Value represents SQL NULL
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database retrieval
func (a *AuditDetails) Scan(value any) error {
	if value == nil {
		*a = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal AuditDetails value: %v", value)
	}

	result := make(AuditDetails)
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*a = result
	return nil
}

// AuditLog is an immutable record of something that happened to a farmer's
// data: a service asking for access, a grant, a revocation, a token check.
type AuditLog struct {
	ID string `gorm:"primaryKey;type:varchar(36)" json:"id"`

	EventType EventType     `gorm:"type:varchar(50);index;not null" json:"event_type"`
	EventTime time.Time     `gorm:"index;not null"                  json:"event_time"`
	Severity  EventSeverity `gorm:"type:varchar(20);not null"       json:"severity"`

	// Actor
	SubjectID string `gorm:"type:varchar(100);index" json:"subject_id"`
	ActorIP   string `gorm:"type:varchar(45);index"  json:"actor_ip"`

	// Service the event concerns, if any
	ClientID string `gorm:"type:varchar(100);index" json:"client_id,omitempty"`

	ResourceType ResourceType `gorm:"type:varchar(50);index" json:"resource_type"`
	ResourceID   string       `gorm:"type:varchar(64);index" json:"resource_id"`

	Action       string       `gorm:"type:varchar(255);not null" json:"action"`
	Details      AuditDetails `gorm:"type:json"                  json:"details"`
	Success      bool         `gorm:"index;not null"             json:"success"`
	ErrorMessage string       `gorm:"type:text"                  json:"error_message,omitempty"`

	UserAgent     string `gorm:"type:varchar(500)" json:"user_agent,omitempty"`
	RequestPath   string `gorm:"type:varchar(500)" json:"request_path,omitempty"`
	RequestMethod string `gorm:"type:varchar(10)"  json:"request_method,omitempty"`

	// No UpdatedAt: logs are immutable
	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`
}

// TableName specifies the table name for GORM
func (AuditLog) TableName() string {
	return "audit_logs"
}
