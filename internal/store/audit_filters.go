package store

import (
	"time"

	"github.com/agri-identity/agrigate/internal/models"
)

// AuditLogFilters contains filter criteria for querying audit logs
type AuditLogFilters struct {
	SubjectID string           `json:"subject_id,omitempty"`
	ClientID  string           `json:"client_id,omitempty"`
	EventType models.EventType `json:"event_type,omitempty"`
	Success   *bool            `json:"success,omitempty"`
	StartTime time.Time        `json:"start_time,omitzero"`
	EndTime   time.Time        `json:"end_time,omitzero"`
}
