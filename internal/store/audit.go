package store

import (
	"context"
	"time"

	"github.com/agri-identity/agrigate/internal/models"
)

// CreateAuditLog writes a single audit entry.
func (s *Store) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	db, cancel := s.withTimeout(ctx)
	defer cancel()
	return db.Create(log).Error
}

// CreateAuditLogBatch writes entries in one round trip.
func (s *Store) CreateAuditLogBatch(ctx context.Context, logs []*models.AuditLog) error {
	if len(logs) == 0 {
		return nil
	}
	db, cancel := s.withTimeout(ctx)
	defer cancel()
	return db.CreateInBatches(logs, 100).Error
}

// GetAuditLogsPaginated returns audit logs matching filters, newest first.
func (s *Store) GetAuditLogsPaginated(
	ctx context.Context,
	params PaginationParams,
	filters AuditLogFilters,
) ([]models.AuditLog, PaginationResult, error) {
	db, cancel := s.withTimeout(ctx)
	defer cancel()

	q := db.Model(&models.AuditLog{})
	if filters.SubjectID != "" {
		q = q.Where("subject_id = ?", filters.SubjectID)
	}
	if filters.ClientID != "" {
		q = q.Where("client_id = ?", filters.ClientID)
	}
	if filters.EventType != "" {
		q = q.Where("event_type = ?", filters.EventType)
	}
	if filters.Success != nil {
		q = q.Where("success = ?", *filters.Success)
	}
	if !filters.StartTime.IsZero() {
		q = q.Where("event_time >= ?", filters.StartTime)
	}
	if !filters.EndTime.IsZero() {
		q = q.Where("event_time <= ?", filters.EndTime)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, PaginationResult{}, err
	}

	var logs []models.AuditLog
	if err := q.Order("event_time DESC").
		Offset(params.Offset()).
		Limit(params.PageSize).
		Find(&logs).Error; err != nil {
		return nil, PaginationResult{}, err
	}

	return logs, CalculatePagination(total, params.Page, params.PageSize), nil
}

// DeleteOldAuditLogs removes entries recorded before cutoff.
func (s *Store) DeleteOldAuditLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	db, cancel := s.withTimeout(ctx)
	defer cancel()

	result := db.Where("event_time < ?", cutoff).Delete(&models.AuditLog{})
	return result.RowsAffected, result.Error
}
