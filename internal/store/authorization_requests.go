package store

import (
	"context"
	"errors"
	"time"

	"github.com/agri-identity/agrigate/internal/models"

	"gorm.io/gorm"
)

// CreateAuthorizationRequest persists a new PENDING request.
func (s *Store) CreateAuthorizationRequest(ctx context.Context, req *models.AuthorizationRequest) error {
	db, cancel := s.withTimeout(ctx)
	defer cancel()

	if req.Status == "" {
		req.Status = models.AuthRequestPending
	}
	return db.Create(req).Error
}

// GetAuthorizationRequest looks a request up by its public identifier.
func (s *Store) GetAuthorizationRequest(ctx context.Context, requestID string) (*models.AuthorizationRequest, error) {
	db, cancel := s.withTimeout(ctx)
	defer cancel()

	var req models.AuthorizationRequest
	if err := db.Where("uuid = ?", requestID).First(&req).Error; err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

// ConsumeAndGrant atomically moves a PENDING, unexpired request to CONSUMED
// and records consent in the same transaction. Of any number of concurrent
// callers for one request exactly one succeeds; the rest observe
// ErrRequestAlreadyConsumed. A request past its deadline yields
// ErrRequestExpired and is marked EXPIRED.
//
// onGranted, if set, runs inside the transaction after the consent is
// written; an error from it rolls everything back and leaves the request
// PENDING.
func (s *Store) ConsumeAndGrant(
	ctx context.Context,
	requestID string,
	now time.Time,
	consent *models.Consent,
	onGranted func(*models.Consent) error,
) (*models.Consent, error) {
	db, cancel := s.withTimeout(ctx)
	defer cancel()

	var stored models.Consent
	err := db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.AuthorizationRequest{}).
			Where("uuid = ? AND status = ? AND expires_at > ?", requestID, models.AuthRequestPending, now).
			Updates(map[string]any{
				"status":      models.AuthRequestConsumed,
				"consumed_at": now,
				"updated_at":  now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return classifyUnconsumable(tx, requestID)
		}

		if err := upsertConsent(tx, consent, now, &stored); err != nil {
			return err
		}
		if onGranted != nil {
			return onGranted(&stored)
		}
		return nil
	})
	if errors.Is(err, ErrRequestExpired) {
		// Mark outside the rolled-back transaction so the state sticks.
		if _, markErr := s.ExpireAuthorizationRequest(ctx, requestID, ""); markErr != nil {
			return nil, markErr
		}
	}
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// classifyUnconsumable explains why a conditional consume touched no rows.
func classifyUnconsumable(tx *gorm.DB, requestID string) error {
	var req models.AuthorizationRequest
	if err := tx.Where("uuid = ?", requestID).First(&req).Error; err != nil {
		return notFound(err)
	}
	if req.Status == models.AuthRequestConsumed {
		return ErrRequestAlreadyConsumed
	}
	return ErrRequestExpired
}

// ExpireAuthorizationRequest moves a PENDING request to EXPIRED. When
// subjectID is non-empty only a request begun by that subject is touched.
// It reports whether a row changed.
func (s *Store) ExpireAuthorizationRequest(ctx context.Context, requestID, subjectID string) (bool, error) {
	db, cancel := s.withTimeout(ctx)
	defer cancel()

	q := db.Model(&models.AuthorizationRequest{}).
		Where("uuid = ? AND status = ?", requestID, models.AuthRequestPending)
	if subjectID != "" {
		q = q.Where("subject_id = ?", subjectID)
	}
	result := q.Updates(map[string]any{
		"status":     models.AuthRequestExpired,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ExpireStaleAuthorizationRequests marks every PENDING request whose
// deadline has passed as EXPIRED.
func (s *Store) ExpireStaleAuthorizationRequests(ctx context.Context, now time.Time) (int64, error) {
	db, cancel := s.withTimeout(ctx)
	defer cancel()

	result := db.Model(&models.AuthorizationRequest{}).
		Where("status = ? AND expires_at <= ?", models.AuthRequestPending, now).
		Updates(map[string]any{
			"status":     models.AuthRequestExpired,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

// DeleteTerminalAuthorizationRequests removes CONSUMED and EXPIRED requests
// last touched before cutoff.
func (s *Store) DeleteTerminalAuthorizationRequests(ctx context.Context, cutoff time.Time) (int64, error) {
	db, cancel := s.withTimeout(ctx)
	defer cancel()

	result := db.
		Where("status <> ? AND updated_at < ?", models.AuthRequestPending, cutoff).
		Delete(&models.AuthorizationRequest{})
	return result.RowsAffected, result.Error
}

// CountPendingAuthorizationRequests counts PENDING requests that have not
// yet reached their deadline.
func (s *Store) CountPendingAuthorizationRequests(ctx context.Context) (int64, error) {
	db, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int64
	err := db.Model(&models.AuthorizationRequest{}).
		Where("status = ? AND expires_at > ?", models.AuthRequestPending, time.Now()).
		Count(&n).Error
	return n, err
}
