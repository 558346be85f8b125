package store

import (
	"context"
	"time"

	"github.com/agri-identity/agrigate/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// upsertConsent writes the (subject, service) consent row, replacing the
// scopes and reactivating a revoked row, then loads the stored state into out.
func upsertConsent(tx *gorm.DB, consent *models.Consent, now time.Time, out *models.Consent) error {
	if consent.UUID == "" {
		consent.UUID = uuid.New().String()
	}
	consent.GrantedAt = now
	consent.RevokedAt = nil
	consent.IsActive = true

	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "subject_id"}, {Name: "service_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"client_id":  consent.ClientID,
			"scopes":     consent.Scopes,
			"granted_at": now,
			"revoked_at": nil,
			"is_active":  true,
			"updated_at": now,
		}),
	}).Create(consent).Error; err != nil {
		return err
	}

	return tx.Where("subject_id = ? AND service_id = ?", consent.SubjectID, consent.ServiceID).
		First(out).Error
}

// RevokeConsent deactivates the subject's consent for a service. Revoking
// an inactive or absent consent changes nothing and is not an error; the
// returned count says whether a row flipped.
func (s *Store) RevokeConsent(ctx context.Context, subjectID string, serviceID int64, now time.Time) (int64, error) {
	db, cancel := s.withTimeout(ctx)
	defer cancel()

	result := db.Model(&models.Consent{}).
		Where("subject_id = ? AND service_id = ? AND is_active = ?", subjectID, serviceID, true).
		Updates(map[string]any{
			"is_active":  false,
			"revoked_at": now,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

// GetActiveConsent returns the subject's live consent for a service.
func (s *Store) GetActiveConsent(ctx context.Context, subjectID string, serviceID int64) (*models.Consent, error) {
	db, cancel := s.withTimeout(ctx)
	defer cancel()

	var consent models.Consent
	if err := db.Where("subject_id = ? AND service_id = ? AND is_active = ?", subjectID, serviceID, true).
		First(&consent).Error; err != nil {
		return nil, notFound(err)
	}
	return &consent, nil
}

// ListActiveConsents returns the subject's live consents, newest grant first.
func (s *Store) ListActiveConsents(ctx context.Context, subjectID string) ([]models.Consent, error) {
	db, cancel := s.withTimeout(ctx)
	defer cancel()

	var consents []models.Consent
	if err := db.Where("subject_id = ? AND is_active = ?", subjectID, true).
		Order("granted_at DESC").
		Find(&consents).Error; err != nil {
		return nil, err
	}
	return consents, nil
}

// CountActiveConsents counts live consents across all subjects.
func (s *Store) CountActiveConsents(ctx context.Context) (int64, error) {
	db, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int64
	err := db.Model(&models.Consent{}).Where("is_active = ?", true).Count(&n).Error
	return n, err
}
