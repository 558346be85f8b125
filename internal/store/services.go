package store

import (
	"context"
	"time"

	"github.com/agri-identity/agrigate/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertService inserts a service or replaces every mutable column of the
// existing row with the same client_id. The stored row is returned.
func (s *Store) UpsertService(ctx context.Context, svc *models.Service) (*models.Service, error) {
	db, cancel := s.withTimeout(ctx)
	defer cancel()

	now := time.Now()
	svc.UpdatedAt = now
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = now
	}

	var stored models.Service
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "client_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"client_secret",
				"name",
				"description",
				"allowed_scopes",
				"mandatory_scopes",
				"redirect_uris",
				"is_active",
				"updated_at",
			}),
		}).Create(svc).Error; err != nil {
			return err
		}
		return tx.Where("client_id = ?", svc.ClientID).First(&stored).Error
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetServiceByClientID returns the service registered under clientID,
// active or not.
func (s *Store) GetServiceByClientID(ctx context.Context, clientID string) (*models.Service, error) {
	db, cancel := s.withTimeout(ctx)
	defer cancel()

	var svc models.Service
	if err := db.Where("client_id = ?", clientID).First(&svc).Error; err != nil {
		return nil, notFound(err)
	}
	return &svc, nil
}

// GetServicesByIDs batch-loads services keyed by primary key.
func (s *Store) GetServicesByIDs(ctx context.Context, ids []int64) (map[int64]*models.Service, error) {
	result := make(map[int64]*models.Service, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	db, cancel := s.withTimeout(ctx)
	defer cancel()

	var services []models.Service
	if err := db.Where("id IN ?", ids).Find(&services).Error; err != nil {
		return nil, err
	}
	for i := range services {
		result[services[i].ID] = &services[i]
	}
	return result, nil
}

// ListServices returns registered services ordered by name.
func (s *Store) ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error) {
	db, cancel := s.withTimeout(ctx)
	defer cancel()

	q := db.Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var services []models.Service
	if err := q.Find(&services).Error; err != nil {
		return nil, err
	}
	return services, nil
}
