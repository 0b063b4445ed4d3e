// repository/guest_repository.go
package repository

import (
	"context"

	"weddingflow-backend/apperrors"
	"weddingflow-backend/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type gormGuestRepository struct {
	db *gorm.DB
}

func NewGuestRepository(db *gorm.DB) GuestRepository {
	return &gormGuestRepository{db: db}
}

func (r *gormGuestRepository) Create(ctx context.Context, g *models.Guest) error {
	return r.db.WithContext(ctx).Create(g).Error
}

func (r *gormGuestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Guest, error) {
	var g models.Guest
	if err := r.db.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("guest", id.String())
		}
		return nil, err
	}
	return &g, nil
}

// FindAudience filters by status and id in SQL. Tags live in a JSON column
// whose operators differ per backend, so the tag match runs in Go.
func (r *gormGuestRepository) FindAudience(ctx context.Context, weddingID uuid.UUID, filter models.AudienceFilter) ([]models.Guest, error) {
	q := r.db.WithContext(ctx).Where("wedding_id = ?", weddingID)
	if len(filter.RSVPStatuses) > 0 {
		q = q.Where("rsvp_status IN ?", filter.RSVPStatuses)
	}
	if len(filter.GuestIDs) > 0 {
		q = q.Where("id IN ?", filter.GuestIDs)
	}

	var candidates []models.Guest
	if err := q.Order("name ASC").Find(&candidates).Error; err != nil {
		return nil, err
	}

	guests := make([]models.Guest, 0, len(candidates))
	for _, g := range candidates {
		if filter.Matches(g) {
			guests = append(guests, g)
		}
	}
	return guests, nil
}
