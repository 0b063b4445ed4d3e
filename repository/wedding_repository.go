// repository/wedding_repository.go
package repository

import (
	"context"

	"weddingflow-backend/apperrors"
	"weddingflow-backend/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type gormWeddingRepository struct {
	db *gorm.DB
}

func NewWeddingRepository(db *gorm.DB) WeddingRepository {
	return &gormWeddingRepository{db: db}
}

func (r *gormWeddingRepository) Create(ctx context.Context, w *models.Wedding) error {
	return r.db.WithContext(ctx).Create(w).Error
}

func (r *gormWeddingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Wedding, error) {
	var w models.Wedding
	if err := r.db.WithContext(ctx).First(&w, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("wedding", id.String())
		}
		return nil, err
	}
	return &w, nil
}

// NewGormStore wires every repository to one database handle.
func NewGormStore(db *gorm.DB) *Store {
	return &Store{
		Automations:  NewAutomationRepository(db),
		Templates:    NewTemplateRepository(db),
		SentMessages: NewSentMessageRepository(db),
		Guests:       NewGuestRepository(db),
		Weddings:     NewWeddingRepository(db),
	}
}

// Models lists the tables the store needs migrated.
func Models() []interface{} {
	return []interface{}{
		&models.Wedding{},
		&models.Guest{},
		&models.Template{},
		&models.Automation{},
		&models.SentMessage{},
	}
}
