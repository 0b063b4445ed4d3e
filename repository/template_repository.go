// repository/template_repository.go
package repository

import (
	"context"
	"time"

	"weddingflow-backend/apperrors"
	"weddingflow-backend/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type gormTemplateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &gormTemplateRepository{db: db}
}

func (r *gormTemplateRepository) Create(ctx context.Context, t *models.Template) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *gormTemplateRepository) GetBySid(ctx context.Context, sid string) (*models.Template, error) {
	var t models.Template
	if err := r.db.WithContext(ctx).First(&t, "sid = ?", sid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("template", sid)
		}
		return nil, err
	}
	return &t, nil
}

func (r *gormTemplateRepository) List(ctx context.Context, weddingID uuid.UUID) ([]models.Template, error) {
	var templates []models.Template
	err := r.db.WithContext(ctx).
		Where("wedding_id IS NULL OR wedding_id = ?", weddingID).
		Order("friendly_name ASC").
		Find(&templates).Error
	return templates, err
}

func (r *gormTemplateRepository) ListByApprovalStatus(ctx context.Context, statuses ...models.ApprovalStatus) ([]models.Template, error) {
	var templates []models.Template
	if len(statuses) == 0 {
		return templates, nil
	}
	err := r.db.WithContext(ctx).
		Where("approval_status IN ?", statuses).
		Find(&templates).Error
	return templates, err
}

func (r *gormTemplateRepository) UpdateApprovalStatus(ctx context.Context, sid string, status models.ApprovalStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Template{}).
		Where("sid = ?", sid).
		Updates(map[string]interface{}{"approval_status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFound("template", sid)
	}
	return nil
}
