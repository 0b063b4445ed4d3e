// repository/automation_repository.go
package repository

import (
	"context"
	"encoding/json"
	"time"

	"weddingflow-backend/apperrors"
	"weddingflow-backend/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type gormAutomationRepository struct {
	db *gorm.DB
}

func NewAutomationRepository(db *gorm.DB) AutomationRepository {
	return &gormAutomationRepository{db: db}
}

func (r *gormAutomationRepository) Create(ctx context.Context, a *models.Automation) error {
	if a.ScheduledTime != nil {
		t := a.ScheduledTime.UTC()
		a.ScheduledTime = &t
	}
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *gormAutomationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Automation, error) {
	var a models.Automation
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("automation", id.String())
		}
		return nil, err
	}
	return &a, nil
}

func (r *gormAutomationRepository) ListByWedding(ctx context.Context, weddingID uuid.UUID) ([]models.Automation, error) {
	var automations []models.Automation
	err := r.db.WithContext(ctx).
		Where("wedding_id = ?", weddingID).
		Order("scheduled_time ASC, created_at ASC").
		Find(&automations).Error
	return automations, err
}

func (r *gormAutomationRepository) ListReady(ctx context.Context, now time.Time) ([]models.Automation, error) {
	var automations []models.Automation
	err := r.db.WithContext(ctx).
		Where("status = ? AND is_active = ? AND scheduled_time IS NOT NULL AND scheduled_time <= ?",
			models.AutomationPending, true, now.UTC()).
		Order("scheduled_time ASC").
		Find(&automations).Error
	return automations, err
}

func (r *gormAutomationRepository) UpdatePending(ctx context.Context, id uuid.UUID, patch models.AutomationPatch) (*models.Automation, error) {
	if patch.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if patch.ScheduledTime != nil {
		updates["scheduled_time"] = patch.ScheduledTime.UTC()
	}
	if patch.MessageTemplateID != nil {
		updates["message_template_id"] = *patch.MessageTemplateID
	}

	res := r.db.WithContext(ctx).Model(&models.Automation{}).
		Where("id = ? AND status = ?", id, models.AutomationPending).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, r.explainRejected(ctx, id, "edit")
	}
	return r.GetByID(ctx, id)
}

func (r *gormAutomationRepository) Activate(ctx context.Context, id uuid.UUID) (*models.Automation, error) {
	res := r.db.WithContext(ctx).Model(&models.Automation{}).
		Where("id = ? AND message_template_id IS NOT NULL AND message_template_id <> '' AND scheduled_time IS NOT NULL", id).
		Updates(map[string]interface{}{"is_active": true, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, res.Error
	}

	a, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.NewPreconditionFailed(id.String(), a.MissingForActivation()...)
	}
	return a, nil
}

func (r *gormAutomationRepository) Deactivate(ctx context.Context, id uuid.UUID) (*models.Automation, error) {
	res := r.db.WithContext(ctx).Model(&models.Automation{}).
		Where("id = ? AND status = ?", id, models.AutomationPending).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, r.explainRejected(ctx, id, "deactivate")
	}
	return r.GetByID(ctx, id)
}

func (r *gormAutomationRepository) ClaimForDispatch(ctx context.Context, id uuid.UUID, now time.Time) (*models.Automation, error) {
	res := r.db.WithContext(ctx).Model(&models.Automation{}).
		Where("id = ? AND status = ? AND is_active = ? AND scheduled_time IS NOT NULL AND scheduled_time <= ?",
			id, models.AutomationPending, true, now.UTC()).
		Updates(map[string]interface{}{"status": models.AutomationInProgress, "updated_at": now.UTC()})
	if res.Error != nil {
		return nil, res.Error
	}

	a, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 1 {
		return a, nil
	}

	if a.Status != models.AutomationPending {
		return nil, apperrors.ErrConcurrentClaimLost
	}
	if !a.IsActive {
		return nil, apperrors.NewPreconditionFailed(id.String(), "isActive")
	}
	return nil, apperrors.NewPreconditionFailed(id.String(), "due scheduledTime")
}

func (r *gormAutomationRepository) Finish(ctx context.Context, id uuid.UUID, status models.AutomationStatus, stats models.CompletionStats, sentMessageIDs []string) (*models.Automation, error) {
	if !models.AutomationInProgress.CanTransitionTo(status) {
		return nil, apperrors.NewInvalidState(id.String(), string(models.AutomationInProgress), "finish as "+string(status))
	}

	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return nil, errors.Wrap(err, "encode completion stats")
	}
	if sentMessageIDs == nil {
		sentMessageIDs = []string{}
	}
	idsJSON, err := json.Marshal(sentMessageIDs)
	if err != nil {
		return nil, errors.Wrap(err, "encode sent message ids")
	}

	res := r.db.WithContext(ctx).Model(&models.Automation{}).
		Where("id = ? AND status = ?", id, models.AutomationInProgress).
		Updates(map[string]interface{}{
			"status":           status,
			"completion_stats": string(statsJSON),
			"sent_message_ids": string(idsJSON),
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, r.explainRejected(ctx, id, "finish")
	}
	return r.GetByID(ctx, id)
}

// explainRejected turns a conditional write that matched nothing into a typed error.
func (r *gormAutomationRepository) explainRejected(ctx context.Context, id uuid.UUID, operation string) error {
	a, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return apperrors.NewInvalidState(id.String(), string(a.Status), operation)
}
