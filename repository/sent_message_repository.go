// repository/sent_message_repository.go
package repository

import (
	"context"
	"time"

	"weddingflow-backend/apperrors"
	"weddingflow-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormSentMessageRepository struct {
	db *gorm.DB
}

func NewSentMessageRepository(db *gorm.DB) SentMessageRepository {
	return &gormSentMessageRepository{db: db}
}

func (r *gormSentMessageRepository) Create(ctx context.Context, m *models.SentMessage) error {
	now := time.Now().UTC()
	if m.DateCreated.IsZero() {
		m.DateCreated = now
	}
	if m.DateUpdated.IsZero() {
		m.DateUpdated = m.DateCreated
	}
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *gormSentMessageRepository) ListByAutomation(ctx context.Context, automationID uuid.UUID) ([]models.SentMessage, error) {
	var messages []models.SentMessage
	err := r.db.WithContext(ctx).
		Where("automation_id = ?", automationID).
		Order("date_created ASC").
		Find(&messages).Error
	return messages, err
}

func (r *gormSentMessageRepository) ListUnsettled(ctx context.Context, limit int) ([]models.SentMessage, error) {
	var messages []models.SentMessage
	q := r.db.WithContext(ctx).
		Where("sid <> '' AND status NOT IN ?", finalMessageStatuses()).
		Order("date_updated ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&messages).Error
	return messages, err
}

func (r *gormSentMessageRepository) UpdateStatus(ctx context.Context, sid, status string, errorCode *int, errorMessage *string) error {
	updates := map[string]interface{}{
		"status":       status,
		"date_updated": time.Now().UTC(),
	}
	if errorCode != nil {
		updates["error_code"] = *errorCode
	}
	if errorMessage != nil {
		updates["error_message"] = *errorMessage
	}

	res := r.db.WithContext(ctx).Model(&models.SentMessage{}).
		Where("sid = ?", sid).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFound("sent message", sid)
	}
	return nil
}

func finalMessageStatuses() []string {
	return []string{
		models.MessageDelivered,
		models.MessageRead,
		models.MessageUndelivered,
		models.MessageFailed,
		models.MessageCanceled,
	}
}
