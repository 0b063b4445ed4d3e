// services/automation_service.go
package services

import (
	"context"
	"strings"
	"time"

	"weddingflow-backend/apperrors"
	"weddingflow-backend/models"
	"weddingflow-backend/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type CreateAutomationInput struct {
	WeddingID            uuid.UUID             `json:"-"`
	Name                 string                `json:"name"`
	AutomationType       models.AutomationType `json:"automationType"`
	Channel              models.Channel        `json:"channel"`
	MessageTemplateID    *string               `json:"messageTemplateId"`
	ScheduledTime        *time.Time            `json:"scheduledTime"`
	ScheduledTimeZone    string                `json:"scheduledTimeZone"`
	TargetAudienceFilter models.AudienceFilter `json:"targetAudienceFilter"`
	IsActive             bool                  `json:"isActive"`
}

// AutomationService owns the automation lifecycle. Status only moves
// pending -> inProgress -> completed|failed and every move is a conditional
// store write.
type AutomationService struct {
	automations repository.AutomationRepository
	templates   repository.TemplateRepository
	logger      logrus.FieldLogger
	now         func() time.Time
}

func NewAutomationService(automations repository.AutomationRepository, templates repository.TemplateRepository, logger logrus.FieldLogger) *AutomationService {
	return &AutomationService{
		automations: automations,
		templates:   templates,
		logger:      logger.WithField("service", "automation"),
		now:         time.Now,
	}
}

func (s *AutomationService) Create(ctx context.Context, in CreateAutomationInput) (*models.Automation, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperrors.NewValidation("name", "required")
	}
	if in.WeddingID == uuid.Nil {
		return nil, apperrors.NewValidation("weddingId", "required")
	}
	if in.AutomationType == "" {
		in.AutomationType = models.AutomationCustom
	}
	if !in.AutomationType.Valid() {
		return nil, apperrors.NewValidation("automationType", "unknown value "+string(in.AutomationType))
	}
	if in.Channel == "" {
		in.Channel = models.ChannelWhatsApp
	}
	if in.Channel != models.ChannelWhatsApp && in.Channel != models.ChannelSMS {
		return nil, apperrors.NewValidation("channel", "unknown value "+string(in.Channel))
	}
	if in.MessageTemplateID != nil && *in.MessageTemplateID == "" {
		in.MessageTemplateID = nil
	}
	if in.MessageTemplateID != nil {
		if err := s.checkTemplate(ctx, *in.MessageTemplateID); err != nil {
			return nil, err
		}
	}

	a := &models.Automation{
		WeddingID:            in.WeddingID,
		Name:                 strings.TrimSpace(in.Name),
		IsActive:             in.IsActive,
		Status:               models.AutomationPending,
		AutomationType:       in.AutomationType,
		Channel:              in.Channel,
		MessageTemplateID:    in.MessageTemplateID,
		ScheduledTime:        in.ScheduledTime,
		ScheduledTimeZone:    in.ScheduledTimeZone,
		TargetAudienceFilter: in.TargetAudienceFilter,
	}
	if a.IsActive {
		if missing := a.MissingForActivation(); len(missing) > 0 {
			return nil, apperrors.NewPreconditionFailed("new", missing...)
		}
	}

	if err := s.automations.Create(ctx, a); err != nil {
		return nil, errors.Wrap(err, "create automation")
	}
	s.logger.WithFields(logrus.Fields{
		"automation_id": a.ID,
		"wedding_id":    a.WeddingID,
		"active":        a.IsActive,
	}).Info("automation created")
	return a, nil
}

func (s *AutomationService) Get(ctx context.Context, id uuid.UUID) (*models.Automation, error) {
	return s.automations.GetByID(ctx, id)
}

func (s *AutomationService) List(ctx context.Context, weddingID uuid.UUID) ([]models.Automation, error) {
	return s.automations.ListByWedding(ctx, weddingID)
}

// ListDue returns automations the dispatcher may pick up at now.
func (s *AutomationService) ListDue(ctx context.Context, now time.Time) ([]models.Automation, error) {
	return s.automations.ListReady(ctx, now)
}

func (s *AutomationService) UpdateSchedule(ctx context.Context, id uuid.UUID, scheduledTime time.Time) (*models.Automation, error) {
	if scheduledTime.IsZero() {
		return nil, apperrors.NewValidation("scheduledTime", "required")
	}
	return s.ApplyPatch(ctx, id, models.AutomationPatch{ScheduledTime: &scheduledTime})
}

func (s *AutomationService) UpdateTemplate(ctx context.Context, id uuid.UUID, templateSid string) (*models.Automation, error) {
	if templateSid == "" {
		return nil, apperrors.NewValidation("messageTemplateId", "required")
	}
	return s.ApplyPatch(ctx, id, models.AutomationPatch{MessageTemplateID: &templateSid})
}

// ApplyPatch writes every set field of patch in one conditional update. It
// fails with InvalidStateError once the automation has left pending.
func (s *AutomationService) ApplyPatch(ctx context.Context, id uuid.UUID, patch models.AutomationPatch) (*models.Automation, error) {
	if patch.MessageTemplateID != nil {
		if err := s.checkTemplate(ctx, *patch.MessageTemplateID); err != nil {
			return nil, err
		}
	}
	a, err := s.automations.UpdatePending(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("automation_id", id).Debug("automation updated")
	return a, nil
}

func (s *AutomationService) checkTemplate(ctx context.Context, sid string) error {
	tpl, err := s.templates.GetBySid(ctx, sid)
	if err != nil {
		return err
	}
	if tpl.ApprovalStatus != models.ApprovalApproved {
		s.logger.WithFields(logrus.Fields{
			"template_sid":    sid,
			"approval_status": tpl.ApprovalStatus,
		}).Warn("template selected before provider approval")
	}
	return nil
}

// Activate opens the approval gate. Activating an active automation is a no-op.
func (s *AutomationService) Activate(ctx context.Context, id uuid.UUID) (*models.Automation, error) {
	a, err := s.automations.Activate(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("automation_id", id).Info("automation activated")
	return a, nil
}

func (s *AutomationService) Deactivate(ctx context.Context, id uuid.UUID) (*models.Automation, error) {
	a, err := s.automations.Deactivate(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("automation_id", id).Info("automation deactivated")
	return a, nil
}

// BeginDispatch claims the automation for one dispatcher. Losing the race
// returns apperrors.ErrConcurrentClaimLost.
func (s *AutomationService) BeginDispatch(ctx context.Context, id uuid.UUID, now time.Time) (*models.Automation, error) {
	return s.automations.ClaimForDispatch(ctx, id, now)
}

// Complete records the outcome of a dispatch. The automation fails only when
// no message succeeded.
func (s *AutomationService) Complete(ctx context.Context, id uuid.UUID, stats models.CompletionStats, sentMessageIDs []string) (*models.Automation, error) {
	if stats.CompletedAt.IsZero() {
		stats.CompletedAt = s.now().UTC()
	}
	status := stats.OutcomeStatus()
	a, err := s.automations.Finish(ctx, id, status, stats, sentMessageIDs)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"automation_id": id,
		"status":        status,
		"successful":    stats.SuccessfulMessages,
		"failed":        stats.FailedMessages,
	}).Info("automation finished")
	return a, nil
}

// Abort fails a claimed automation that could not be sent at all.
func (s *AutomationService) Abort(ctx context.Context, id uuid.UUID, reason string) (*models.Automation, error) {
	stats := models.CompletionStats{CompletedAt: s.now().UTC(), FailureReason: reason}
	a, err := s.automations.Finish(ctx, id, models.AutomationFailed, stats, nil)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"automation_id": id, "reason": reason}).Warn("automation aborted")
	return a, nil
}
