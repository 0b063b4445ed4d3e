// services/dispatcher.go
package services

import (
	"context"
	"time"

	"weddingflow-backend/apperrors"
	"weddingflow-backend/models"
	"weddingflow-backend/providers"
	"weddingflow-backend/repository"
	"weddingflow-backend/utils"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type DispatchResult struct {
	AutomationID   uuid.UUID               `json:"automationId"`
	Status         models.AutomationStatus `json:"status"`
	Stats          models.CompletionStats  `json:"completionStats"`
	SentMessageIDs []string                `json:"sentMessageIds"`
}

// Dispatcher sends due automations. Claiming an automation is the only
// serialization point, so any number of dispatchers may run at once.
type Dispatcher struct {
	automations  *AutomationService
	templates    repository.TemplateRepository
	weddings     repository.WeddingRepository
	guests       repository.GuestRepository
	sentMessages repository.SentMessageRepository
	provider     providers.Client
	engine       *VariableEngine
	logger       logrus.FieldLogger
	now          func() time.Time
}

func NewDispatcher(automations *AutomationService, store *repository.Store, provider providers.Client, engine *VariableEngine, logger logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		automations:  automations,
		templates:    store.Templates,
		weddings:     store.Weddings,
		guests:       store.Guests,
		sentMessages: store.SentMessages,
		provider:     provider,
		engine:       engine,
		logger:       logger.WithField("service", "dispatcher"),
		now:          time.Now,
	}
}

// DispatchDue sends every automation that is ready now. Claims lost to other
// dispatchers are skipped silently.
func (d *Dispatcher) DispatchDue(ctx context.Context) ([]DispatchResult, error) {
	due, err := d.automations.ListDue(ctx, d.now())
	if err != nil {
		return nil, errors.Wrap(err, "list due automations")
	}

	results := make([]DispatchResult, 0, len(due))
	for _, a := range due {
		if ctx.Err() != nil {
			break
		}
		res, err := d.Dispatch(ctx, a.ID)
		switch {
		case err == nil:
			results = append(results, *res)
		case apperrors.IsConcurrentClaimLost(err):
			d.logger.WithField("automation_id", a.ID).Debug("claimed by another dispatcher")
		default:
			d.logger.WithError(err).WithField("automation_id", a.ID).Error("dispatch failed")
		}
	}
	return results, nil
}

// Dispatch claims the automation and sends it to every recipient. Per
// recipient failures are recorded on the SentMessage and never stop the
// batch. Cancelling ctx stops further sends; the remaining recipients are
// recorded as failed without contacting the provider.
func (d *Dispatcher) Dispatch(ctx context.Context, id uuid.UUID) (*DispatchResult, error) {
	a, err := d.automations.BeginDispatch(ctx, id, d.now())
	if err != nil {
		return nil, err
	}
	log := d.logger.WithFields(logrus.Fields{"automation_id": a.ID, "wedding_id": a.WeddingID})
	log.Info("dispatch started")

	// Bookkeeping must land even when the caller gives up mid-batch.
	bk := context.WithoutCancel(ctx)

	tpl, wedding, guests, err := d.resolve(bk, a)
	if err != nil {
		log.WithError(err).Error("dispatch aborted")
		failed, abortErr := d.automations.Abort(bk, a.ID, err.Error())
		if abortErr != nil {
			return nil, errors.Wrap(abortErr, "abort automation")
		}
		return resultOf(failed), nil
	}

	stats := models.CompletionStats{}
	ids := make([]string, 0, len(guests))
	for _, guest := range guests {
		msg := d.sendOne(ctx, a, tpl, wedding, guest, log)
		if err := d.sentMessages.Create(bk, msg); err != nil {
			log.WithError(err).WithField("guest_id", guest.ID).Error("failed to record sent message")
		} else {
			ids = append(ids, msg.ID.String())
		}
		if msg.Succeeded() {
			stats.SuccessfulMessages++
		} else {
			stats.FailedMessages++
		}
	}
	stats.CompletedAt = d.now().UTC()

	done, err := d.automations.Complete(bk, a.ID, stats, ids)
	if err != nil {
		return nil, errors.Wrap(err, "complete automation")
	}
	return resultOf(done), nil
}

func (d *Dispatcher) resolve(ctx context.Context, a *models.Automation) (*models.Template, *models.Wedding, []models.Guest, error) {
	if a.MessageTemplateID == nil {
		return nil, nil, nil, apperrors.NewPreconditionFailed(a.ID.String(), "messageTemplateId")
	}
	tpl, err := d.templates.GetBySid(ctx, *a.MessageTemplateID)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "load template")
	}
	wedding, err := d.weddings.GetByID(ctx, a.WeddingID)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "load wedding")
	}
	guests, err := d.guests.FindAudience(ctx, a.WeddingID, a.TargetAudienceFilter)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "resolve audience")
	}
	return tpl, wedding, guests, nil
}

func (d *Dispatcher) sendOne(ctx context.Context, a *models.Automation, tpl *models.Template, wedding *models.Wedding, guest models.Guest, log logrus.FieldLogger) *models.SentMessage {
	now := d.now().UTC()
	msg := &models.SentMessage{
		AutomationID: a.ID,
		GuestID:      guest.ID,
		To:           utils.NormalizePhone(guest.Phone),
		Status:       models.MessageFailed,
		DateCreated:  now,
		DateUpdated:  now,
	}
	if a.Channel == models.ChannelWhatsApp {
		msg.From = wedding.WhatsAppFrom
	}
	fail := func(err error) *models.SentMessage {
		text := err.Error()
		msg.ErrorMessage = &text
		log.WithError(err).WithField("guest_id", guest.ID).Warn("recipient failed")
		return msg
	}

	if ctx.Err() != nil {
		return fail(apperrors.ErrDispatchCancelled)
	}
	if !utils.ValidatePhone(msg.To) {
		return fail(&apperrors.ExternalSendError{To: guest.Phone, Err: errors.New("invalid phone number")})
	}

	vars := d.engine.PopulateVariables(guest, *wedding, "")
	msg.ContentVariables = ContentVariables(*tpl, vars)
	msg.RenderedBody = RenderBody(*tpl, vars, msg.ContentVariables)
	if unresolved := UnresolvedVariables(msg.RenderedBody); len(unresolved) > 0 {
		log.WithFields(logrus.Fields{
			"guest_id":   guest.ID,
			"template":   tpl.Sid,
			"unresolved": unresolved,
		}).Warn("placeholders left unresolved")
	}

	receipt, err := d.provider.Send(ctx, providers.SendRequest{
		To:          msg.To,
		Channel:     a.Channel,
		From:        msg.From,
		TemplateSid: tpl.Sid,
		Variables:   msg.ContentVariables,
		Body:        msg.RenderedBody,
	})
	if err != nil {
		return fail(err)
	}

	msg.Sid = receipt.Sid
	msg.Status = receipt.Status
	if !receipt.DateCreated.IsZero() {
		msg.DateCreated = receipt.DateCreated
		msg.DateUpdated = receipt.DateCreated
	}
	return msg
}

func resultOf(a *models.Automation) *DispatchResult {
	res := &DispatchResult{AutomationID: a.ID, Status: a.Status, SentMessageIDs: a.SentMessageIDs}
	if a.CompletionStats != nil {
		res.Stats = *a.CompletionStats
	}
	return res
}
