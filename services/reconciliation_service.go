// services/reconciliation_service.go
package services

import (
	"context"
	"time"

	"weddingflow-backend/models"
	"weddingflow-backend/providers"
	"weddingflow-backend/repository"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type EntityKind string

const (
	EntityTemplate EntityKind = "template"
	EntityMessage  EntityKind = "message"
)

// SyncEntity is a locally cached status that the provider owns.
type SyncEntity struct {
	Kind   EntityKind `json:"kind"`
	Ref    string     `json:"ref"`
	Status string     `json:"status"`
}

// MayChange reports whether the provider can still move the entity.
func (e SyncEntity) MayChange() bool {
	if e.Ref == "" {
		return false
	}
	switch e.Kind {
	case EntityTemplate:
		return models.ApprovalStatus(e.Status).MayChange()
	case EntityMessage:
		return !models.MessageStatusIsFinal(e.Status)
	}
	return false
}

type SyncResult struct {
	Kind     EntityKind `json:"kind"`
	Ref      string     `json:"ref"`
	Previous string     `json:"previous"`
	Current  string     `json:"current"`
	Changed  bool       `json:"changed"`
	Err      error      `json:"-"`
	Error    string     `json:"error,omitempty"`
}

// ReconciliationService polls the provider for entities whose status may
// still change and writes differences through to the store. Calls are made
// one at a time, spaced by a rate limiter.
type ReconciliationService struct {
	templates    repository.TemplateRepository
	sentMessages repository.SentMessageRepository
	provider     providers.Client
	limiter      *rate.Limiter
	batchSize    int
	logger       logrus.FieldLogger
}

func NewReconciliationService(store *repository.Store, provider providers.Client, delay time.Duration, batchSize int, logger logrus.FieldLogger) *ReconciliationService {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &ReconciliationService{
		templates:    store.Templates,
		sentMessages: store.SentMessages,
		provider:     provider,
		limiter:      rate.NewLimiter(limit, 1),
		batchSize:    batchSize,
		logger:       logger.WithField("service", "reconciliation"),
	}
}

// SyncAll reconciles every template awaiting approval and every message
// without a final delivery status.
func (s *ReconciliationService) SyncAll(ctx context.Context) ([]SyncResult, error) {
	templates, err := s.templates.ListByApprovalStatus(ctx,
		models.ApprovalPending, models.ApprovalSubmitted, models.ApprovalReceived)
	if err != nil {
		return nil, errors.Wrap(err, "list templates awaiting approval")
	}
	messages, err := s.sentMessages.ListUnsettled(ctx, s.batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "list unsettled messages")
	}

	entities := make([]SyncEntity, 0, len(templates)+len(messages))
	for _, t := range templates {
		entities = append(entities, SyncEntity{Kind: EntityTemplate, Ref: t.Sid, Status: string(t.ApprovalStatus)})
	}
	for _, m := range messages {
		entities = append(entities, SyncEntity{Kind: EntityMessage, Ref: m.Sid, Status: m.Status})
	}
	return s.Sync(ctx, entities), nil
}

// Sync polls each eligible entity in order. Poll failures are recorded on
// the result and the loop moves on; the next run retries them.
func (s *ReconciliationService) Sync(ctx context.Context, entities []SyncEntity) []SyncResult {
	results := make([]SyncResult, 0, len(entities))
	changed := 0
	for _, e := range entities {
		if !e.MayChange() {
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			s.logger.WithError(err).Info("reconciliation interrupted")
			break
		}

		res := s.syncOne(ctx, e)
		if res.Err != nil {
			res.Error = res.Err.Error()
			s.logger.WithError(res.Err).WithFields(logrus.Fields{"kind": e.Kind, "ref": e.Ref}).Warn("poll failed")
		} else if res.Changed {
			changed++
			s.logger.WithFields(logrus.Fields{
				"kind": e.Kind, "ref": e.Ref, "from": res.Previous, "to": res.Current,
			}).Info("status reconciled")
		}
		results = append(results, res)
	}
	s.logger.WithFields(logrus.Fields{"polled": len(results), "changed": changed}).Debug("reconciliation finished")
	return results
}

func (s *ReconciliationService) syncOne(ctx context.Context, e SyncEntity) SyncResult {
	res := SyncResult{Kind: e.Kind, Ref: e.Ref, Previous: e.Status, Current: e.Status}

	switch e.Kind {
	case EntityTemplate:
		approval, err := s.provider.GetTemplateApprovalStatus(ctx, e.Ref)
		if err != nil {
			res.Err = err
			return res
		}
		res.Current = string(approval.Status)
		if res.Current == e.Status {
			return res
		}
		if err := s.templates.UpdateApprovalStatus(ctx, e.Ref, approval.Status); err != nil {
			res.Err = errors.Wrap(err, "store approval status")
			return res
		}
		res.Changed = true

	case EntityMessage:
		status, err := s.provider.GetMessageStatus(ctx, e.Ref)
		if err != nil {
			res.Err = err
			return res
		}
		res.Current = status.Status
		if res.Current == e.Status {
			return res
		}
		if err := s.sentMessages.UpdateStatus(ctx, e.Ref, status.Status, status.ErrorCode, status.ErrorMessage); err != nil {
			res.Err = errors.Wrap(err, "store message status")
			return res
		}
		res.Changed = true
	}
	return res
}
