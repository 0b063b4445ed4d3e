// services/approval_service.go
package services

import (
	"context"
	"sync"
	"time"

	"weddingflow-backend/apperrors"
	"weddingflow-backend/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Flow selects how a proposal is applied.
type Flow string

const (
	// FlowSetup persists proposals immediately.
	FlowSetup Flow = "setup"
	// FlowDashboard stages proposals until CommitEdit.
	FlowDashboard Flow = "dashboard"
)

func (f Flow) Valid() bool {
	return f == FlowSetup || f == FlowDashboard
}

// PendingChange is an edit staged against one automation.
type PendingChange struct {
	ScheduledTime     *time.Time `json:"scheduledTime,omitempty"`
	MessageTemplateID *string    `json:"messageTemplateId,omitempty"`
}

func (p PendingChange) IsEmpty() bool {
	return p.ScheduledTime == nil && p.MessageTemplateID == nil
}

func (p PendingChange) patch() models.AutomationPatch {
	return models.AutomationPatch{ScheduledTime: p.ScheduledTime, MessageTemplateID: p.MessageTemplateID}
}

// merge overlays the fields set in next.
func (p PendingChange) merge(next PendingChange) PendingChange {
	if next.ScheduledTime != nil {
		t := *next.ScheduledTime
		p.ScheduledTime = &t
	}
	if next.MessageTemplateID != nil {
		sid := *next.MessageTemplateID
		p.MessageTemplateID = &sid
	}
	return p
}

type ApprovalState struct {
	TemplateApproved bool           `json:"templateApproved"`
	TimeApproved     bool           `json:"timeApproved"`
	CanActivate      bool           `json:"canActivate"`
	Staged           *PendingChange `json:"staged,omitempty"`
}

type stagedEdit struct {
	change  PendingChange
	version uint64
}

// approvals records each sub-approval either as persisted on the entity or
// as resting on a staged edit. Staged approvals go away with the edit.
type approvals struct {
	template       bool
	time           bool
	stagedTemplate bool
	stagedTime     bool
}

func (a approvals) templateApproved() bool { return a.template || a.stagedTemplate }

func (a approvals) timeApproved() bool { return a.time || a.stagedTime }

// ApprovalService gates activation behind a template approval and a time
// approval and holds dashboard edits until they are committed.
type ApprovalService struct {
	automations *AutomationService
	logger      logrus.FieldLogger

	mu        sync.Mutex
	approvals map[uuid.UUID]approvals
	staged    map[uuid.UUID]stagedEdit
	version   uint64
}

func NewApprovalService(automations *AutomationService, logger logrus.FieldLogger) *ApprovalService {
	return &ApprovalService{
		automations: automations,
		logger:      logger.WithField("service", "approval"),
		approvals:   make(map[uuid.UUID]approvals),
		staged:      make(map[uuid.UUID]stagedEdit),
	}
}

func (s *ApprovalService) ProposeTemplate(ctx context.Context, id uuid.UUID, templateSid string, flow Flow) error {
	if templateSid == "" {
		return apperrors.NewValidation("messageTemplateId", "required")
	}
	switch flow {
	case FlowSetup:
		if _, err := s.automations.UpdateTemplate(ctx, id, templateSid); err != nil {
			return err
		}
		s.mark(id, func(a *approvals) { a.template = true })
	case FlowDashboard:
		s.StageEdit(id, PendingChange{MessageTemplateID: &templateSid})
		s.mark(id, func(a *approvals) { a.stagedTemplate = true })
	default:
		return apperrors.NewValidation("flow", "unknown value "+string(flow))
	}
	return nil
}

func (s *ApprovalService) ProposeTime(ctx context.Context, id uuid.UUID, scheduledTime time.Time, flow Flow) error {
	if scheduledTime.IsZero() {
		return apperrors.NewValidation("scheduledTime", "required")
	}
	switch flow {
	case FlowSetup:
		if _, err := s.automations.UpdateSchedule(ctx, id, scheduledTime); err != nil {
			return err
		}
		s.mark(id, func(a *approvals) { a.time = true })
	case FlowDashboard:
		s.StageEdit(id, PendingChange{ScheduledTime: &scheduledTime})
		s.mark(id, func(a *approvals) { a.stagedTime = true })
	default:
		return apperrors.NewValidation("flow", "unknown value "+string(flow))
	}
	return nil
}

func (s *ApprovalService) mark(id uuid.UUID, set func(a *approvals)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.approvals[id]
	set(&a)
	s.approvals[id] = a
}

func (s *ApprovalService) CanActivate(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.approvals[id]
	return a.templateApproved() && a.timeApproved()
}

func (s *ApprovalService) Approvals(id uuid.UUID) ApprovalState {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.approvals[id]
	state := ApprovalState{
		TemplateApproved: a.templateApproved(),
		TimeApproved:     a.timeApproved(),
		CanActivate:      a.templateApproved() && a.timeApproved(),
	}
	if edit, ok := s.staged[id]; ok {
		change := PendingChange{}.merge(edit.change)
		state.Staged = &change
	}
	return state
}

// Approve activates the automation once both approvals are given, committing
// any staged edit first. It returns false without side effects otherwise.
// The approvals for id are forgotten once activation succeeds.
func (s *ApprovalService) Approve(ctx context.Context, id uuid.UUID) (bool, error) {
	if !s.CanActivate(id) {
		s.logger.WithField("automation_id", id).Debug("approve ignored, approvals incomplete")
		return false, nil
	}
	if _, err := s.CommitEdit(ctx, id); err != nil {
		return false, err
	}
	if _, err := s.automations.Activate(ctx, id); err != nil {
		return false, err
	}

	s.mu.Lock()
	delete(s.approvals, id)
	s.mu.Unlock()
	return true, nil
}

// StageEdit merges partial into the edit staged for id. The automation
// itself is not touched.
func (s *ApprovalService) StageEdit(id uuid.UUID, partial PendingChange) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.version++
	current := s.staged[id]
	s.staged[id] = stagedEdit{change: current.change.merge(partial), version: s.version}
}

// CancelEdit discards the staged edit and withdraws the approvals that were
// given by staging it.
func (s *ApprovalService) CancelEdit(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.staged, id)

	a, ok := s.approvals[id]
	if !ok {
		return
	}
	a.stagedTemplate, a.stagedTime = false, false
	if a == (approvals{}) {
		delete(s.approvals, id)
		return
	}
	s.approvals[id] = a
}

// Staged returns a copy of the edit staged for id.
func (s *ApprovalService) Staged(id uuid.UUID) (PendingChange, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	edit, ok := s.staged[id]
	if !ok {
		return PendingChange{}, false
	}
	return PendingChange{}.merge(edit.change), true
}

// CommitEdit writes the staged edit for id in a single conditional update.
// The entry is dropped only after the write succeeds, and only if no newer
// edit was staged in the meantime. With nothing staged it returns the
// automation unchanged.
func (s *ApprovalService) CommitEdit(ctx context.Context, id uuid.UUID) (*models.Automation, error) {
	s.mu.Lock()
	edit, ok := s.staged[id]
	s.mu.Unlock()

	if !ok || edit.change.IsEmpty() {
		return s.automations.Get(ctx, id)
	}

	a, err := s.automations.ApplyPatch(ctx, id, edit.change.patch())
	if err != nil {
		s.logger.WithError(err).WithField("automation_id", id).Warn("staged edit rejected")
		return nil, err
	}

	s.mu.Lock()
	if current, ok := s.staged[id]; ok && current.version == edit.version {
		delete(s.staged, id)
	}
	if ap, ok := s.approvals[id]; ok {
		// committed values are now on the entity
		if ap.stagedTemplate && edit.change.MessageTemplateID != nil {
			ap.template, ap.stagedTemplate = true, false
		}
		if ap.stagedTime && edit.change.ScheduledTime != nil {
			ap.time, ap.stagedTime = true, false
		}
		s.approvals[id] = ap
	}
	s.mu.Unlock()

	s.logger.WithField("automation_id", id).Info("staged edit committed")
	return a, nil
}
