// repository/memory.go
package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"weddingflow-backend/apperrors"
	"weddingflow-backend/models"

	"github.com/google/uuid"
)

// memoryDB backs the in-process store. One mutex guards every collection so
// conditional writes are atomic, the same guarantee a single UPDATE gives.
type memoryDB struct {
	mu           sync.Mutex
	automations  map[uuid.UUID]models.Automation
	templates    map[string]models.Template
	sentMessages []models.SentMessage
	guests       map[uuid.UUID]models.Guest
	weddings     map[uuid.UUID]models.Wedding
}

// NewMemoryStore returns a Store held entirely in memory. Used by tests and
// by local runs without a database.
func NewMemoryStore() *Store {
	db := &memoryDB{
		automations: make(map[uuid.UUID]models.Automation),
		templates:   make(map[string]models.Template),
		guests:      make(map[uuid.UUID]models.Guest),
		weddings:    make(map[uuid.UUID]models.Wedding),
	}
	return &Store{
		Automations:  &memoryAutomations{db},
		Templates:    &memoryTemplates{db},
		SentMessages: &memorySentMessages{db},
		Guests:       &memoryGuests{db},
		Weddings:     &memoryWeddings{db},
	}
}

type memoryAutomations struct{ db *memoryDB }

func (r *memoryAutomations) Create(ctx context.Context, a *models.Automation) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	if a.ScheduledTime != nil {
		t := a.ScheduledTime.UTC()
		a.ScheduledTime = &t
	}
	r.db.automations[a.ID] = cloneAutomation(*a)
	return nil
}

func (r *memoryAutomations) GetByID(ctx context.Context, id uuid.UUID) (*models.Automation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.get(id)
}

func (r *memoryAutomations) get(id uuid.UUID) (*models.Automation, error) {
	a, ok := r.db.automations[id]
	if !ok {
		return nil, apperrors.NewNotFound("automation", id.String())
	}
	out := cloneAutomation(a)
	return &out, nil
}

func (r *memoryAutomations) ListByWedding(ctx context.Context, weddingID uuid.UUID) ([]models.Automation, error) {
	return r.list(func(a models.Automation) bool { return a.WeddingID == weddingID }), nil
}

func (r *memoryAutomations) ListReady(ctx context.Context, now time.Time) ([]models.Automation, error) {
	return r.list(func(a models.Automation) bool { return a.IsReady(now) }), nil
}

func (r *memoryAutomations) list(keep func(models.Automation) bool) []models.Automation {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := make([]models.Automation, 0)
	for _, a := range r.db.automations {
		if keep(a) {
			out = append(out, cloneAutomation(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].ScheduledTime, out[j].ScheduledTime
		switch {
		case ti == nil && tj == nil:
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		case ti == nil:
			return false
		case tj == nil:
			return true
		}
		return ti.Before(*tj)
	})
	return out
}

func (r *memoryAutomations) UpdatePending(ctx context.Context, id uuid.UUID, patch models.AutomationPatch) (*models.Automation, error) {
	return r.mutate(id, func(a *models.Automation) error {
		if patch.IsEmpty() {
			return nil
		}
		if a.Status != models.AutomationPending {
			return apperrors.NewInvalidState(id.String(), string(a.Status), "edit")
		}
		patch.Apply(a)
		if a.ScheduledTime != nil {
			t := a.ScheduledTime.UTC()
			a.ScheduledTime = &t
		}
		return nil
	})
}

func (r *memoryAutomations) Activate(ctx context.Context, id uuid.UUID) (*models.Automation, error) {
	return r.mutate(id, func(a *models.Automation) error {
		if missing := a.MissingForActivation(); len(missing) > 0 {
			return apperrors.NewPreconditionFailed(id.String(), missing...)
		}
		a.IsActive = true
		return nil
	})
}

func (r *memoryAutomations) Deactivate(ctx context.Context, id uuid.UUID) (*models.Automation, error) {
	return r.mutate(id, func(a *models.Automation) error {
		if a.Status != models.AutomationPending {
			return apperrors.NewInvalidState(id.String(), string(a.Status), "deactivate")
		}
		a.IsActive = false
		return nil
	})
}

func (r *memoryAutomations) ClaimForDispatch(ctx context.Context, id uuid.UUID, now time.Time) (*models.Automation, error) {
	return r.mutate(id, func(a *models.Automation) error {
		switch {
		case a.Status != models.AutomationPending:
			return apperrors.ErrConcurrentClaimLost
		case !a.IsActive:
			return apperrors.NewPreconditionFailed(id.String(), "isActive")
		case !a.IsDue(now):
			return apperrors.NewPreconditionFailed(id.String(), "due scheduledTime")
		}
		a.Status = models.AutomationInProgress
		return nil
	})
}

func (r *memoryAutomations) Finish(ctx context.Context, id uuid.UUID, status models.AutomationStatus, stats models.CompletionStats, sentMessageIDs []string) (*models.Automation, error) {
	return r.mutate(id, func(a *models.Automation) error {
		if a.Status != models.AutomationInProgress || !a.Status.CanTransitionTo(status) {
			return apperrors.NewInvalidState(id.String(), string(a.Status), "finish as "+string(status))
		}
		a.Status = status
		s := stats
		a.CompletionStats = &s
		a.SentMessageIDs = append([]string{}, sentMessageIDs...)
		return nil
	})
}

// mutate applies fn to a copy and stores it only when fn succeeds.
func (r *memoryAutomations) mutate(id uuid.UUID, fn func(a *models.Automation) error) (*models.Automation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	current, ok := r.db.automations[id]
	if !ok {
		return nil, apperrors.NewNotFound("automation", id.String())
	}
	next := cloneAutomation(current)
	if err := fn(&next); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()
	r.db.automations[id] = next
	out := cloneAutomation(next)
	return &out, nil
}

func cloneAutomation(a models.Automation) models.Automation {
	if a.ScheduledTime != nil {
		t := *a.ScheduledTime
		a.ScheduledTime = &t
	}
	if a.MessageTemplateID != nil {
		s := *a.MessageTemplateID
		a.MessageTemplateID = &s
	}
	if a.CompletionStats != nil {
		s := *a.CompletionStats
		a.CompletionStats = &s
	}
	if a.SentMessageIDs != nil {
		a.SentMessageIDs = append([]string{}, a.SentMessageIDs...)
	}
	return a
}

type memoryTemplates struct{ db *memoryDB }

func (r *memoryTemplates) Create(ctx context.Context, t *models.Template) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.ApprovalStatus == "" {
		t.ApprovalStatus = models.ApprovalPending
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	r.db.templates[t.Sid] = *t
	return nil
}

func (r *memoryTemplates) GetBySid(ctx context.Context, sid string) (*models.Template, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t, ok := r.db.templates[sid]
	if !ok {
		return nil, apperrors.NewNotFound("template", sid)
	}
	return &t, nil
}

func (r *memoryTemplates) List(ctx context.Context, weddingID uuid.UUID) ([]models.Template, error) {
	return r.filter(func(t models.Template) bool {
		return t.WeddingID == nil || *t.WeddingID == weddingID
	}), nil
}

func (r *memoryTemplates) ListByApprovalStatus(ctx context.Context, statuses ...models.ApprovalStatus) ([]models.Template, error) {
	return r.filter(func(t models.Template) bool {
		for _, s := range statuses {
			if t.ApprovalStatus == s {
				return true
			}
		}
		return false
	}), nil
}

func (r *memoryTemplates) filter(keep func(models.Template) bool) []models.Template {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := make([]models.Template, 0)
	for _, t := range r.db.templates {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FriendlyName < out[j].FriendlyName })
	return out
}

func (r *memoryTemplates) UpdateApprovalStatus(ctx context.Context, sid string, status models.ApprovalStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t, ok := r.db.templates[sid]
	if !ok {
		return apperrors.NewNotFound("template", sid)
	}
	t.ApprovalStatus = status
	t.UpdatedAt = time.Now().UTC()
	r.db.templates[sid] = t
	return nil
}

type memorySentMessages struct{ db *memoryDB }

func (r *memorySentMessages) Create(ctx context.Context, m *models.SentMessage) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.DateCreated.IsZero() {
		m.DateCreated = time.Now().UTC()
	}
	if m.DateUpdated.IsZero() {
		m.DateUpdated = m.DateCreated
	}
	r.db.sentMessages = append(r.db.sentMessages, *m)
	return nil
}

func (r *memorySentMessages) ListByAutomation(ctx context.Context, automationID uuid.UUID) ([]models.SentMessage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := make([]models.SentMessage, 0)
	for _, m := range r.db.sentMessages {
		if m.AutomationID == automationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memorySentMessages) ListUnsettled(ctx context.Context, limit int) ([]models.SentMessage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := make([]models.SentMessage, 0)
	for _, m := range r.db.sentMessages {
		if m.Sid == "" || models.MessageStatusIsFinal(m.Status) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memorySentMessages) UpdateStatus(ctx context.Context, sid, status string, errorCode *int, errorMessage *string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	found := false
	for i := range r.db.sentMessages {
		m := &r.db.sentMessages[i]
		if m.Sid != sid {
			continue
		}
		found = true
		m.Status = status
		if errorCode != nil {
			code := *errorCode
			m.ErrorCode = &code
		}
		if errorMessage != nil {
			msg := *errorMessage
			m.ErrorMessage = &msg
		}
		m.DateUpdated = time.Now().UTC()
	}
	if !found {
		return apperrors.NewNotFound("sent message", sid)
	}
	return nil
}

type memoryGuests struct{ db *memoryDB }

func (r *memoryGuests) Create(ctx context.Context, g *models.Guest) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.RSVPStatus == "" {
		g.RSVPStatus = models.RSVPPending
	}
	now := time.Now().UTC()
	g.CreatedAt, g.UpdatedAt = now, now
	r.db.guests[g.ID] = *g
	return nil
}

func (r *memoryGuests) GetByID(ctx context.Context, id uuid.UUID) (*models.Guest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	g, ok := r.db.guests[id]
	if !ok {
		return nil, apperrors.NewNotFound("guest", id.String())
	}
	return &g, nil
}

func (r *memoryGuests) FindAudience(ctx context.Context, weddingID uuid.UUID, filter models.AudienceFilter) ([]models.Guest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := make([]models.Guest, 0)
	for _, g := range r.db.guests {
		if g.WeddingID == weddingID && filter.Matches(g) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memoryWeddings struct{ db *memoryDB }

func (r *memoryWeddings) Create(ctx context.Context, w *models.Wedding) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	now := time.Now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now
	r.db.weddings[w.ID] = *w
	return nil
}

func (r *memoryWeddings) GetByID(ctx context.Context, id uuid.UUID) (*models.Wedding, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	w, ok := r.db.weddings[id]
	if !ok {
		return nil, apperrors.NewNotFound("wedding", id.String())
	}
	return &w, nil
}
