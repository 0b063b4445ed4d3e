// services/fixtures_test.go
package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"weddingflow-backend/apperrors"
	"weddingflow-backend/models"
	"weddingflow-backend/providers"
	"weddingflow-backend/repository"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu       sync.Mutex
	sent     []providers.SendRequest
	failTo   map[string]bool
	onSend   func(req providers.SendRequest)
	statuses map[string]*providers.MessageStatus
	pollErr  map[string]error
	polls    []string

	approvals map[string]models.ApprovalStatus
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		failTo:    make(map[string]bool),
		statuses:  make(map[string]*providers.MessageStatus),
		pollErr:   make(map[string]error),
		approvals: make(map[string]models.ApprovalStatus),
	}
}

func (p *fakeProvider) Send(ctx context.Context, req providers.SendRequest) (*providers.SendReceipt, error) {
	p.mu.Lock()
	p.sent = append(p.sent, req)
	n := len(p.sent)
	fail := p.failTo[req.To]
	hook := p.onSend
	p.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	if fail {
		return nil, &apperrors.ExternalSendError{To: req.To, Err: errors.New("provider rejected recipient")}
	}
	return &providers.SendReceipt{Sid: fmt.Sprintf("SM%03d", n), Status: models.MessageQueued, DateCreated: time.Now().UTC()}, nil
}

func (p *fakeProvider) GetMessageStatus(ctx context.Context, sid string) (*providers.MessageStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.polls = append(p.polls, sid)
	if err := p.pollErr[sid]; err != nil {
		return nil, &apperrors.ExternalPollError{Kind: "message", Ref: sid, Err: err}
	}
	status, ok := p.statuses[sid]
	if !ok {
		return nil, apperrors.NewContractViolation("fetch message", "status", "missing")
	}
	return status, nil
}

func (p *fakeProvider) GetTemplateApprovalStatus(ctx context.Context, sid string) (*providers.TemplateApproval, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.polls = append(p.polls, sid)
	if err := p.pollErr[sid]; err != nil {
		return nil, &apperrors.ExternalPollError{Kind: "template", Ref: sid, Err: err}
	}
	return &providers.TemplateApproval{Sid: sid, Status: p.approvals[sid]}, nil
}

func (p *fakeProvider) sentCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fixture struct {
	ctx         context.Context
	now         time.Time
	store       *repository.Store
	provider    *fakeProvider
	automations *AutomationService
	approvals   *ApprovalService
	dispatcher  *Dispatcher
	wedding     *models.Wedding
	template    *models.Template
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:      context.Background(),
		now:      time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		store:    repository.NewMemoryStore(),
		provider: newFakeProvider(),
	}
	clock := func() time.Time { return f.now }

	f.automations = NewAutomationService(f.store.Automations, f.store.Templates, quietLogger())
	f.automations.now = clock
	f.approvals = NewApprovalService(f.automations, quietLogger())
	f.dispatcher = NewDispatcher(f.automations, f.store, f.provider, NewVariableEngine("https://example.com"), quietLogger())
	f.dispatcher.now = clock

	event := time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC)
	f.wedding = &models.Wedding{BrideName: "Noa", GroomName: "Eitan", EventDate: &event, StartTime: "19:30", Locale: "en"}
	require.NoError(t, f.store.Weddings.Create(f.ctx, f.wedding))

	f.template = &models.Template{
		Sid:            "HX100",
		FriendlyName:   "rsvp_invite",
		Body:           "Hi {{1}}, {{2}} invite you. RSVP: {{3}}",
		Variables:      map[string]string{"1": "{{guestName}}", "2": "{{coupleName}}", "3": "{{rsvpLink}}"},
		ApprovalStatus: models.ApprovalApproved,
	}
	require.NoError(t, f.store.Templates.Create(f.ctx, f.template))
	return f
}

// addGuests creates guests named "Guest 1", "Guest 2", ... in that order.
func (f *fixture) addGuests(t *testing.T, phones ...string) []models.Guest {
	t.Helper()
	guests := make([]models.Guest, 0, len(phones))
	for i, phone := range phones {
		g := &models.Guest{WeddingID: f.wedding.ID, Name: fmt.Sprintf("Guest %d", i+1), Phone: phone}
		require.NoError(t, f.store.Guests.Create(f.ctx, g))
		guests = append(guests, *g)
	}
	return guests
}

// addReady creates an active pending automation due one second ago.
func (f *fixture) addReady(t *testing.T) *models.Automation {
	t.Helper()
	sid := f.template.Sid
	at := f.now.Add(-time.Second)
	a, err := f.automations.Create(f.ctx, CreateAutomationInput{
		WeddingID:         f.wedding.ID,
		Name:              "RSVP invite",
		AutomationType:    models.AutomationRSVP,
		MessageTemplateID: &sid,
		ScheduledTime:     &at,
		IsActive:          true,
	})
	require.NoError(t, err)
	return a
}

// addDraft creates an inactive pending automation with nothing chosen yet.
func (f *fixture) addDraft(t *testing.T) *models.Automation {
	t.Helper()
	a, err := f.automations.Create(f.ctx, CreateAutomationInput{
		WeddingID:      f.wedding.ID,
		Name:           "Reminder",
		AutomationType: models.AutomationReminder,
	})
	require.NoError(t, err)
	return a
}
