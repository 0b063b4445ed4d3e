package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"weddingflow-backend/controllers"
	"weddingflow-backend/models"
	"weddingflow-backend/providers"
	"weddingflow-backend/repository"
	"weddingflow-backend/services"
	"weddingflow-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testSecret = "test-secret"

type stubProvider struct{ sent int }

func (p *stubProvider) Send(ctx context.Context, req providers.SendRequest) (*providers.SendReceipt, error) {
	p.sent++
	return &providers.SendReceipt{Sid: fmt.Sprintf("SM%d", p.sent), Status: models.MessageQueued}, nil
}

func (p *stubProvider) GetMessageStatus(ctx context.Context, sid string) (*providers.MessageStatus, error) {
	return &providers.MessageStatus{Sid: sid, Status: models.MessageDelivered}, nil
}

func (p *stubProvider) GetTemplateApprovalStatus(ctx context.Context, sid string) (*providers.TemplateApproval, error) {
	return &providers.TemplateApproval{Sid: sid, Status: models.ApprovalApproved}, nil
}

type RouterSuite struct {
	suite.Suite

	router   *gin.Engine
	store    *repository.Store
	provider *stubProvider
	wedding  *models.Wedding
	token    string
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	s.store = repository.NewMemoryStore()
	s.provider = &stubProvider{}
	ctx := context.Background()

	event := time.Now().UTC().AddDate(0, 0, 10)
	s.wedding = &models.Wedding{BrideName: "Noa", GroomName: "Eitan", EventDate: &event, Locale: "en"}
	s.Require().NoError(s.store.Weddings.Create(ctx, s.wedding))
	s.Require().NoError(s.store.Templates.Create(ctx, &models.Template{
		Sid:            "HX1",
		FriendlyName:   "invite",
		Body:           "Hi {{guestName}}, RSVP at {{rsvpLink}} {{tableNumber}}",
		ApprovalStatus: models.ApprovalSubmitted,
	}))

	engine := services.NewVariableEngine("https://example.com")
	automations := services.NewAutomationService(s.store.Automations, s.store.Templates, log)
	approvals := services.NewApprovalService(automations, log)
	dispatcher := services.NewDispatcher(automations, s.store, s.provider, engine, log)
	reconciler := services.NewReconciliationService(s.store, s.provider, 0, 100, log)

	s.router = SetupRouter(Deps{
		JWTSecret:      testSecret,
		AllowedOrigins: []string{"http://localhost:3000"},
		Logger:         log,
		Automations: &controllers.AutomationController{
			Automations: automations, Approvals: approvals, Dispatcher: dispatcher,
			Weddings: s.store.Weddings, SentMessages: s.store.SentMessages, Logger: log,
		},
		Templates: &controllers.TemplateController{
			Templates: s.store.Templates, Weddings: s.store.Weddings, Guests: s.store.Guests,
			Engine: engine, Logger: log,
		},
		Guests: &controllers.GuestController{Guests: s.store.Guests, Logger: log},
		Sync:   &controllers.SyncController{Reconciler: reconciler, Logger: log},
	})

	token, err := utils.GenerateToken("planner-1", s.wedding.ID.String(), testSecret, time.Hour)
	s.Require().NoError(err)
	s.token = token
}

func (s *RouterSuite) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) decode(w *httptest.ResponseRecorder, out interface{}) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), out))
}

func (s *RouterSuite) createAutomation() uuid.UUID {
	w := s.do(http.MethodPost, "/api/automations", gin.H{"name": "Invite", "automationType": "rsvp"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var a models.Automation
	s.decode(w, &a)
	return a.ID
}

func (s *RouterSuite) TestHealthIsPublic() {
	s.token = ""
	w := s.do(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *RouterSuite) TestAPIRequiresToken() {
	s.token = ""
	w := s.do(http.MethodGet, "/api/automations", nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	s.token = "not-a-jwt"
	w = s.do(http.MethodGet, "/api/automations", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterSuite) TestActivateWithoutApprovalsIsPreconditionFailed() {
	id := s.createAutomation()
	w := s.do(http.MethodPost, "/api/automations/"+id.String()+"/activate", nil)
	s.Equal(http.StatusPreconditionFailed, w.Code)
}

func (s *RouterSuite) TestApprovalAndDispatchFlow() {
	ctx := context.Background()
	s.Require().NoError(s.store.Guests.Create(ctx, &models.Guest{WeddingID: s.wedding.ID, Name: "Dana", Phone: "+15550000001"}))
	id := s.createAutomation()
	base := "/api/automations/" + id.String()

	w := s.do(http.MethodPost, base+"/approve", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var approveRes struct {
		Activated bool `json:"activated"`
	}
	s.decode(w, &approveRes)
	s.False(approveRes.Activated)

	w = s.do(http.MethodPost, base+"/proposals/template", gin.H{"messageTemplateId": "HX1", "flow": "setup"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	past := time.Now().UTC().Add(-time.Minute)
	w = s.do(http.MethodPost, base+"/proposals/time", gin.H{"scheduledTime": past, "flow": "setup"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, base+"/approve", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &approveRes)
	s.True(approveRes.Activated)

	w = s.do(http.MethodGet, base, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var view struct {
		IsActive bool `json:"isActive"`
		Offset   struct {
			Days      int    `json:"days"`
			Direction string `json:"direction"`
			Label     string `json:"label"`
		} `json:"offset"`
	}
	s.decode(w, &view)
	s.True(view.IsActive)
	s.Equal("before", view.Offset.Direction)
	s.Less(view.Offset.Days, -9)
	s.Contains(view.Offset.Label, "days before")

	w = s.do(http.MethodPost, base+"/dispatch", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var res services.DispatchResult
	s.decode(w, &res)
	s.Equal(models.AutomationCompleted, res.Status)
	s.Equal(1, res.Stats.SuccessfulMessages)
	s.Equal(1, s.provider.sent)

	w = s.do(http.MethodPost, base+"/dispatch", nil)
	s.Equal(http.StatusConflict, w.Code)

	w = s.do(http.MethodPut, base+"/schedule", gin.H{"scheduledTime": time.Now().UTC().Add(time.Hour)})
	s.Equal(http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, base+"/messages", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var messages []models.SentMessage
	s.decode(w, &messages)
	s.Len(messages, 1)
}

func (s *RouterSuite) TestStagedEditFlow() {
	id := s.createAutomation()
	base := "/api/automations/" + id.String()
	when := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)

	w := s.do(http.MethodPut, base+"/edit", gin.H{"scheduledTime": when})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, base+"/approval", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var state services.ApprovalState
	s.decode(w, &state)
	s.Require().NotNil(state.Staged)

	w = s.do(http.MethodPost, base+"/edit/commit", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var a models.Automation
	s.decode(w, &a)
	s.Require().NotNil(a.ScheduledTime)
	s.True(a.ScheduledTime.Equal(when))

	w = s.do(http.MethodPut, base+"/edit", gin.H{})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterSuite) TestOtherWeddingsAutomationIsHidden() {
	id := s.createAutomation()

	token, err := utils.GenerateToken("planner-2", uuid.New().String(), testSecret, time.Hour)
	s.Require().NoError(err)
	s.token = token

	w := s.do(http.MethodGet, "/api/automations/"+id.String(), nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/automations/not-a-uuid", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterSuite) TestTemplatePreviewAndVariables() {
	w := s.do(http.MethodPost, "/api/templates/HX1/preview", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var preview controllers.PreviewResult
	s.decode(w, &preview)
	s.Contains(preview.Body, "Hi TBD, RSVP at https://example.com/rsvp/")
	s.Equal([]string{"tableNumber"}, preview.Unresolved)

	w = s.do(http.MethodGet, "/api/templates/HX1/variables", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var vars struct {
		Used       []string                    `json:"used"`
		Validation services.VariableValidation `json:"validation"`
	}
	s.decode(w, &vars)
	s.Equal([]string{"guestName", "rsvpLink", "tableNumber"}, vars.Used)
	s.False(vars.Validation.Valid)

	w = s.do(http.MethodGet, "/api/templates/HXnope/variables", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterSuite) TestGuestsAndAudience() {
	w := s.do(http.MethodPost, "/api/guests", gin.H{"name": "Dana", "phone": "+1 555 000 0001", "tags": []string{"family"}})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/api/guests", gin.H{"name": "Omer", "phone": "+15550000002", "rsvpStatus": "attending"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/api/guests", gin.H{"name": "Bad", "phone": "call me"})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/guests?tag=family", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var guests []models.Guest
	s.decode(w, &guests)
	s.Require().Len(guests, 1)
	s.Equal("+15550000001", guests[0].Phone)

	w = s.do(http.MethodGet, "/api/guests?rsvpStatus=attending&rsvpStatus=maybe", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &guests)
	s.Require().Len(guests, 1)
	s.Equal("Omer", guests[0].Name)
}

func (s *RouterSuite) TestSyncReconcilesTemplates() {
	w := s.do(http.MethodPost, "/api/sync", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var res struct {
		Polled  int `json:"polled"`
		Changed int `json:"changed"`
	}
	s.decode(w, &res)
	s.Equal(1, res.Polled)
	s.Equal(1, res.Changed)

	tpl, err := s.store.Templates.GetBySid(context.Background(), "HX1")
	s.Require().NoError(err)
	s.Equal(models.ApprovalApproved, tpl.ApprovalStatus)
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)
	r := SetupRouter(Deps{
		JWTSecret:      testSecret,
		AllowedOrigins: []string{"http://localhost:3000"},
		Logger:         log,
		Automations:    &controllers.AutomationController{},
		Templates:      &controllers.TemplateController{},
		Guests:         &controllers.GuestController{},
		Sync:           &controllers.SyncController{},
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/automations", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
