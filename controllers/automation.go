// controllers/automation.go
package controllers

import (
	"net/http"
	"time"

	"weddingflow-backend/apperrors"
	"weddingflow-backend/models"
	"weddingflow-backend/repository"
	"weddingflow-backend/services"
	"weddingflow-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AutomationController exposes the automation lifecycle, approvals and
// dispatch for the wedding in the caller's token.
type AutomationController struct {
	Automations  *services.AutomationService
	Approvals    *services.ApprovalService
	Dispatcher   *services.Dispatcher
	Weddings     repository.WeddingRepository
	SentMessages repository.SentMessageRepository
	Logger       logrus.FieldLogger
}

type ScheduleInput struct {
	ScheduledTime *time.Time `json:"scheduledTime" binding:"required"`
}

type TemplateInput struct {
	MessageTemplateID string `json:"messageTemplateId" binding:"required"`
}

type ProposeTemplateInput struct {
	MessageTemplateID string        `json:"messageTemplateId" binding:"required"`
	Flow              services.Flow `json:"flow"`
}

type ProposeTimeInput struct {
	ScheduledTime *time.Time    `json:"scheduledTime" binding:"required"`
	Flow          services.Flow `json:"flow"`
}

type OffsetView struct {
	Days      int                   `json:"days"`
	Direction utils.OffsetDirection `json:"direction"`
	Label     string                `json:"label"`
}

type AutomationView struct {
	models.Automation
	Offset *OffsetView `json:"offset,omitempty"`
}

func (ac *AutomationController) Create(c *gin.Context) {
	weddingID, ok := weddingScope(c)
	if !ok {
		return
	}

	var input services.CreateAutomationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	input.WeddingID = weddingID

	a, err := ac.Automations.Create(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, ac.Logger, err, "Failed to create automation")
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (ac *AutomationController) List(c *gin.Context) {
	weddingID, ok := weddingScope(c)
	if !ok {
		return
	}

	automations, err := ac.Automations.List(c.Request.Context(), weddingID)
	if err != nil {
		respondServiceError(c, ac.Logger, err, "Failed to retrieve automations")
		return
	}

	wedding := ac.wedding(c, weddingID)
	views := make([]AutomationView, 0, len(automations))
	for _, a := range automations {
		views = append(views, viewOf(a, wedding))
	}
	c.JSON(http.StatusOK, views)
}

func (ac *AutomationController) Get(c *gin.Context) {
	a, ok := ac.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, viewOf(*a, ac.wedding(c, a.WeddingID)))
}

func (ac *AutomationController) UpdateSchedule(c *gin.Context) {
	a, ok := ac.load(c)
	if !ok {
		return
	}
	var input ScheduleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	updated, err := ac.Automations.UpdateSchedule(c.Request.Context(), a.ID, *input.ScheduledTime)
	if err != nil {
		respondServiceError(c, ac.Logger, err, "Failed to update schedule")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (ac *AutomationController) UpdateTemplate(c *gin.Context) {
	a, ok := ac.load(c)
	if !ok {
		return
	}
	var input TemplateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	updated, err := ac.Automations.UpdateTemplate(c.Request.Context(), a.ID, input.MessageTemplateID)
	if err != nil {
		respondServiceError(c, ac.Logger, err, "Failed to update template")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (ac *AutomationController) Activate(c *gin.Context) {
	a, ok := ac.load(c)
	if !ok {
		return
	}
	updated, err := ac.Automations.Activate(c.Request.Context(), a.ID)
	if err != nil {
		respondServiceError(c, ac.Logger, err, "Failed to activate automation")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (ac *AutomationController) Deactivate(c *gin.Context) {
	a, ok := ac.load(c)
	if !ok {
		return
	}
	updated, err := ac.Automations.Deactivate(c.Request.Context(), a.ID)
	if err != nil {
		respondServiceError(c, ac.Logger, err, "Failed to deactivate automation")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (ac *AutomationController) ProposeTemplate(c *gin.Context) {
	a, ok := ac.load(c)
	if !ok {
		return
	}
	var input ProposeTemplateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	if err := ac.Approvals.ProposeTemplate(c.Request.Context(), a.ID, input.MessageTemplateID, flowOrDefault(input.Flow)); err != nil {
		respondServiceError(c, ac.Logger, err, "Failed to propose template")
		return
	}
	c.JSON(http.StatusOK, ac.Approvals.Approvals(a.ID))
}

func (ac *AutomationController) ProposeTime(c *gin.Context) {
	a, ok := ac.load(c)
	if !ok {
		return
	}
	var input ProposeTimeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	if err := ac.Approvals.ProposeTime(c.Request.Context(), a.ID, *input.ScheduledTime, flowOrDefault(input.Flow)); err != nil {
		respondServiceError(c, ac.Logger, err, "Failed to propose time")
		return
	}
	c.JSON(http.StatusOK, ac.Approvals.Approvals(a.ID))
}

func (ac *AutomationController) GetApproval(c *gin.Context) {
	a, ok := ac.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ac.Approvals.Approvals(a.ID))
}

func (ac *AutomationController) Approve(c *gin.Context) {
	a, ok := ac.load(c)
	if !ok {
		return
	}
	activated, err := ac.Approvals.Approve(c.Request.Context(), a.ID)
	if err != nil {
		respondServiceError(c, ac.Logger, err, "Failed to approve automation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"activated": activated, "approval": ac.Approvals.Approvals(a.ID)})
}

func (ac *AutomationController) StageEdit(c *gin.Context) {
	a, ok := ac.load(c)
	if !ok {
		return
	}
	var input services.PendingChange
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if input.IsEmpty() {
		utils.RespondWithError(c, http.StatusBadRequest, "Nothing to stage")
		return
	}

	ac.Approvals.StageEdit(a.ID, input)
	staged, _ := ac.Approvals.Staged(a.ID)
	c.JSON(http.StatusOK, staged)
}

func (ac *AutomationController) CancelEdit(c *gin.Context) {
	a, ok := ac.load(c)
	if !ok {
		return
	}
	ac.Approvals.CancelEdit(a.ID)
	c.JSON(http.StatusOK, gin.H{"message": "Staged edit discarded"})
}

func (ac *AutomationController) CommitEdit(c *gin.Context) {
	a, ok := ac.load(c)
	if !ok {
		return
	}
	updated, err := ac.Approvals.CommitEdit(c.Request.Context(), a.ID)
	if err != nil {
		respondServiceError(c, ac.Logger, err, "Failed to save changes")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (ac *AutomationController) Dispatch(c *gin.Context) {
	a, ok := ac.load(c)
	if !ok {
		return
	}
	res, err := ac.Dispatcher.Dispatch(c.Request.Context(), a.ID)
	if err != nil {
		respondServiceError(c, ac.Logger, err, "Failed to dispatch automation")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (ac *AutomationController) ListMessages(c *gin.Context) {
	a, ok := ac.load(c)
	if !ok {
		return
	}
	messages, err := ac.SentMessages.ListByAutomation(c.Request.Context(), a.ID)
	if err != nil {
		respondServiceError(c, ac.Logger, err, "Failed to retrieve messages")
		return
	}
	c.JSON(http.StatusOK, messages)
}

// load fetches the automation named in the path and hides automations that
// belong to another wedding.
func (ac *AutomationController) load(c *gin.Context) (*models.Automation, bool) {
	weddingID, ok := weddingScope(c)
	if !ok {
		return nil, false
	}
	id, ok := pathUUID(c, "id", "automation")
	if !ok {
		return nil, false
	}

	a, err := ac.Automations.Get(c.Request.Context(), id)
	if err == nil && a.WeddingID != weddingID {
		err = apperrors.NewNotFound("automation", id.String())
	}
	if err != nil {
		respondServiceError(c, ac.Logger, err, "Failed to retrieve automation")
		return nil, false
	}
	return a, true
}

func (ac *AutomationController) wedding(c *gin.Context, id uuid.UUID) *models.Wedding {
	w, err := ac.Weddings.GetByID(c.Request.Context(), id)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			ac.Logger.WithError(err).WithField("wedding_id", id).Warn("wedding lookup failed")
		}
		return nil
	}
	return w
}

func viewOf(a models.Automation, wedding *models.Wedding) AutomationView {
	view := AutomationView{Automation: a}
	if wedding == nil || wedding.EventDate == nil || a.ScheduledTime == nil {
		return view
	}
	offset := utils.ComputeOffset(*a.ScheduledTime, *wedding.EventDate)
	view.Offset = &OffsetView{
		Days:      offset.Days,
		Direction: offset.Direction,
		Label:     offset.Label(wedding.Locale),
	}
	return view
}

func flowOrDefault(f services.Flow) services.Flow {
	if f == "" {
		return services.FlowDashboard
	}
	return f
}
