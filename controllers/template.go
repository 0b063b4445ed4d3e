// controllers/template.go
package controllers

import (
	"net/http"

	"weddingflow-backend/models"
	"weddingflow-backend/repository"
	"weddingflow-backend/services"
	"weddingflow-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type TemplateController struct {
	Templates repository.TemplateRepository
	Weddings  repository.WeddingRepository
	Guests    repository.GuestRepository
	Engine    *services.VariableEngine
	Logger    logrus.FieldLogger
}

type ValidateTemplateInput struct {
	Body string `json:"body" binding:"required"`
}

type PreviewInput struct {
	GuestID *uuid.UUID `json:"guestId"`
	Locale  string     `json:"locale"`
}

type PreviewResult struct {
	Body             string            `json:"body"`
	ContentVariables map[string]string `json:"contentVariables"`
	Unresolved       []string          `json:"unresolved"`
}

// List returns shared templates and the wedding's own.
func (tc *TemplateController) List(c *gin.Context) {
	weddingID, ok := weddingScope(c)
	if !ok {
		return
	}
	templates, err := tc.Templates.List(c.Request.Context(), weddingID)
	if err != nil {
		respondServiceError(c, tc.Logger, err, "Failed to retrieve templates")
		return
	}
	c.JSON(http.StatusOK, templates)
}

// Variables lists the placeholders a template body uses.
func (tc *TemplateController) Variables(c *gin.Context) {
	tpl, ok := tc.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"used":       services.ExtractUsedVariables(tpl.Body),
		"validation": services.ValidateTemplateVariables(tpl.Body),
		"supported":  services.SupportedVariables(),
	})
}

func (tc *TemplateController) Validate(c *gin.Context) {
	var input ValidateTemplateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, services.ValidateTemplateVariables(input.Body))
}

// Preview renders the template for one guest, or for a placeholder guest
// when none is given.
func (tc *TemplateController) Preview(c *gin.Context) {
	weddingID, ok := weddingScope(c)
	if !ok {
		return
	}
	tpl, ok := tc.load(c)
	if !ok {
		return
	}
	var input PreviewInput
	if err := c.ShouldBindJSON(&input); err != nil && c.Request.ContentLength > 0 {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	wedding, err := tc.Weddings.GetByID(ctx, weddingID)
	if err != nil {
		respondServiceError(c, tc.Logger, err, "Failed to retrieve wedding")
		return
	}

	guest := models.Guest{WeddingID: weddingID}
	if input.GuestID != nil {
		g, err := tc.Guests.GetByID(ctx, *input.GuestID)
		if err != nil || g.WeddingID != weddingID {
			utils.RespondWithError(c, http.StatusNotFound, "Guest not found")
			return
		}
		guest = *g
	}

	vars := tc.Engine.PopulateVariables(guest, *wedding, input.Locale)
	content := services.ContentVariables(*tpl, vars)
	body := services.RenderBody(*tpl, vars, content)
	c.JSON(http.StatusOK, PreviewResult{
		Body:             body,
		ContentVariables: content,
		Unresolved:       services.UnresolvedVariables(body),
	})
}

func (tc *TemplateController) load(c *gin.Context) (*models.Template, bool) {
	weddingID, ok := weddingScope(c)
	if !ok {
		return nil, false
	}
	tpl, err := tc.Templates.GetBySid(c.Request.Context(), c.Param("sid"))
	if err != nil {
		respondServiceError(c, tc.Logger, err, "Failed to retrieve template")
		return nil, false
	}
	if tpl.WeddingID != nil && *tpl.WeddingID != weddingID {
		utils.RespondWithError(c, http.StatusNotFound, "Template not found")
		return nil, false
	}
	return tpl, true
}
