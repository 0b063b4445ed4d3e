// controllers/guest.go
package controllers

import (
	"net/http"

	"weddingflow-backend/models"
	"weddingflow-backend/repository"
	"weddingflow-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type GuestController struct {
	Guests repository.GuestRepository
	Logger logrus.FieldLogger
}

// CreateGuestInput defines the expected JSON structure for adding a guest
type CreateGuestInput struct {
	Name       string            `json:"name" binding:"required"`
	Phone      string            `json:"phone" binding:"required"`
	RSVPStatus models.RSVPStatus `json:"rsvpStatus" binding:"omitempty,oneof=pending attending declined maybe"`
	Tags       []string          `json:"tags"`
	PartySize  int               `json:"partySize" binding:"omitempty,min=1"`
}

func (gc *GuestController) Create(c *gin.Context) {
	weddingID, ok := weddingScope(c)
	if !ok {
		return
	}

	var input CreateGuestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if !utils.ValidatePhone(input.Phone) {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid phone number format")
		return
	}
	if input.PartySize == 0 {
		input.PartySize = 1
	}

	guest := models.Guest{
		WeddingID:  weddingID,
		Name:       input.Name,
		Phone:      utils.NormalizePhone(input.Phone),
		RSVPStatus: input.RSVPStatus,
		Tags:       models.StringList(input.Tags),
		PartySize:  input.PartySize,
	}
	if err := gc.Guests.Create(c.Request.Context(), &guest); err != nil {
		respondServiceError(c, gc.Logger, err, "Failed to create guest")
		return
	}
	c.JSON(http.StatusCreated, guest)
}

// Audience previews the guests an audience filter selects. Query params
// rsvpStatus, tag and guestId may each repeat.
func (gc *GuestController) Audience(c *gin.Context) {
	weddingID, ok := weddingScope(c)
	if !ok {
		return
	}

	filter := models.AudienceFilter{Tags: c.QueryArray("tag")}
	for _, s := range c.QueryArray("rsvpStatus") {
		filter.RSVPStatuses = append(filter.RSVPStatuses, models.RSVPStatus(s))
	}
	for _, raw := range c.QueryArray("guestId") {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid guest ID format")
			return
		}
		filter.GuestIDs = append(filter.GuestIDs, id)
	}

	guests, err := gc.Guests.FindAudience(c.Request.Context(), weddingID, filter)
	if err != nil {
		respondServiceError(c, gc.Logger, err, "Failed to retrieve guests")
		return
	}
	c.JSON(http.StatusOK, guests)
}
