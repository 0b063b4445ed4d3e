// controllers/errors.go
package controllers

import (
	"net/http"

	"weddingflow-backend/apperrors"
	"weddingflow-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// respondServiceError maps typed service errors to HTTP statuses. Anything
// untyped is logged and reported as a 500 with fallback as the message.
func respondServiceError(c *gin.Context, log logrus.FieldLogger, err error, fallback string) {
	switch {
	case apperrors.IsValidation(err):
		utils.RespondWithError(c, http.StatusBadRequest, err.Error())
	case apperrors.IsNotFound(err):
		utils.RespondWithError(c, http.StatusNotFound, err.Error())
	case apperrors.IsPreconditionFailed(err):
		utils.RespondWithError(c, http.StatusPreconditionFailed, err.Error())
	case apperrors.IsInvalidState(err), apperrors.IsConcurrentClaimLost(err):
		utils.RespondWithError(c, http.StatusConflict, err.Error())
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error(fallback)
		utils.RespondWithError(c, http.StatusInternalServerError, fallback)
	}
}

func weddingScope(c *gin.Context) (uuid.UUID, bool) {
	weddingID, ok := utils.WeddingIDFromContext(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Wedding ID not found in context")
		return uuid.Nil, false
	}
	return weddingID, true
}

func pathUUID(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid "+label+" ID format")
		return uuid.Nil, false
	}
	return id, true
}
