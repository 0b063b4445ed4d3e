// controllers/sync.go
package controllers

import (
	"net/http"

	"weddingflow-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type SyncController struct {
	Reconciler *services.ReconciliationService
	Logger     logrus.FieldLogger
}

// Run reconciles provider statuses now instead of waiting for the schedule.
func (sc *SyncController) Run(c *gin.Context) {
	results, err := sc.Reconciler.SyncAll(c.Request.Context())
	if err != nil {
		respondServiceError(c, sc.Logger, err, "Failed to reconcile statuses")
		return
	}

	changed := 0
	for _, r := range results {
		if r.Changed {
			changed++
		}
	}
	c.JSON(http.StatusOK, gin.H{"polled": len(results), "changed": changed, "results": results})
}
