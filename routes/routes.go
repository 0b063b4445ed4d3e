package routes

import (
	"net/http"

	"weddingflow-backend/config"
	"weddingflow-backend/controllers"
	"weddingflow-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Deps struct {
	JWTSecret      string
	AllowedOrigins []string
	Logger         logrus.FieldLogger

	Automations *controllers.AutomationController
	Templates   *controllers.TemplateController
	Guests      *controllers.GuestController
	Sync        *controllers.SyncController
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.Use(config.PerformanceLogger(d.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(utils.AuthMiddleware(d.JWTSecret))
	{
		automations := api.Group("/automations")
		{
			ac := d.Automations
			automations.POST("", ac.Create)
			automations.GET("", ac.List)
			automations.GET("/:id", ac.Get)
			automations.PUT("/:id/schedule", ac.UpdateSchedule)
			automations.PUT("/:id/template", ac.UpdateTemplate)
			automations.POST("/:id/activate", ac.Activate)
			automations.POST("/:id/deactivate", ac.Deactivate)

			// Approval workflow
			automations.POST("/:id/proposals/template", ac.ProposeTemplate)
			automations.POST("/:id/proposals/time", ac.ProposeTime)
			automations.GET("/:id/approval", ac.GetApproval)
			automations.POST("/:id/approve", ac.Approve)

			// Staged edits
			automations.PUT("/:id/edit", ac.StageEdit)
			automations.DELETE("/:id/edit", ac.CancelEdit)
			automations.POST("/:id/edit/commit", ac.CommitEdit)

			automations.POST("/:id/dispatch", ac.Dispatch)
			automations.GET("/:id/messages", ac.ListMessages)
		}

		templates := api.Group("/templates")
		{
			templates.GET("", d.Templates.List)
			templates.POST("/validate", d.Templates.Validate)
			templates.GET("/:sid/variables", d.Templates.Variables)
			templates.POST("/:sid/preview", d.Templates.Preview)
		}

		guests := api.Group("/guests")
		{
			guests.POST("", d.Guests.Create)
			guests.GET("", d.Guests.Audience)
		}

		api.POST("/sync", d.Sync.Run)
	}

	return r
}
