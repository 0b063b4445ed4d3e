package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"weddingflow-backend/config"
	"weddingflow-backend/controllers"
	"weddingflow-backend/providers"
	"weddingflow-backend/repository"
	"weddingflow-backend/routes"
	"weddingflow-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	db, err := config.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("database unavailable")
	}
	if err := db.AutoMigrate(repository.Models()...); err != nil {
		log.WithError(err).Fatal("migration failed")
	}
	store := repository.NewGormStore(db)

	provider := providers.NewTwilioClient(providers.TwilioConfig{
		AccountSID:          cfg.TwilioAccountSID,
		AuthToken:           cfg.TwilioAuthToken,
		WhatsAppNumber:      cfg.TwilioWhatsAppNumber,
		PhoneNumber:         cfg.TwilioPhoneNumber,
		MessagingServiceSID: cfg.TwilioMessagingServiceSID,
		RetryMax:            cfg.ProviderRetryMax,
	}, log)

	engine := services.NewVariableEngine(cfg.PublicBaseURL)
	automations := services.NewAutomationService(store.Automations, store.Templates, log)
	approvals := services.NewApprovalService(automations, log)
	dispatcher := services.NewDispatcher(automations, store, provider, engine, log)
	reconciler := services.NewReconciliationService(store, provider, cfg.SyncDelay, cfg.SyncBatchSize, log)

	scheduler, err := services.NewScheduler(dispatcher, reconciler, cfg.DispatchSchedule, cfg.SyncSchedule, log)
	if err != nil {
		log.WithError(err).Fatal("invalid schedule")
	}
	scheduler.Start()

	gin.SetMode(gin.ReleaseMode)
	r := routes.SetupRouter(routes.Deps{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         log,
		Automations: &controllers.AutomationController{
			Automations:  automations,
			Approvals:    approvals,
			Dispatcher:   dispatcher,
			Weddings:     store.Weddings,
			SentMessages: store.SentMessages,
			Logger:       log,
		},
		Templates: &controllers.TemplateController{
			Templates: store.Templates,
			Weddings:  store.Weddings,
			Guests:    store.Guests,
			Engine:    engine,
			Logger:    log,
		},
		Guests: &controllers.GuestController{Guests: store.Guests, Logger: log},
		Sync:   &controllers.SyncController{Reconciler: reconciler, Logger: log},
	})
	printRoutes(r, log)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server stopped")
		}
	}()
	log.WithField("port", cfg.Port).Info("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}
	scheduler.Stop()
	log.Info("shutdown complete")
}

func printRoutes(r *gin.Engine, log logrus.FieldLogger) {
	for _, route := range r.Routes() {
		log.Debugf("%-6s %s", route.Method, route.Path)
	}
}
