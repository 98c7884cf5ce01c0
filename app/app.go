package app

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"

	"form-consent/config"
	"form-consent/controllers"
	"form-consent/routes"
	"form-consent/services"
)

// App is the runtime container shared by the server and the CLI tools.
type App struct {
	Config   config.AppConfig
	Logger   *slog.Logger
	Consents *services.ConsentService
	Forms    *services.FormSettingService
	Storage  *services.FileStorage
	Audit    *services.ConsentLogService
	Events   *services.EventDispatcher
}

// New connects storage and builds the services.
func New(cfg config.AppConfig, logger *slog.Logger) (*App, error) {
	hash, err := services.NewHashService(cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("FORM_CONSENT_SECRET: %w", err)
	}

	var (
		consentStore services.ConsentStore
		formStore    services.FormSettingStore
		fileStore    services.FileStore
		logStore     services.ConsentLogStore
	)
	switch cfg.StorageDriver {
	case "memory":
		logger.Warn("using in-memory storage; consents are lost on restart")
		mem := services.NewMemoryStore()
		consentStore, formStore, fileStore = mem.Consents(), mem.Forms(), mem.Files()
		logStore = services.NewMemoryConsentLogStore()
	case "", "mysql":
		if err := config.ConnectDatabase(); err != nil {
			return nil, fmt.Errorf("database connect failed: %w", err)
		}
		consentStore = services.NewGormConsentStore(config.DB)
		formStore = services.NewGormFormSettingStore(config.DB)
		fileStore = services.NewGormFileStore(config.DB)
		logStore = services.NewGormConsentLogStore(config.DB)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	events := services.NewEventDispatcher()
	audit := services.NewConsentLogService(logStore, logger)
	audit.Register(events)
	services.NewWebhookNotifier(logger).Register(events)

	storage := services.NewFileStorage(cfg.UploadDir, fileStore)
	consents := &services.ConsentService{
		Consents:    consentStore,
		Forms:       formStore,
		Transformer: services.NewFormRequestTransformer(hash, storage),
		Hash:        hash,
		Mailer:      services.NewSMTPMailer(cfg.SMTP, logger),
		Events:      events,
		Logger:      logger,
		PublicURL:   cfg.PublicURL,
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Consents: consents,
		Forms:    services.NewFormSettingService(formStore),
		Storage:  storage,
		Audit:    audit,
		Events:   events,
	}, nil
}

// Router builds the HTTP handler.
func (a *App) Router() *gin.Engine {
	return routes.SetupRouter(
		controllers.NewConsentController(a.Consents),
		controllers.NewAdminController(a.Consents, a.Forms, a.Audit, a.Storage),
		a.Config.CorsOrigins,
		a.Config.AdminKeyHash,
		a.Logger,
	)
}

// GarbageCollector returns the background expiry worker.
func (a *App) GarbageCollector() *services.GarbageCollector {
	return &services.GarbageCollector{
		Service:  a.Consents,
		Interval: a.Config.GCInterval,
		Logger:   a.Logger,
	}
}
