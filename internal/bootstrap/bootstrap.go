package bootstrap

import (
	"context"
	"fmt"

	"portal-server/internal/config"
	"portal-server/internal/docstore"
	"portal-server/internal/imageproxy"
	"portal-server/internal/observability"
	"portal-server/internal/store"

	authHandler "portal-server/internal/auth/handler"
	authProcessor "portal-server/internal/auth/processor"
	"portal-server/internal/clients/fcm"
	"portal-server/internal/clients/mail"
	redisClient "portal-server/internal/clients/redis"
	contactsHandler "portal-server/internal/contacts/handler"
	contactsProcessor "portal-server/internal/contacts/processor"
	customersHandler "portal-server/internal/customers/handler"
	customersProcessor "portal-server/internal/customers/processor"
	directadsHandler "portal-server/internal/directads/handler"
	directadsProcessor "portal-server/internal/directads/processor"
	eventsHandler "portal-server/internal/events/handler"
	eventsProcessor "portal-server/internal/events/processor"
	newslettersHandler "portal-server/internal/newsletters/handler"
	newslettersProcessor "portal-server/internal/newsletters/processor"
	noticesHandler "portal-server/internal/notices/handler"
	noticesProcessor "portal-server/internal/notices/processor"
	polarlettersHandler "portal-server/internal/polarletters/handler"
	polarlettersProcessor "portal-server/internal/polarletters/processor"
	pushHandler "portal-server/internal/push/handler"
	pushProcessor "portal-server/internal/push/processor"
	tenantHandler "portal-server/internal/tenant/handler"
	tenantProcessor "portal-server/internal/tenant/processor"
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	// Core
	Store    store.Store
	DocStore *docstore.DocStore
	Redis    *redisClient.Client
	Logger   *observability.Logger

	// Handlers
	AuthHandler         authHandler.Handler
	TenantHandler       tenantHandler.Handler
	CustomersHandler    customersHandler.Handler
	ContactsHandler     contactsHandler.Handler
	EventsHandler       eventsHandler.Handler
	DirectAdsHandler    directadsHandler.Handler
	NoticesHandler      noticesHandler.Handler
	NewslettersHandler  newslettersHandler.Handler
	PolarLettersHandler polarlettersHandler.Handler
	PushHandler         pushHandler.Handler
	ImageProxyHandler   imageproxy.Handler
}

// Initialize sets up all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Logger: logger,
	}

	// Initialize relational store
	var err error
	deps.Store, err = store.New(cfg.Database.ConnectionString(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize document store
	deps.DocStore, err = docstore.New(ctx, cfg.DocumentDB.URI, cfg.DocumentDB.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to document store: %w", err)
	}

	// Initialize clients
	deps.Redis, err = redisClient.NewClient(cfg.Redis, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	fcmClient, err := fcm.NewClient(ctx, cfg.Services.FCMCredentialsFile, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create fcm client: %w", err)
	}

	mailClient, err := mail.NewResendClient(cfg.Services.ResendAPIKey, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create resend client: %w", err)
	}

	// Initialize auth processor and handler
	authProc := authProcessor.New(deps.Store, cfg.Auth.JWTSecret, cfg.Auth.SignupSecret, logger)
	deps.AuthHandler = authHandler.New(authProc, logger)

	// Initialize tenant processor and handler
	tenantProc := tenantProcessor.New(deps.Store, deps.Redis, cfg.Tenant, logger)
	deps.TenantHandler = tenantHandler.New(tenantProc, logger)

	// Initialize customers processor and handler
	customersProc := customersProcessor.New(deps.Store, logger)
	deps.CustomersHandler = customersHandler.New(customersProc, logger)

	// Initialize contacts processor and handler
	contactsProc := contactsProcessor.New(deps.Store, mailClient, cfg.Services.DefaultEmailSender, logger)
	deps.ContactsHandler = contactsHandler.New(contactsProc, logger)

	// Initialize direct ads processor and handler
	directadsProc := directadsProcessor.New(deps.DocStore, logger)
	deps.DirectAdsHandler = directadsHandler.New(directadsProc, logger)

	// Initialize events processor and handler
	eventsProc := eventsProcessor.New(deps.Store, tenantProc, &directadsProc, logger)
	deps.EventsHandler = eventsHandler.New(eventsProc, tenantProc, logger)

	// Initialize notices processor and handler
	noticesProc := noticesProcessor.New(deps.DocStore, fcmClient, cfg.Push, logger)
	deps.NoticesHandler = noticesHandler.New(noticesProc, logger)

	// Initialize newsletters processor and handler
	newslettersProc := newslettersProcessor.New(deps.DocStore, logger)
	deps.NewslettersHandler = newslettersHandler.New(newslettersProc, logger)

	// Initialize polar letters processor and handler
	polarlettersProc := polarlettersProcessor.New(deps.DocStore, logger)
	deps.PolarLettersHandler = polarlettersHandler.New(polarlettersProc, logger)

	// Initialize push processor and handler
	pushProc := pushProcessor.New(fcmClient, logger)
	deps.PushHandler = pushHandler.New(pushProc, logger)

	// Initialize image proxy handler
	deps.ImageProxyHandler = imageproxy.New(cfg.ImageProxy, logger)

	return deps, nil
}

// Cleanup closes all resources that need cleanup
func (d *Dependencies) Cleanup(ctx context.Context) {
	if d.DocStore != nil {
		if err := d.DocStore.Close(ctx); err != nil {
			d.Logger.WarnWithError(ctx, "failed to close document store", err)
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.WarnWithError(ctx, "failed to close redis client", err)
		}
	}
	if err := d.Store.Close(); err != nil {
		d.Logger.WarnWithError(ctx, "failed to close database", err)
	}
}
