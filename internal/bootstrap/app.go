// Package bootstrap assembles the application from configuration. The API
// server, the worker and the ops CLI share it so they agree on wiring.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/text/language"

	"github.com/dukerupert/comptoir/internal"
	"github.com/dukerupert/comptoir/internal/billing"
	"github.com/dukerupert/comptoir/internal/crypto"
	"github.com/dukerupert/comptoir/internal/email"
	"github.com/dukerupert/comptoir/internal/events"
	"github.com/dukerupert/comptoir/internal/notify"
	"github.com/dukerupert/comptoir/internal/numbering"
	"github.com/dukerupert/comptoir/internal/postgres"
	"github.com/dukerupert/comptoir/internal/provider"
	"github.com/dukerupert/comptoir/internal/service"
	"github.com/dukerupert/comptoir/internal/storage"
	"github.com/dukerupert/comptoir/internal/telemetry"
)

// App holds the long-lived dependencies of a process.
type App struct {
	Config *internal.Config
	Logger *slog.Logger

	Pool        *pgxpool.Pool
	Store       *postgres.Store
	Allocator   *numbering.Allocator
	Credentials *provider.Registry
	Publisher   events.Publisher
	Mailer      *email.Service
	// Signatures is nil when STORAGE_PROVIDER=none.
	Signatures *storage.SignatureStore

	Documents     *service.DocumentService
	Payments      *service.PaymentService
	Collection    *service.CollectionService
	Notifications *service.NotificationService
	Mail          *service.MailService

	closers []func()
}

// New connects to the database and the optional integrations and builds
// every service. Call Close when done, even after an error.
func New(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return app, fmt.Errorf("failed to create database pool: %w", err)
	}
	app.closers = append(app.closers, pool.Close)
	if err := pool.Ping(ctx); err != nil {
		return app, fmt.Errorf("database ping failed: %w", err)
	}
	app.Pool = pool
	app.Store = postgres.NewStore(pool, logger, postgres.DefaultMaxAttempts)
	app.Allocator = numbering.NewAllocator(logger)

	encryptor, err := newEncryptor(cfg, logger)
	if err != nil {
		return app, err
	}
	app.Credentials = provider.NewRegistry(app.Store, encryptor, provider.DefaultCacheTTL)

	if cfg.NATSURL != "" {
		publisher, err := events.NewNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			return app, err
		}
		app.Publisher = publisher
	} else {
		app.Publisher = events.NopPublisher{}
	}
	app.closers = append(app.closers, func() {
		if err := app.Publisher.Close(); err != nil {
			logger.Warn("failed to drain event publisher", "error", err)
		}
	})

	app.Mailer, err = newMailer(cfg, logger)
	if err != nil {
		return app, err
	}
	sms := notify.NewHTTPGateway(notify.GatewayConfig{
		URL:    cfg.SMS.GatewayURL,
		Token:  cfg.SMS.Token,
		Sender: cfg.SMS.Sender,
	}, logger)
	dispatcher := notify.NewChannelDispatcher(app.Mailer, sms, logger)

	processor := billing.NewStripeProvider(billing.StripeConfig{
		APIBaseURL:        cfg.Stripe.APIBase,
		WebhookTolerance:  cfg.Stripe.WebhookTolerance,
		MaxNetworkRetries: cfg.Stripe.MaxNetworkRetries,
	})

	blobs, err := storage.New(ctx, storage.Config{
		Provider:  cfg.Storage.Provider,
		LocalPath: cfg.Storage.LocalPath,
		PublicURL: cfg.Storage.PublicURL,
		R2: storage.R2Config{
			AccountID:   cfg.Storage.R2AccountID,
			AccessKeyID: cfg.Storage.R2AccessKeyID,
			SecretKey:   cfg.Storage.R2SecretKey,
			BucketName:  cfg.Storage.R2Bucket,
			Endpoint:    cfg.Storage.R2Endpoint,
		},
	})
	if err != nil {
		return app, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if blobs != nil {
		app.Signatures = storage.NewSignatureStore(blobs)
	}

	opts := []service.Option{service.WithReminderDelay(cfg.ReminderDelay)}
	app.Documents = service.NewDocumentService(app.Store, app.Allocator, app.Publisher, logger, opts...)
	app.Payments = service.NewPaymentService(app.Store, processor, app.Credentials, app.Publisher, logger, opts...)
	app.Collection = service.NewCollectionService(app.Store, dispatcher, app.Publisher, logger, cfg.BaseURL, opts...)
	app.Notifications = service.NewNotificationService(app.Store, logger)
	app.Mail = service.NewMailService(app.Store, app.Mailer, logger, cfg.BaseURL)

	return app, nil
}

// SQLDB exposes the pool through database/sql for goose.
func (a *App) SQLDB() *sql.DB {
	db := stdlib.OpenDBFromPool(a.Pool)
	a.closers = append(a.closers, func() { _ = db.Close() })
	return db
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// InitTelemetry registers business metrics and starts Sentry. The returned
// function flushes Sentry.
func InitTelemetry(cfg *internal.Config, logger *slog.Logger) (func(), error) {
	telemetry.InitBusinessMetrics("comptoir")
	return telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
}

// newEncryptor decodes ENCRYPTION_KEY. Development without a key gets an
// ephemeral one, so stored credentials do not survive a restart.
func newEncryptor(cfg *internal.Config, logger *slog.Logger) (crypto.Encryptor, error) {
	if cfg.EncryptionKey == "" {
		if cfg.Env == "prod" {
			return nil, errors.New("ENCRYPTION_KEY must be set in production")
		}
		logger.Warn("ENCRYPTION_KEY not set, using an ephemeral key; stored payment credentials will be unreadable after restart")
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		return crypto.NewAESEncryptor(key)
	}

	key, err := crypto.DecodeKeyBase64(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
	}
	return crypto.NewAESEncryptor(key)
}

func newMailer(cfg *internal.Config, logger *slog.Logger) (*email.Service, error) {
	lang, err := language.Parse(cfg.Email.Language)
	if err != nil {
		logger.Warn("invalid EMAIL_LANGUAGE, using French", "value", cfg.Email.Language, "error", err)
		lang = language.French
	}

	sender := email.NewSMTPSender(email.SMTPConfig{
		Host:     cfg.Email.Host,
		Port:     int(cfg.Email.Port),
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
		FromName: cfg.Email.FromName,
	}, logger)

	return email.NewService(sender, email.ServiceConfig{
		FromAddress: cfg.Email.From,
		FromName:    cfg.Email.FromName,
		ReplyTo:     cfg.Email.ReplyTo,
		Language:    lang,
	}, logger)
}
