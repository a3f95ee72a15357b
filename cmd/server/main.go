package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/comptoir/internal"
	"github.com/dukerupert/comptoir/internal/bootstrap"
	"github.com/dukerupert/comptoir/internal/handler/api"
	"github.com/dukerupert/comptoir/internal/handler/webhook"
	"github.com/dukerupert/comptoir/internal/middleware"
	"github.com/dukerupert/comptoir/internal/router"
	"github.com/dukerupert/comptoir/internal/routes"
	"github.com/dukerupert/comptoir/internal/telemetry"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel, "api")

	flushSentry, err := bootstrap.InitTelemetry(cfg, logger)
	if err != nil {
		return fmt.Errorf("telemetry initialization failed: %w", err)
	}
	defer flushSentry()

	logger.Info("Connecting to database...")
	app, err := bootstrap.New(ctx, cfg, logger)
	defer app.Close()
	if err != nil {
		return err
	}
	logger.Info("Database connection established")

	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(ctx, app.SQLDB(), logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// Identity
	var resolvers middleware.Resolvers
	if cfg.Auth.JWTSecret != "" {
		resolvers = append(resolvers, middleware.JWTResolver{Secret: []byte(cfg.Auth.JWTSecret)})
	}
	if cfg.Auth.TrustHeaders {
		logger.Warn("Trusting identity headers; do not expose this instance directly")
		resolvers = append(resolvers, middleware.HeaderResolver{})
	}
	if len(resolvers) == 0 {
		return errors.New("AUTH_JWT_SECRET is required unless AUTH_TRUST_HEADERS=true")
	}

	publicLimiter, err := middleware.NewRateLimiter(cfg.HTTP.RateLimitPublic, "public")
	if err != nil {
		return err
	}

	metrics := middleware.NewMetrics("comptoir", nil)

	// Handlers
	var docOpts []api.DocumentOption
	if app.Signatures != nil {
		docOpts = append(docOpts, api.WithSignatures(app.Signatures))
	}
	documents := api.NewDocumentHandler(app.Documents, docOpts...)
	payments := api.NewPaymentHandler(app.Payments, cfg.BaseURL)
	notifications := api.NewNotificationHandler(app.Notifications)
	stripe := webhook.NewStripeHandler(app.Payments)

	r := router.New(
		middleware.RequestID,
		middleware.WithRequestLogger(logger),
		telemetry.SentryMiddleware(),
		router.Recovery(logger),
		middleware.WithClientIP(cfg.HTTP.TrustProxy),
		metrics.Middleware,
		router.Logger(logger),
		middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig()),
	)

	routes.RegisterOpsRoutes(r, routes.OpsDeps{
		Health:  api.Health(app.Pool),
		Metrics: metrics.Handler(),
	})
	routes.RegisterWebhookRoutes(r, routes.WebhookDeps{StripeHandler: stripe.HandleWebhook})
	routes.RegisterPublicRoutes(r, routes.PublicDeps{
		Limiter:   publicLimiter,
		Documents: documents,
		Payments:  payments,
	})
	routes.RegisterAPIRoutes(r, routes.APIDeps{
		Identity:      resolvers,
		Documents:     documents,
		Payments:      payments,
		Notifications: notifications,
	})

	// CORS wraps the mux so preflight requests reach it before method
	// matching rejects OPTIONS.
	var h http.Handler = r
	if len(cfg.HTTP.CORSOrigins) > 0 {
		h = router.CORS(cfg.HTTP.CORSOrigins)(r)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server", "timeout", cfg.HTTP.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
