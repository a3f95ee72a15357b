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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/conc"

	"github.com/dukerupert/comptoir/internal"
	"github.com/dukerupert/comptoir/internal/bootstrap"
	"github.com/dukerupert/comptoir/internal/worker"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel, "worker")

	flushSentry, err := bootstrap.InitTelemetry(cfg, logger)
	if err != nil {
		return fmt.Errorf("telemetry initialization failed: %w", err)
	}
	defer flushSentry()

	app, err := bootstrap.New(ctx, cfg, logger)
	defer app.Close()
	if err != nil {
		return err
	}

	w := worker.NewWorker(app.Store, worker.Config{
		PollInterval:   cfg.Worker.PollInterval,
		MaxConcurrency: cfg.Worker.Concurrency,
		StaleInterval:  cfg.Worker.StaleInterval,
	}, logger)
	worker.RegisterHandlers(w, worker.Services{
		Collection:    app.Collection,
		Notifications: app.Notifications,
		Mail:          app.Mail,
		Logger:        logger,
	})
	scheduler := worker.NewScheduler(app.Store, cfg.Worker.SweepInterval, logger)

	var metricsSrv *http.Server
	if cfg.Worker.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.Worker.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	var wg conc.WaitGroup
	wg.Go(func() {
		if err := w.Start(ctx); err != nil {
			logger.Error("worker stopped", "error", err)
			stop()
		}
	})
	wg.Go(func() {
		if err := scheduler.Start(ctx); err != nil {
			logger.Error("scheduler stopped", "error", err)
			stop()
		}
	})
	if metricsSrv != nil {
		wg.Go(func() {
			logger.Info("Serving worker metrics", "addr", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", "error", err)
			}
		})
	}

	<-ctx.Done()
	logger.Info("Shutting down worker")
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	wg.Wait()
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
