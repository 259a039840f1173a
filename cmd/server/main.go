// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/jobqueue/internal/api"
	"github.com/tomtom215/jobqueue/internal/config"
	"github.com/tomtom215/jobqueue/internal/jobs"
	"github.com/tomtom215/jobqueue/internal/logging"
	"github.com/tomtom215/jobqueue/internal/metrics"
	"github.com/tomtom215/jobqueue/internal/stores"
	"github.com/tomtom215/jobqueue/internal/supervisor"
	"github.com/tomtom215/jobqueue/internal/supervisor/services"
	"github.com/tomtom215/jobqueue/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(loggingConfig(&cfg.Logging))
	defer func() { _ = logging.Close() }()

	logging.Info().
		Str("version", version).
		Str("db_driver", cfg.Database.Driver).
		Str("auth_mode", cfg.Security.AuthMode).
		Bool("poll_enabled", cfg.Jobs.PollEnabled).
		Msg("Starting jobqueue")

	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := stores.Open(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open job store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing job store")
		}
	}()
	logging.Info().Msg("Job store initialized")

	hub := websocket.NewHub()
	observers := []jobs.Observer{hub}
	var notifiers []api.QueueNotifier

	bus, err := initEventBus(cfg)
	if err != nil {
		fatalAfterClose(store, err, "Failed to initialize event bus")
	}
	if bus != nil {
		defer func() {
			if err := bus.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing event bus")
			}
		}()
		observers = append(observers, bus)
		notifiers = append(notifiers, bus)
	}

	runner, poller, err := initJobs(ctx, cfg, store, observers...)
	if err != nil {
		fatalAfterClose(store, err, "Failed to initialize job processing")
	}

	auditLogger := initAudit(cfg)
	defer func() { _ = auditLogger.Close() }()

	router, err := initAPI(cfg, store, runner, auditLogger, hub, notifiers...)
	if err != nil {
		fatalAfterClose(store, err, "Failed to initialize API")
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		fatalAfterClose(store, err, "Failed to create supervisor tree")
	}

	if poller != nil {
		tree.AddProcessingService(services.NewPollerService(poller))
		logging.Info().Dur("interval", cfg.Jobs.PollInterval).Msg("Job poller added to supervisor tree")
	} else {
		logging.Info().Msg("In-process poller disabled; passes are driven by /jobs/run")
	}

	tree.AddProcessingService(hub)
	if auditLogger != nil {
		tree.AddProcessingService(auditLogger)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}
	tree.AddAPIService(services.NewAPIServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("API server added to supervisor tree")

	go trackUptime(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}

// loggingConfig maps the logging section onto the logger's options.
func loggingConfig(cfg *config.LoggingConfig) logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = cfg.Level
	lc.Format = cfg.Format
	lc.Caller = cfg.Caller
	if cfg.File != "" {
		lc.File = logging.FileConfig{
			Path:       cfg.File,
			MaxSizeMB:  cfg.FileMaxSizeMB,
			MaxBackups: cfg.FileMaxBackups,
			MaxAgeDays: cfg.FileMaxAgeDays,
			Compress:   cfg.FileCompress,
		}
	}
	return lc
}

// fatalAfterClose closes the store before exiting, since Fatal skips defers.
func fatalAfterClose(store interface{ Close() error }, err error, msg string) {
	if closeErr := store.Close(); closeErr != nil {
		logging.Error().Err(closeErr).Msg("Error closing job store")
	}
	logging.Fatal().Err(err).Msg(msg)
}

func trackUptime(ctx context.Context) {
	start := time.Now()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.AppUptime.Set(time.Since(start).Seconds())
		}
	}
}
