// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package main

import (
	"fmt"

	"github.com/tomtom215/jobqueue/internal/api"
	"github.com/tomtom215/jobqueue/internal/audit"
	"github.com/tomtom215/jobqueue/internal/auth"
	"github.com/tomtom215/jobqueue/internal/authz"
	"github.com/tomtom215/jobqueue/internal/config"
	"github.com/tomtom215/jobqueue/internal/eventbus"
	"github.com/tomtom215/jobqueue/internal/jobs"
	"github.com/tomtom215/jobqueue/internal/logging"
	"github.com/tomtom215/jobqueue/internal/websocket"
)

// initAudit creates the audit trail, or returns nil when it is disabled.
func initAudit(cfg *config.Config) *audit.Logger {
	if !cfg.Audit.Enabled {
		logging.Info().Msg("Audit trail disabled")
		return nil
	}
	logger := audit.NewLogger(audit.NewMemoryStore(cfg.Audit.MaxEvents), audit.ConfigFrom(cfg.Audit))
	logging.Info().Int("max_events", cfg.Audit.MaxEvents).Dur("retention", cfg.Audit.Retention).Msg("Audit trail enabled")
	return logger
}

// initEventBus connects the NATS publisher, or returns nil when NATS_URL
// is unset.
func initEventBus(cfg *config.Config) (*eventbus.Publisher, error) {
	if !cfg.EventBus.Enabled() {
		logging.Info().Msg("Event bus disabled")
		return nil, nil
	}
	pub, err := eventbus.NewPublisher(eventbus.ConfigFrom(cfg.EventBus), logging.WithComponent("event-bus"))
	if err != nil {
		return nil, fmt.Errorf("create event bus publisher: %w", err)
	}
	logging.Info().Str("url", eventbus.RedactURL(cfg.EventBus.URL)).Str("prefix", cfg.EventBus.SubjectPrefix).Msg("Event bus enabled")
	return pub, nil
}

// initAPI builds the authenticated router over store and runner.
// auditLogger and hub may be nil. notifiers hear about processing toggles.
func initAPI(cfg *config.Config, store jobs.Store, runner *jobs.Runner, auditLogger *audit.Logger, hub *websocket.Hub, notifiers ...api.QueueNotifier) (*api.Router, error) {
	mode, err := auth.ParseAuthMode(cfg.Security.AuthMode)
	if err != nil {
		return nil, err
	}

	handler := api.NewHandler(store, runner, cfg)
	handler.SetVersion(version)
	handler.SetAudit(auditLogger)
	if hub != nil {
		handler.SetEvents(hub)
	}
	for _, n := range notifiers {
		handler.AddQueueNotifier(n)
	}

	var jwtManager *auth.JWTManager
	switch mode {
	case auth.AuthModeJWT:
		jwtManager, err = auth.NewJWTManager(&cfg.Security)
		if err != nil {
			return nil, fmt.Errorf("create JWT manager: %w", err)
		}
		admin, err := auth.NewAdminCredentials(cfg.Security.AdminUsername, cfg.Security.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("hash admin credentials: %w", err)
		}
		handler.SetLogin(jwtManager, admin)
		logging.Info().Str("admin", admin.Username()).Msg("JWT authentication enabled")
	case auth.AuthModeNone:
		logging.Warn().Msg("============================================================")
		logging.Warn().Msg("  SECURITY WARNING: Admin authentication is DISABLED (AUTH_MODE=none)")
		logging.Warn().Msg("  Anyone who can reach the server can pause, retry, cancel, and delete jobs.")
		logging.Warn().Msg("============================================================")
	}

	if cfg.Security.CronSecret == "" {
		logging.Warn().Msg("CRON_SECRET is not set; /jobs/run only accepts trusted scheduler User-Agents")
	}
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	authn, err := auth.NewMiddleware(jwtManager, mode)
	if err != nil {
		return nil, err
	}

	enforcer, err := authz.NewEnforcer(cfg.Security.Casbin)
	if err != nil {
		return nil, fmt.Errorf("create authorization enforcer: %w", err)
	}

	mw := api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(cfg.Security))
	return api.NewRouter(handler, authn, authz.NewMiddleware(enforcer), mw), nil
}
