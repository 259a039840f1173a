// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package api

import (
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/jobqueue/internal/audit"
	"github.com/tomtom215/jobqueue/internal/auth"
	"github.com/tomtom215/jobqueue/internal/config"
	"github.com/tomtom215/jobqueue/internal/jobs"
	"github.com/tomtom215/jobqueue/internal/models"
	"github.com/tomtom215/jobqueue/internal/websocket"
)

// Handler holds the dependencies shared by every endpoint.
type Handler struct {
	store      jobs.Store
	runner     *jobs.Runner
	registry   *jobs.Registry
	config     *config.Config
	cron       *auth.CronAuthenticator
	jwtManager *auth.JWTManager
	admin      *auth.AdminCredentials
	audit      *audit.Logger
	events     *websocket.Hub
	notifiers  []QueueNotifier
	upgrader   *gorillaws.Upgrader
	startTime  time.Time
	version    string
}

// NewHandler creates a handler. The cron authenticator is built from the
// security config; login stays disabled until SetLogin is called.
func NewHandler(store jobs.Store, runner *jobs.Runner, cfg *config.Config) *Handler {
	return &Handler{
		store:     store,
		runner:    runner,
		registry:  runner.Registry(),
		config:    cfg,
		cron:      auth.NewCronAuthenticator(cfg.Security.CronSecret, cfg.Security.CronUserAgents),
		startTime: time.Now(),
		version:   "dev",
	}
}

// SetLogin enables /api/v1/auth/login for the given admin account.
func (h *Handler) SetLogin(jwtManager *auth.JWTManager, admin *auth.AdminCredentials) {
	h.jwtManager = jwtManager
	h.admin = admin
}

// SetAudit records admin actions to logger. Without it nothing is audited.
func (h *Handler) SetAudit(logger *audit.Logger) {
	h.audit = logger
}

// QueueNotifier is told about processing switch changes.
type QueueNotifier interface {
	QueueToggled(settings *models.QueueSettings)
}

// SetEvents enables the live event stream on hub. The hub also receives
// processing switch changes.
func (h *Handler) SetEvents(hub *websocket.Hub) {
	h.events = hub
	h.upgrader = websocket.NewUpgrader(h.config.Security.CORSOrigins)
	h.AddQueueNotifier(hub)
}

// AddQueueNotifier registers n for processing switch changes.
func (h *Handler) AddQueueNotifier(n QueueNotifier) {
	if n != nil {
		h.notifiers = append(h.notifiers, n)
	}
}

// SetVersion sets the version reported by /health.
func (h *Handler) SetVersion(version string) {
	if version != "" {
		h.version = version
	}
}

// loginEnabled reports whether SetLogin was called with usable values.
func (h *Handler) loginEnabled() bool {
	return h.jwtManager != nil && h.admin != nil
}
