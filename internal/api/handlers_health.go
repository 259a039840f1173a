// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/jobqueue/internal/logging"
	"github.com/tomtom215/jobqueue/internal/metrics"
)

// healthCheckTimeout bounds the store ping.
const healthCheckTimeout = 3 * time.Second

// HealthStatus is the /health payload.
type HealthStatus struct {
	Status            string  `json:"status"`
	Version           string  `json:"version"`
	Database          string  `json:"database"`
	DatabaseConnected bool    `json:"database_connected"`
	Uptime            float64 `json:"uptime"`
}

// Health reports whether the job store answers a ping.
//
// Method: GET
// Path: /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	uptime := time.Since(h.startTime).Seconds()
	metrics.AppUptime.Set(uptime)

	status := &HealthStatus{
		Status:            "healthy",
		Version:           h.version,
		Database:          h.config.Database.Driver,
		DatabaseConnected: true,
		Uptime:            uptime,
	}

	if err := h.store.Ping(ctx); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Health check: job store ping failed")
		status.Status = "degraded"
		status.DatabaseConnected = false
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "job store unavailable", status)
		return
	}

	rw.Success(status)
}
