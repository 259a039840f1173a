// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package api

import (
	"net/http"

	"github.com/tomtom215/jobqueue/internal/audit"
	"github.com/tomtom215/jobqueue/internal/auth"
	"github.com/tomtom215/jobqueue/internal/jobs"
	"github.com/tomtom215/jobqueue/internal/logging"
	"github.com/tomtom215/jobqueue/internal/metrics"
	"github.com/tomtom215/jobqueue/internal/models"
)

// RunJobs is the cron trigger. The caller must present the cron secret as a
// bearer token or a recognised scheduler User-Agent.
//
// Method: GET or POST
// Path: /jobs/run
// Query or body: {"limit": 5, "force": false}
func (h *Handler) RunJobs(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	source, err := h.cron.Authenticate(r)
	if err != nil {
		metrics.AuthFailures.WithLabelValues("cron").Inc()
		logging.Ctx(r.Context()).Warn().
			Err(err).
			Str("user_agent", r.UserAgent()).
			Str("remote_addr", r.RemoteAddr).
			Msg("Rejected job runner trigger")
		h.audit.LogRequest(r, audit.EventTypeCronRejected, audit.OutcomeFailure, audit.Actor{AuthMethod: "cron"}, "", err.Error(), nil)
		rw.Unauthorized("Unauthorized")
		return
	}

	h.runPass(rw, w, r, source)
}

// AdminRunJobs runs a pass on behalf of a signed-in operator.
// force defaults to false, so a paused queue stays paused unless asked.
//
// Method: POST
// Path: /api/v1/admin/job-queue/run
func (h *Handler) AdminRunJobs(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		logging.Ctx(r.Context()).Info().Str("username", claims.Username).Msg("Manual job run requested")
	}
	h.audit.LogRequest(r, audit.EventTypeManualRun, audit.OutcomeSuccess, h.actor(r), "", "", nil)

	h.runPass(rw, w, r, models.WorkerRunSourceAdminManual)
}

func (h *Handler) runPass(rw *ResponseWriter, w http.ResponseWriter, r *http.Request, source models.WorkerRunSource) {
	req, err := decodeRunRequest(w, r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	summary, err := h.runner.Run(r.Context(), jobs.RunOptions{
		Limit:  req.Limit,
		Force:  req.Force,
		Source: source,
	})
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("source", string(source)).Msg("Runner pass failed")
		rw.InternalError("Runner pass failed")
		return
	}

	rw.Raw(http.StatusOK, summary)
}
