// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package api

import (
	"net/http"

	"github.com/tomtom215/jobqueue/internal/audit"
	"github.com/tomtom215/jobqueue/internal/auth"
	"github.com/tomtom215/jobqueue/internal/logging"
	"github.com/tomtom215/jobqueue/internal/validation"
)

// actor describes the authenticated caller of r for the audit trail.
func (h *Handler) actor(r *http.Request) audit.Actor {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return audit.Actor{Name: "unknown"}
	}
	return audit.Actor{
		Name:       claims.Username,
		Role:       claims.Role,
		AuthMethod: h.config.Security.AuthMode,
	}
}

// ListAuditEvents returns recorded admin actions, most recent first.
// The list is empty when auditing is disabled.
//
// Method: GET
// Path: /api/v1/admin/job-queue/audit?type=&job_id=&actor=&limit=
func (h *Handler) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	query := r.URL.Query()
	limit, err := intParam(query, "limit", defaultAuditLimit)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	req := ListAuditRequest{
		Type:  query.Get("type"),
		JobID: query.Get("job_id"),
		Actor: query.Get("actor"),
		Limit: limit,
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr)
		return
	}

	filter := audit.QueryFilter{
		Actor: req.Actor,
		JobID: req.JobID,
		Limit: req.Limit,
	}
	if req.Type != "" {
		filter.Types = []audit.EventType{audit.EventType(req.Type)}
	}

	events, err := h.audit.Query(r.Context(), filter)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to query audit events")
		rw.InternalError("failed to query audit events")
		return
	}
	rw.SuccessWithMeta(events, &PaginationMeta{Count: len(events), Limit: req.Limit})
}
