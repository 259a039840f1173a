// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/jobqueue/internal/audit"
	"github.com/tomtom215/jobqueue/internal/auth"
	"github.com/tomtom215/jobqueue/internal/jobs"
	"github.com/tomtom215/jobqueue/internal/logging"
	"github.com/tomtom215/jobqueue/internal/metrics"
	"github.com/tomtom215/jobqueue/internal/models"
	"github.com/tomtom215/jobqueue/internal/validation"
)

// QueueOverview is the admin dashboard summary.
type QueueOverview struct {
	Settings  *models.QueueSettings    `json:"settings"`
	Counts    map[models.JobStatus]int `json:"counts"`
	TaskTypes []jobs.TaskType          `json:"task_types"`
}

// JobActionResponse reports the outcome of a job action.
// Job is omitted after a delete.
type JobActionResponse struct {
	JobID  string      `json:"job_id"`
	Action string      `json:"action"`
	Job    *models.Job `json:"job,omitempty"`
}

// QueueOverview returns settings, per-status counts and registered task types.
//
// Method: GET
// Path: /api/v1/admin/job-queue
func (h *Handler) QueueOverview(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	settings, err := h.store.GetSettings(r.Context())
	if err != nil {
		writeStoreError(rw, err)
		return
	}

	stats, err := h.store.CountJobsByStatus(r.Context())
	if err != nil {
		writeStoreError(rw, err)
		return
	}

	counts := make(map[models.JobStatus]int, len(models.AllJobStatuses))
	for _, status := range models.AllJobStatuses {
		counts[status] = stats[status]
	}

	rw.Success(&QueueOverview{
		Settings:  settings,
		Counts:    counts,
		TaskTypes: h.registry.TaskTypes(),
	})
}

// ToggleProcessing pauses or resumes the queue and returns the new settings.
//
// Method: POST
// Path: /api/v1/admin/job-queue/toggle
// Body: {"enabled": false, "reason": "maintenance window"}
func (h *Handler) ToggleProcessing(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req ToggleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr)
		return
	}

	// A resumed queue carries no paused reason.
	var reason *string
	if trimmed := strings.TrimSpace(req.Reason); !*req.Enabled && trimmed != "" {
		reason = &trimmed
	}

	settings, err := h.store.UpdateSettings(r.Context(), *req.Enabled, reason)
	if err != nil {
		writeStoreError(rw, err)
		return
	}
	metrics.SetProcessingEnabled(settings.ProcessingEnabled)
	for _, n := range h.notifiers {
		n.QueueToggled(settings)
	}

	logger := logging.Ctx(r.Context()).Info().Bool("enabled", settings.ProcessingEnabled)
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		logger = logger.Str("username", claims.Username)
	}
	if reason != nil {
		logger = logger.Str("reason", *reason)
	}
	logger.Msg("Job processing toggled")

	eventType := audit.EventTypeQueueResumed
	if !settings.ProcessingEnabled {
		eventType = audit.EventTypeQueuePaused
	}
	h.audit.LogRequest(r, eventType, audit.OutcomeSuccess, h.actor(r), "", req.Reason, nil)

	rw.Success(settings)
}

// JobAction applies retry, cancel or delete to one job.
//
// Method: POST
// Path: /api/v1/admin/job-queue/actions
// Body (form): jobId=<uuid>&action=retry|cancel|delete
func (h *Handler) JobAction(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		rw.BadRequest("invalid form body")
		return
	}

	req := JobActionRequest{
		JobID:  strings.TrimSpace(r.PostForm.Get("jobId")),
		Action: strings.TrimSpace(r.PostForm.Get("action")),
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr)
		return
	}

	resp := &JobActionResponse{JobID: req.JobID, Action: req.Action}
	var err error
	switch req.Action {
	case ActionRetry:
		resp.Job, err = h.store.RetryJob(r.Context(), req.JobID)
	case ActionCancel:
		resp.Job, err = h.store.CancelJob(r.Context(), req.JobID)
	case ActionDelete:
		err = h.store.DeleteJob(r.Context(), req.JobID)
	}
	eventType := jobActionEvents[req.Action]
	if err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			h.audit.LogRequest(r, eventType, audit.OutcomeFailure, h.actor(r), req.JobID, err.Error(), nil)
		}
		writeStoreError(rw, err)
		return
	}
	h.audit.LogRequest(r, eventType, audit.OutcomeSuccess, h.actor(r), req.JobID, "", nil)

	logger := logging.Ctx(r.Context()).Info().Str("job_id", req.JobID).Str("action", req.Action)
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		logger = logger.Str("username", claims.Username)
	}
	logger.Msg("Job action applied")

	rw.Success(resp)
}

var jobActionEvents = map[string]audit.EventType{
	ActionRetry:  audit.EventTypeJobRetried,
	ActionCancel: audit.EventTypeJobCancelled,
	ActionDelete: audit.EventTypeJobDeleted,
}

// ListJobs returns jobs newest first.
//
// Method: GET
// Path: /api/v1/admin/job-queue/jobs?status=&task_type=&limit=&offset=
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	query := r.URL.Query()
	limit, err := intParam(query, "limit", defaultJobListLimit)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	offset, err := intParam(query, "offset", 0)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	req := ListJobsRequest{
		Status:   query.Get("status"),
		TaskType: query.Get("task_type"),
		Limit:    limit,
		Offset:   offset,
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr)
		return
	}

	// One extra row tells us whether another page exists.
	fetch := req.Limit
	if fetch < maxJobListLimit {
		fetch++
	}
	list, err := h.store.ListJobs(r.Context(), models.JobFilter{
		Status:   models.JobStatus(req.Status),
		TaskType: req.TaskType,
		Limit:    fetch,
		Offset:   req.Offset,
	})
	if err != nil {
		writeStoreError(rw, err)
		return
	}

	hasMore := len(list) > req.Limit
	if hasMore {
		list = list[:req.Limit]
	}
	if list == nil {
		list = []*models.Job{}
	}

	rw.SuccessWithMeta(list, &PaginationMeta{
		Count:   len(list),
		Offset:  req.Offset,
		Limit:   req.Limit,
		HasMore: hasMore,
	})
}

// GetJob returns one job.
//
// Method: GET
// Path: /api/v1/admin/job-queue/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id := chi.URLParam(r, "id")
	if err := validation.GetValidator().Var(id, "required,uuid"); err != nil {
		rw.BadRequest("id must be a valid UUID")
		return
	}

	job, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		writeStoreError(rw, err)
		return
	}
	rw.Success(job)
}

// EnqueueJob creates a job for a registered task type.
//
// Method: POST
// Path: /api/v1/admin/job-queue/jobs
// Body: {"task_type": "webhook_deliver", "payload": {...}, "run_at": "...", "max_attempts": 5}
func (h *Handler) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req EnqueueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr)
		return
	}

	var payload any
	if len(req.Payload) > 0 {
		payload = req.Payload
	}

	job, err := jobs.Enqueue(r.Context(), h.store, h.registry, jobs.TaskType(req.TaskType), payload, req.Options())
	if err != nil {
		if !errors.Is(err, jobs.ErrHandlerNotFound) && !errors.Is(err, models.ErrInvalidJob) {
			logging.Ctx(r.Context()).Error().Err(err).Str("task_type", req.TaskType).Msg("Failed to enqueue job")
		}
		writeStoreError(rw, err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("job_id", job.ID).
		Str("task_type", job.TaskType).
		Time("run_at", job.RunAt).
		Msg("Job enqueued")
	h.audit.LogRequest(r, audit.EventTypeJobEnqueued, audit.OutcomeSuccess, h.actor(r), job.ID, job.TaskType, nil)
	rw.Created(job)
}

// ListWorkerRuns returns the most recent worker runs.
//
// Method: GET
// Path: /api/v1/admin/job-queue/runs?limit=
func (h *Handler) ListWorkerRuns(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	limit, err := intParam(r.URL.Query(), "limit", defaultRunListLimit)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	req := ListRunsRequest{Limit: limit}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr)
		return
	}

	runs, err := h.store.ListWorkerRuns(r.Context(), req.Limit)
	if err != nil {
		writeStoreError(rw, err)
		return
	}
	if runs == nil {
		runs = []*models.WorkerRun{}
	}
	rw.SuccessWithMeta(runs, &PaginationMeta{Count: len(runs), Limit: req.Limit})
}
