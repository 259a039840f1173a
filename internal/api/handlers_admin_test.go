// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package api

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/tomtom215/jobqueue/internal/auth"
	"github.com/tomtom215/jobqueue/internal/jobs"
	"github.com/tomtom215/jobqueue/internal/models"
)

func TestToggleProcessing(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, auth.AuthModeNone)

	rec := ts.do(t, http.MethodPost, "/api/v1/admin/job-queue/toggle", `{"enabled":false,"reason":"  db upgrade  "}`, withJSON())
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var settings models.QueueSettings
	decodeEnvelope(t, rec, &settings)
	if settings.ProcessingEnabled {
		t.Error("Expected processing to be disabled")
	}
	if settings.PausedReason == nil || *settings.PausedReason != "db upgrade" {
		t.Errorf("Expected trimmed reason, got %v", settings.PausedReason)
	}

	stored, err := ts.store.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if stored.ProcessingEnabled {
		t.Error("Toggle was not persisted")
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/admin/job-queue/toggle", `{"enabled":true,"reason":"ignored"}`, withJSON())
	var resumed models.QueueSettings
	decodeEnvelope(t, rec, &resumed)
	if !resumed.ProcessingEnabled || resumed.PausedReason != nil {
		t.Errorf("Resume should clear the reason, got %+v", resumed)
	}

	stored, err = ts.store.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if !stored.ProcessingEnabled || stored.PausedReason != nil {
		t.Errorf("Stored settings after resume = %+v, want enabled with no reason", stored)
	}
}

func TestToggleProcessing_Validation(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, auth.AuthModeNone)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing enabled", `{"reason":"x"}`, ErrCodeValidationFailed},
		{"empty body", ``, ErrCodeBadRequest},
		{"unknown field", `{"enabled":true,"paused":true}`, ErrCodeBadRequest},
		{"wrong type", `{"enabled":"no"}`, ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/v1/admin/job-queue/toggle", tt.body, withJSON())
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if env := decodeEnvelope(t, rec, nil); env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("Expected %s, got %+v", tt.code, env.Error)
			}
		})
	}
}

func TestJobAction_Retry(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, auth.AuthModeNone)
	job := ts.enqueue(t, jobs.TaskAlwaysThrows, models.EnqueueOptions{})

	rec := ts.do(t, http.MethodPost, "/jobs/run", "", withBearer(testCronSecret))
	if summary := decodeSummary(t, rec); summary.Failed != 1 {
		t.Fatalf("Expected the job to fail first, got %+v", summary)
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/admin/job-queue/actions",
		formBody(map[string]string{"jobId": job.ID, "action": ActionRetry}), withForm())
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp JobActionResponse
	decodeEnvelope(t, rec, &resp)
	if resp.Job == nil || resp.Job.Status != models.JobStatusPending {
		t.Fatalf("Expected pending job in response, got %+v", resp.Job)
	}

	got := ts.job(t, job.ID)
	if got.Status != models.JobStatusPending || got.LastError != nil || got.Attempts != 0 {
		t.Errorf("Retry should reset the job, got status=%s last_error=%v attempts=%d", got.Status, got.LastError, got.Attempts)
	}
}

func TestJobAction_Cancel(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, auth.AuthModeNone)
	job := ts.enqueue(t, jobs.TaskNoopSuccess, models.EnqueueOptions{})

	rec := ts.do(t, http.MethodPost, "/api/v1/admin/job-queue/actions",
		formBody(map[string]string{"jobId": job.ID, "action": ActionCancel}), withForm())
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := ts.job(t, job.ID); got.Status != models.JobStatusCancelled {
		t.Errorf("Status = %s, want cancelled", got.Status)
	}

	// A cancelled job cannot be cancelled again.
	rec = ts.do(t, http.MethodPost, "/api/v1/admin/job-queue/actions",
		formBody(map[string]string{"jobId": job.ID, "action": ActionCancel}), withForm())
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestJobAction_Delete(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, auth.AuthModeNone)
	job := ts.enqueue(t, jobs.TaskNoopSuccess, models.EnqueueOptions{})

	rec := ts.do(t, http.MethodPost, "/api/v1/admin/job-queue/actions",
		formBody(map[string]string{"jobId": job.ID, "action": ActionDelete}), withForm())
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp JobActionResponse
	decodeEnvelope(t, rec, &resp)
	if resp.Job != nil {
		t.Errorf("Delete should not return a job, got %+v", resp.Job)
	}

	if _, err := ts.store.GetJob(context.Background(), job.ID); err == nil {
		t.Error("Job still exists after delete")
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/admin/job-queue/actions",
		formBody(map[string]string{"jobId": job.ID, "action": ActionDelete}), withForm())
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a deleted job, got %d", rec.Code)
	}
}

func TestJobAction_Validation(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, auth.AuthModeNone)

	tests := []struct {
		name   string
		values map[string]string
	}{
		{"missing job id", map[string]string{"action": ActionRetry}},
		{"job id not a uuid", map[string]string{"jobId": "42", "action": ActionRetry}},
		{"unknown action", map[string]string{"jobId": uuid.NewString(), "action": "pause"}},
		{"missing action", map[string]string{"jobId": uuid.NewString()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/v1/admin/job-queue/actions", formBody(tt.values), withForm())
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if env := decodeEnvelope(t, rec, nil); env.Error == nil || env.Error.Code != ErrCodeValidationFailed {
				t.Errorf("Expected VALIDATION_FAILED, got %+v", env.Error)
			}
		})
	}

	t.Run("unknown job", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/admin/job-queue/actions",
			formBody(map[string]string{"jobId": uuid.NewString(), "action": ActionRetry}), withForm())
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestQueueOverview(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, auth.AuthModeNone)
	ts.enqueue(t, jobs.TaskNoopSuccess, models.EnqueueOptions{})
	ts.enqueue(t, jobs.TaskNoopSuccess, models.EnqueueOptions{})

	rec := ts.do(t, http.MethodGet, "/api/v1/admin/job-queue", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var overview QueueOverview
	decodeEnvelope(t, rec, &overview)
	if overview.Settings == nil || !overview.Settings.ProcessingEnabled {
		t.Errorf("Expected enabled settings, got %+v", overview.Settings)
	}
	if overview.Counts[models.JobStatusPending] != 2 {
		t.Errorf("Pending count = %d, want 2", overview.Counts[models.JobStatusPending])
	}
	for _, status := range models.AllJobStatuses {
		if _, ok := overview.Counts[status]; !ok {
			t.Errorf("Counts missing status %s", status)
		}
	}
	if len(overview.TaskTypes) != len(jobs.BuiltinTaskTypes) {
		t.Errorf("TaskTypes = %v, want %d built-ins", overview.TaskTypes, len(jobs.BuiltinTaskTypes))
	}
	if !slices.Contains(overview.TaskTypes, jobs.TaskNoopSuccess) {
		t.Errorf("TaskTypes = %v, want %s listed", overview.TaskTypes, jobs.TaskNoopSuccess)
	}
}

func TestListJobs(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, auth.AuthModeNone)
	for i := 0; i < 3; i++ {
		ts.enqueue(t, jobs.TaskNoopSuccess, models.EnqueueOptions{})
	}
	ts.enqueue(t, jobs.TaskAlwaysThrows, models.EnqueueOptions{})

	t.Run("paginates", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/admin/job-queue/jobs?limit=2", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var list []*models.Job
		env := decodeEnvelope(t, rec, &list)
		if len(list) != 2 {
			t.Fatalf("Expected 2 jobs, got %d", len(list))
		}
		if env.Meta == nil || env.Meta.Pagination == nil || !env.Meta.Pagination.HasMore {
			t.Errorf("Expected has_more, got %+v", env.Meta)
		}

		rec = ts.do(t, http.MethodGet, "/api/v1/admin/job-queue/jobs?limit=2&offset=2", "")
		env = decodeEnvelope(t, rec, &list)
		if len(list) != 2 || env.Meta.Pagination.HasMore {
			t.Errorf("Expected the last 2 jobs without has_more, got %d %+v", len(list), env.Meta.Pagination)
		}
	})

	t.Run("filters by task type", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/admin/job-queue/jobs?task_type=always_throws", "")
		var list []*models.Job
		decodeEnvelope(t, rec, &list)
		if len(list) != 1 || list[0].TaskType != string(jobs.TaskAlwaysThrows) {
			t.Errorf("Expected one always_throws job, got %+v", list)
		}
	})

	t.Run("filters by status", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/admin/job-queue/jobs?status=failed", "")
		var list []*models.Job
		decodeEnvelope(t, rec, &list)
		if len(list) != 0 {
			t.Errorf("Expected no failed jobs, got %d", len(list))
		}
	})

	t.Run("rejects bad filters", func(t *testing.T) {
		for _, query := range []string{"status=done", "limit=0", "limit=501", "offset=-1", "task_type=Bad-Type", "limit=x"} {
			rec := ts.do(t, http.MethodGet, "/api/v1/admin/job-queue/jobs?"+query, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", query, rec.Code)
			}
		}
	})
}

func TestGetJob(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, auth.AuthModeNone)
	job := ts.enqueue(t, jobs.TaskNoopSuccess, models.EnqueueOptions{})

	rec := ts.do(t, http.MethodGet, "/api/v1/admin/job-queue/jobs/"+job.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got models.Job
	decodeEnvelope(t, rec, &got)
	if got.ID != job.ID || got.TaskType != job.TaskType {
		t.Errorf("Got %+v, want job %s", got, job.ID)
	}

	if rec := ts.do(t, http.MethodGet, "/api/v1/admin/job-queue/jobs/"+uuid.NewString(), ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown id, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/v1/admin/job-queue/jobs/not-a-uuid", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed id, got %d", rec.Code)
	}
}

func TestEnqueueJob(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, auth.AuthModeNone)

	t.Run("creates a job", func(t *testing.T) {
		body := `{"task_type":"noop_success","payload":{"hello":"world"},"max_attempts":7}`
		rec := ts.do(t, http.MethodPost, "/api/v1/admin/job-queue/jobs", body, withJSON())
		if rec.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var job models.Job
		decodeEnvelope(t, rec, &job)
		if job.Status != models.JobStatusPending || job.MaxAttempts != 7 {
			t.Errorf("Unexpected job %+v", job)
		}
		stored := ts.job(t, job.ID)
		if string(stored.Payload) != `{"hello":"world"}` {
			t.Errorf("Payload = %s", stored.Payload)
		}
	})

	t.Run("creates a recurring job", func(t *testing.T) {
		body := `{"task_type":"purge_worker_runs","is_recurring":true,"recurrence_interval_minutes":60}`
		rec := ts.do(t, http.MethodPost, "/api/v1/admin/job-queue/jobs", body, withJSON())
		if rec.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var job models.Job
		decodeEnvelope(t, rec, &job)
		if !job.IsRecurring || job.RecurrenceInterval() == 0 {
			t.Errorf("Expected recurring job, got %+v", job)
		}
	})

	tests := []struct {
		name   string
		body   string
		code   string
		status int
	}{
		{"unregistered task type", `{"task_type":"send_email"}`, ErrCodeUnknownTaskType, http.StatusBadRequest},
		{"malformed task type", `{"task_type":"Send-Email"}`, ErrCodeValidationFailed, http.StatusBadRequest},
		{"missing task type", `{"payload":{}}`, ErrCodeValidationFailed, http.StatusBadRequest},
		{"recurring without interval", `{"task_type":"noop_success","is_recurring":true}`, ErrCodeBadRequest, http.StatusBadRequest},
		{"negative max attempts", `{"task_type":"noop_success","max_attempts":-1}`, ErrCodeValidationFailed, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/v1/admin/job-queue/jobs", tt.body, withJSON())
			if rec.Code != tt.status {
				t.Fatalf("Expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if env := decodeEnvelope(t, rec, nil); env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("Expected %s, got %+v", tt.code, env.Error)
			}
		})
	}
}

func TestListWorkerRuns(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, auth.AuthModeNone)
	for i := 0; i < 3; i++ {
		ts.do(t, http.MethodGet, "/jobs/run", "", withBearer(testCronSecret))
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/admin/job-queue/runs?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var runs []*models.WorkerRun
	decodeEnvelope(t, rec, &runs)
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	for _, run := range runs {
		if run.Source != models.WorkerRunSourceCronSecret || run.Status != models.WorkerRunStatusCompleted {
			t.Errorf("Unexpected run %+v", run)
		}
	}

	if rec := ts.do(t, http.MethodGet, "/api/v1/admin/job-queue/runs?limit=1000", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for oversized limit, got %d", rec.Code)
	}
}

func TestAdminRoutes_RoleEnforcement(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, auth.AuthModeJWT)
	viewer := ts.token(t, auth.RoleViewer)
	operator := ts.token(t, "operator")
	admin := ts.token(t, auth.RoleAdmin)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		token  string
		want   int
	}{
		{"viewer reads overview", http.MethodGet, "/api/v1/admin/job-queue", "", viewer, http.StatusOK},
		{"viewer lists jobs", http.MethodGet, "/api/v1/admin/job-queue/jobs", "", viewer, http.StatusOK},
		{"viewer cannot toggle", http.MethodPost, "/api/v1/admin/job-queue/toggle", `{"enabled":false}`, viewer, http.StatusForbidden},
		{"operator runs", http.MethodPost, "/api/v1/admin/job-queue/run", "", operator, http.StatusOK},
		{"operator cannot toggle", http.MethodPost, "/api/v1/admin/job-queue/toggle", `{"enabled":false}`, operator, http.StatusForbidden},
		{"admin toggles", http.MethodPost, "/api/v1/admin/job-queue/toggle", `{"enabled":true}`, admin, http.StatusOK},
		{"garbage token", http.MethodGet, "/api/v1/admin/job-queue", "", "not.a.jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.body, withBearer(tt.token), withJSON())
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

type recordingNotifier struct {
	mu      sync.Mutex
	toggles []bool
}

func (n *recordingNotifier) QueueToggled(settings *models.QueueSettings) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toggles = append(n.toggles, settings.ProcessingEnabled)
}

func TestToggleProcessing_NotifiesListeners(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, auth.AuthModeNone)
	notifier := &recordingNotifier{}
	ts.api.AddQueueNotifier(notifier)
	ts.api.AddQueueNotifier(nil)

	ts.do(t, http.MethodPost, "/api/v1/admin/job-queue/toggle", `{"enabled":false}`, withJSON())
	ts.do(t, http.MethodPost, "/api/v1/admin/job-queue/toggle", `{"enabled":true}`, withJSON())
	// Rejected toggles notify nobody.
	ts.do(t, http.MethodPost, "/api/v1/admin/job-queue/toggle", `{}`, withJSON())

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.toggles) != 2 || notifier.toggles[0] || !notifier.toggles[1] {
		t.Errorf("toggles = %v, want [false true]", notifier.toggles)
	}
}
