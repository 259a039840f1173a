// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

// Package models provides the data structures shared by the job stores,
// the runner, and the HTTP API.
package models

import (
	"time"

	"github.com/goccy/go-json"
)

// ============================================================================
// Job
// ============================================================================

// JobStatus is the lifecycle state of a job row.
//
//	pending -> running -> succeeded | pending (retry) | failed | cancelled
//
// Recurring jobs never stay succeeded: success moves them back to pending.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// AllJobStatuses lists every status in lifecycle order.
var AllJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusRunning,
	JobStatusSucceeded,
	JobStatusFailed,
	JobStatusCancelled,
}

// IsTerminal reports whether no runner will touch a job in this status again.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusCancelled
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	for _, known := range AllJobStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ExpiredError is the last_error recorded on jobs cancelled by the claim
// step because their expires_at passed before they ran.
const ExpiredError = "expired"

// Job is a unit of deferred work.
type Job struct {
	ID                        string          `json:"id"`
	TaskType                  string          `json:"task_type"`
	Payload                   json.RawMessage `json:"payload"`
	Status                    JobStatus       `json:"status"`
	Attempts                  int             `json:"attempts"`
	MaxAttempts               int             `json:"max_attempts"`
	RunAt                     time.Time       `json:"run_at"`
	LastError                 *string         `json:"last_error,omitempty"`
	Output                    json.RawMessage `json:"output,omitempty"`
	IsRecurring               bool            `json:"is_recurring"`
	RecurrenceIntervalMinutes *int            `json:"recurrence_interval_minutes,omitempty"`
	ExpiresAt                 *time.Time      `json:"expires_at,omitempty"`
	CreatedAt                 time.Time       `json:"created_at"`
	UpdatedAt                 time.Time       `json:"updated_at"`
	StartedAt                 *time.Time      `json:"started_at,omitempty"`
	CompletedAt               *time.Time      `json:"completed_at,omitempty"`
}

// RecurrenceInterval returns the reschedule interval for a recurring job,
// or zero for one-shot jobs.
func (j *Job) RecurrenceInterval() time.Duration {
	if !j.IsRecurring || j.RecurrenceIntervalMinutes == nil {
		return 0
	}
	return time.Duration(*j.RecurrenceIntervalMinutes) * time.Minute
}

// LastErrorString returns last_error or "" when unset.
func (j *Job) LastErrorString() string {
	if j.LastError == nil {
		return ""
	}
	return *j.LastError
}

// EnqueueOptions are the optional parameters of an enqueue call.
// Zero values mean "use the default".
type EnqueueOptions struct {
	RunAt                     *time.Time
	IsRecurring               bool
	RecurrenceIntervalMinutes *int
	ExpiresAt                 *time.Time
	MaxAttempts               int
}

// JobFilter selects jobs for admin listings.
type JobFilter struct {
	Status   JobStatus
	TaskType string
	Limit    int
	Offset   int
}

// JobStats counts jobs per status.
type JobStats map[JobStatus]int

// ============================================================================
// Settings
// ============================================================================

// QueueSettingsID is the fixed key of the singleton settings row.
const QueueSettingsID = 1

// QueueSettings is the global processing switch.
type QueueSettings struct {
	ProcessingEnabled bool      `json:"processing_enabled"`
	PausedReason      *string   `json:"paused_reason,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ============================================================================
// Worker runs
// ============================================================================

// WorkerRunSource identifies what triggered a runner pass.
type WorkerRunSource string

const (
	WorkerRunSourceCronSecret    WorkerRunSource = "cron-secret"
	WorkerRunSourceCronUserAgent WorkerRunSource = "cron-user-agent"
	WorkerRunSourceAdminManual   WorkerRunSource = "admin-manual"
	WorkerRunSourceScheduler     WorkerRunSource = "scheduler"
	WorkerRunSourceUnknown       WorkerRunSource = "unknown"
)

// WorkerRunStatus is the state of a worker run record.
type WorkerRunStatus string

const (
	WorkerRunStatusRunning   WorkerRunStatus = "running"
	WorkerRunStatusCompleted WorkerRunStatus = "completed"
	WorkerRunStatusPaused    WorkerRunStatus = "paused"
	WorkerRunStatusError     WorkerRunStatus = "error"
)

// WorkerRun is a diagnostic record of one runner invocation.
type WorkerRun struct {
	ID           string          `json:"id"`
	Source       WorkerRunSource `json:"source"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Status       WorkerRunStatus `json:"status"`
	Processed    int             `json:"processed"`
	Succeeded    int             `json:"succeeded"`
	Failed       int             `json:"failed"`
	ErrorMessage *string         `json:"error_message,omitempty"`
}

// ============================================================================
// Runner results
// ============================================================================

// RunStatus is the outcome of a whole runner pass.
type RunStatus string

const (
	RunStatusOK     RunStatus = "ok"
	RunStatusPaused RunStatus = "paused"
)

// JobRunResult is the per-job line of a run summary.
type JobRunResult struct {
	ID        string    `json:"id"`
	TaskType  string    `json:"task_type"`
	Status    JobStatus `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError *string   `json:"last_error,omitempty"`
}

// RunSummary is returned by every runner pass.
type RunSummary struct {
	Status    RunStatus      `json:"status"`
	Processed int            `json:"processed"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Message   string         `json:"message,omitempty"`
	Results   []JobRunResult `json:"results,omitempty"`
}
