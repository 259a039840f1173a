// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package models

import (
	"errors"
	"testing"
	"time"
)

func runningJob(maxAttempts int) *Job {
	started := time.Date(2026, 3, 1, 11, 59, 0, 0, time.UTC)
	return &Job{
		ID:          "job-1",
		TaskType:    "noop_success",
		Status:      JobStatusRunning,
		MaxAttempts: maxAttempts,
		RunAt:       started,
		StartedAt:   &started,
	}
}

func TestApplySuccess_OneShot(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job := runningJob(3)

	if err := job.ApplySuccess(now, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("ApplySuccess: %v", err)
	}
	if job.Status != JobStatusSucceeded {
		t.Errorf("Status = %s, want succeeded", job.Status)
	}
	if job.CompletedAt == nil || !job.CompletedAt.Equal(now) {
		t.Errorf("CompletedAt = %v, want %v", job.CompletedAt, now)
	}
}

func TestApplySuccess_RecurringReschedules(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	interval := 30
	job := runningJob(3)
	job.IsRecurring = true
	job.RecurrenceIntervalMinutes = &interval
	job.Attempts = 2

	if err := job.ApplySuccess(now, nil); err != nil {
		t.Fatalf("ApplySuccess: %v", err)
	}
	if job.Status != JobStatusPending {
		t.Errorf("Status = %s, want pending", job.Status)
	}
	if want := now.Add(30 * time.Minute); !job.RunAt.Equal(want) {
		t.Errorf("RunAt = %v, want %v", job.RunAt, want)
	}
	if job.Attempts != 0 {
		t.Errorf("Attempts = %d, want 0", job.Attempts)
	}
	if job.CompletedAt != nil {
		t.Errorf("CompletedAt = %v, want nil", job.CompletedAt)
	}
}

func TestApplyFailure(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	retry := time.Second

	tests := []struct {
		name         string
		attempts     int
		maxAttempts  int
		retryIn      *time.Duration
		wantStatus   JobStatus
		wantAttempts int
		wantRunAt    time.Time
	}{
		{"retry with attempts left", 0, 3, &retry, JobStatusPending, 1, now.Add(time.Second)},
		{"retry on last attempt fails", 2, 3, &retry, JobStatusFailed, 3, time.Time{}},
		{"no retry hint is permanent", 0, 3, nil, JobStatusFailed, 1, time.Time{}},
		{"single attempt job", 0, 1, &retry, JobStatusFailed, 1, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			job := runningJob(tt.maxAttempts)
			job.Attempts = tt.attempts

			if err := job.ApplyFailure(now, "boom", tt.retryIn); err != nil {
				t.Fatalf("ApplyFailure: %v", err)
			}
			if job.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", job.Status, tt.wantStatus)
			}
			if job.Attempts != tt.wantAttempts {
				t.Errorf("Attempts = %d, want %d", job.Attempts, tt.wantAttempts)
			}
			if job.LastErrorString() != "boom" {
				t.Errorf("LastError = %q, want boom", job.LastErrorString())
			}
			if tt.wantStatus == JobStatusPending && !job.RunAt.Equal(tt.wantRunAt) {
				t.Errorf("RunAt = %v, want %v", job.RunAt, tt.wantRunAt)
			}
			if tt.wantStatus == JobStatusFailed && job.Attempts > job.MaxAttempts {
				t.Errorf("terminal job has attempts %d > max %d", job.Attempts, job.MaxAttempts)
			}
		})
	}
}

func TestTransitions_RejectWrongStatus(t *testing.T) {
	t.Parallel()

	now := time.Now()
	pending := &Job{Status: JobStatusPending, MaxAttempts: 3}

	if err := pending.ApplySuccess(now, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("ApplySuccess on pending = %v, want ErrInvalidTransition", err)
	}
	if err := pending.ApplyFailure(now, "x", nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("ApplyFailure on pending = %v, want ErrInvalidTransition", err)
	}

	running := &Job{Status: JobStatusRunning}
	if err := running.ApplyRetry(now); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("ApplyRetry on running = %v, want ErrInvalidTransition", err)
	}

	done := &Job{Status: JobStatusSucceeded}
	if err := done.ApplyCancel(now); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("ApplyCancel on succeeded = %v, want ErrInvalidTransition", err)
	}
}

func TestApplyRetry_ResetsJob(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := "boom"
	job := &Job{Status: JobStatusFailed, Attempts: 3, MaxAttempts: 3, LastError: &msg, CompletedAt: &now}

	if err := job.ApplyRetry(now); err != nil {
		t.Fatalf("ApplyRetry: %v", err)
	}
	if job.Status != JobStatusPending || job.Attempts != 0 || job.LastError != nil || job.CompletedAt != nil {
		t.Errorf("unexpected job after retry: %+v", job)
	}
	if !job.RunAt.Equal(now) {
		t.Errorf("RunAt = %v, want %v", job.RunAt, now)
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	for status, want := range map[JobStatus]bool{
		JobStatusPending:   false,
		JobStatusRunning:   false,
		JobStatusSucceeded: true,
		JobStatusFailed:    true,
		JobStatusCancelled: true,
	} {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
	if JobStatus("archived").Valid() {
		t.Error("unknown status reported as valid")
	}
}
