// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package models

import (
	"errors"
	"time"
)

// Store errors shared by every job store implementation.
var (
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidTransition = errors.New("job status does not allow this transition")
)

// ApplySuccess moves a running job to its post-success state.
// One-shot jobs become succeeded; recurring jobs return to pending at
// now + interval with attempts reset, so they never rest in succeeded.
func (j *Job) ApplySuccess(now time.Time, output []byte) error {
	if j.Status != JobStatusRunning {
		return ErrInvalidTransition
	}

	j.LastError = nil
	j.Output = output
	j.UpdatedAt = now

	if interval := j.RecurrenceInterval(); interval > 0 {
		j.Status = JobStatusPending
		j.RunAt = now.Add(interval)
		j.Attempts = 0
		j.StartedAt = nil
		j.CompletedAt = nil
		return nil
	}

	j.Status = JobStatusSucceeded
	j.CompletedAt = &now
	return nil
}

// ApplyFailure records a failed attempt on a running job.
// With a retry delay and attempts remaining the job returns to pending at
// now + retryIn; otherwise it fails terminally. last_error is always set.
func (j *Job) ApplyFailure(now time.Time, errMsg string, retryIn *time.Duration) error {
	if j.Status != JobStatusRunning {
		return ErrInvalidTransition
	}

	j.Attempts++
	j.LastError = &errMsg
	j.UpdatedAt = now

	if retryIn != nil && j.Attempts < j.MaxAttempts {
		delay := *retryIn
		if delay < 0 {
			delay = 0
		}
		j.Status = JobStatusPending
		j.RunAt = now.Add(delay)
		j.StartedAt = nil
		return nil
	}

	j.Status = JobStatusFailed
	j.CompletedAt = &now
	return nil
}

// ApplyRetry is the admin override that makes a job eligible immediately.
// Attempts restart at zero so the attempt bound holds for the new cycle.
func (j *Job) ApplyRetry(now time.Time) error {
	if j.Status == JobStatusRunning {
		return ErrInvalidTransition
	}

	j.Status = JobStatusPending
	j.RunAt = now
	j.Attempts = 0
	j.LastError = nil
	j.StartedAt = nil
	j.CompletedAt = nil
	j.UpdatedAt = now
	return nil
}

// ApplyCancel is the admin override that stops a job from running again.
// Only jobs that are still waiting or running can be cancelled.
func (j *Job) ApplyCancel(now time.Time) error {
	if j.Status != JobStatusPending && j.Status != JobStatusRunning {
		return ErrInvalidTransition
	}

	j.Status = JobStatusCancelled
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}
