// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// DefaultMaxAttempts applies when neither the caller nor configuration sets one.
const DefaultMaxAttempts = 3

// ErrInvalidJob wraps every enqueue validation failure.
var ErrInvalidJob = errors.New("invalid job")

// NewJob builds a pending job row from enqueue arguments. run_at defaults to
// now; max_attempts defaults to defaultMaxAttempts. The payload is only
// checked for being JSON; its shape belongs to the task's handler.
func NewJob(taskType string, payload []byte, opts EnqueueOptions, now time.Time, defaultMaxAttempts int) (*Job, error) {
	if taskType == "" {
		return nil, fmt.Errorf("%w: task type is required", ErrInvalidJob)
	}
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", ErrInvalidJob)
	}

	if opts.IsRecurring && (opts.RecurrenceIntervalMinutes == nil || *opts.RecurrenceIntervalMinutes <= 0) {
		return nil, fmt.Errorf("%w: recurring jobs need a positive recurrence interval", ErrInvalidJob)
	}
	if !opts.IsRecurring && opts.RecurrenceIntervalMinutes != nil {
		return nil, fmt.Errorf("%w: recurrence interval set on a one-shot job", ErrInvalidJob)
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	runAt := now
	if opts.RunAt != nil {
		runAt = opts.RunAt.UTC()
	}

	var expiresAt *time.Time
	if opts.ExpiresAt != nil {
		e := opts.ExpiresAt.UTC()
		expiresAt = &e
	}

	return &Job{
		ID:                        uuid.New().String(),
		TaskType:                  taskType,
		Payload:                   payload,
		Status:                    JobStatusPending,
		Attempts:                  0,
		MaxAttempts:               maxAttempts,
		RunAt:                     runAt,
		IsRecurring:               opts.IsRecurring,
		RecurrenceIntervalMinutes: opts.RecurrenceIntervalMinutes,
		ExpiresAt:                 expiresAt,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}, nil
}
