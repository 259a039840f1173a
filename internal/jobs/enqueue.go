// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package jobs

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/jobqueue/internal/metrics"
	"github.com/tomtom215/jobqueue/internal/models"
)

// Enqueuer inserts jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload json.RawMessage, opts models.EnqueueOptions) (*models.Job, error)
}

// RecurringStore is what EnsureRecurring needs to find an existing schedule.
type RecurringStore interface {
	Enqueuer
	ListJobs(ctx context.Context, filter models.JobFilter) ([]*models.Job, error)
}

// Enqueue encodes payload and inserts a job after checking that the registry
// can run it. A nil registry skips the check.
func Enqueue(ctx context.Context, store Enqueuer, registry *Registry, taskType TaskType, payload any, opts models.EnqueueOptions) (*models.Job, error) {
	if registry != nil && !registry.Has(string(taskType)) {
		return nil, fmt.Errorf("enqueue: %w: %s", ErrHandlerNotFound, taskType)
	}

	raw, err := encodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", taskType, err)
	}

	job, err := store.Enqueue(ctx, string(taskType), raw, opts)
	if err != nil {
		return nil, err
	}
	metrics.JobsEnqueued.WithLabelValues(job.TaskType).Inc()
	return job, nil
}

// EnsureRecurring enqueues a recurring job of taskType unless one is already
// pending or running. It returns the live job either way.
func EnsureRecurring(ctx context.Context, store RecurringStore, registry *Registry, taskType TaskType, payload any, intervalMinutes int) (*models.Job, error) {
	if intervalMinutes <= 0 {
		return nil, fmt.Errorf("ensure recurring %s: interval must be positive", taskType)
	}

	for _, status := range []models.JobStatus{models.JobStatusPending, models.JobStatusRunning} {
		existing, err := store.ListJobs(ctx, models.JobFilter{
			Status:   status,
			TaskType: string(taskType),
			Limit:    50,
		})
		if err != nil {
			return nil, fmt.Errorf("ensure recurring %s: %w", taskType, err)
		}
		for _, job := range existing {
			if job.IsRecurring {
				return job, nil
			}
		}
	}

	return Enqueue(ctx, store, registry, taskType, payload, models.EnqueueOptions{
		IsRecurring:               true,
		RecurrenceIntervalMinutes: &intervalMinutes,
	})
}

func encodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	case []byte:
		return json.RawMessage(p), nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return b, nil
}
