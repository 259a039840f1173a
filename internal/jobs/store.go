// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package jobs

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/jobqueue/internal/models"
)

// Queue is the storage surface a runner pass needs.
type Queue interface {
	GetSettings(ctx context.Context) (*models.QueueSettings, error)
	Claim(ctx context.Context, limit int) ([]*models.Job, error)
	MarkSucceeded(ctx context.Context, jobID string, output json.RawMessage) (*models.Job, error)
	MarkFailed(ctx context.Context, jobID, errMsg string, retryIn *time.Duration) (*models.Job, error)
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
}

// WorkerRunStore records diagnostic worker runs.
type WorkerRunStore interface {
	CreateWorkerRun(ctx context.Context, source models.WorkerRunSource) (*models.WorkerRun, error)
	FinishWorkerRun(ctx context.Context, run *models.WorkerRun) error
}

// Maintenance is the cleanup surface available to maintenance handlers.
type Maintenance interface {
	DeleteWorkerRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteFinishedJobsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store is the full job store used by the server and the CLI.
type Store interface {
	Queue
	WorkerRunStore
	Maintenance

	Enqueue(ctx context.Context, taskType string, payload json.RawMessage, opts models.EnqueueOptions) (*models.Job, error)
	RetryJob(ctx context.Context, jobID string) (*models.Job, error)
	CancelJob(ctx context.Context, jobID string) (*models.Job, error)
	DeleteJob(ctx context.Context, jobID string) error
	ListJobs(ctx context.Context, filter models.JobFilter) ([]*models.Job, error)
	CountJobsByStatus(ctx context.Context) (models.JobStats, error)
	RecoverStale(ctx context.Context, olderThan time.Duration) (int, error)

	UpdateSettings(ctx context.Context, enabled bool, reason *string) (*models.QueueSettings, error)
	ListWorkerRuns(ctx context.Context, limit int) ([]*models.WorkerRun, error)

	Ping(ctx context.Context) error
	Close() error
}
