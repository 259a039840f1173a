// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package handlers

import (
	"context"
	"errors"

	"github.com/tomtom215/jobqueue/internal/config"
	"github.com/tomtom215/jobqueue/internal/jobs"
	"github.com/tomtom215/jobqueue/internal/models"
)

// ErrAlwaysThrows is the error returned by the always_throws handler.
var ErrAlwaysThrows = errors.New("always_throws: intentional failure")

// Builtins returns every built-in handler keyed by task type.
func Builtins(cfg *config.Config) map[jobs.TaskType]jobs.Handler {
	webhook := NewWebhookDeliverer(cfg.Webhook)

	return map[jobs.TaskType]jobs.Handler{
		jobs.TaskNoopSuccess:       NoopSuccess,
		jobs.TaskAlwaysThrows:      AlwaysThrows,
		jobs.TaskWebhookDeliver:    webhook.Handle,
		jobs.TaskPurgeWorkerRuns:   PurgeWorkerRuns(cfg.Jobs.WorkerRunRetention),
		jobs.TaskPurgeFinishedJobs: PurgeFinishedJobs(DefaultFinishedJobRetention),
	}
}

// NoopSuccess completes without doing anything.
func NoopSuccess(_ context.Context, job *models.Job, deps jobs.Deps) (*jobs.Result, error) {
	deps.Logger.Debug().Str("job_id", job.ID).Msg("noop_success executed")
	return nil, nil
}

// AlwaysThrows fails every time.
func AlwaysThrows(context.Context, *models.Job, jobs.Deps) (*jobs.Result, error) {
	return nil, ErrAlwaysThrows
}
