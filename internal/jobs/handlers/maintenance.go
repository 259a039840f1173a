// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/jobqueue/internal/jobs"
	"github.com/tomtom215/jobqueue/internal/models"
	"github.com/tomtom215/jobqueue/internal/validation"
)

// DefaultFinishedJobRetention is how long finished one-shot jobs are kept
// when a purge payload does not say otherwise.
const DefaultFinishedJobRetention = 7 * 24 * time.Hour

// ErrNoMaintenance is returned when the runner was built without a store
// for maintenance handlers.
var ErrNoMaintenance = errors.New("maintenance store not configured")

// PurgePayload is the optional payload of the purge handlers.
type PurgePayload struct {
	// OlderThan overrides the handler's retention, e.g. "720h".
	OlderThan string `json:"older_than" validate:"omitempty,duration"`
}

// PurgeOutput is stored as the job output.
type PurgeOutput struct {
	Deleted int64     `json:"deleted"`
	Cutoff  time.Time `json:"cutoff"`
}

// PurgeWorkerRuns deletes worker run records that started before the
// retention window.
func PurgeWorkerRuns(retention time.Duration) jobs.Handler {
	return purgeHandler(retention, "worker runs", func(ctx context.Context, m jobs.Maintenance, cutoff time.Time) (int64, error) {
		return m.DeleteWorkerRunsBefore(ctx, cutoff)
	})
}

// PurgeFinishedJobs deletes succeeded, failed and cancelled one-shot jobs
// that completed before the retention window.
func PurgeFinishedJobs(retention time.Duration) jobs.Handler {
	return purgeHandler(retention, "finished jobs", func(ctx context.Context, m jobs.Maintenance, cutoff time.Time) (int64, error) {
		return m.DeleteFinishedJobsBefore(ctx, cutoff)
	})
}

type purgeFunc func(ctx context.Context, m jobs.Maintenance, cutoff time.Time) (int64, error)

func purgeHandler(retention time.Duration, what string, purge purgeFunc) jobs.Handler {
	return func(ctx context.Context, job *models.Job, deps jobs.Deps) (*jobs.Result, error) {
		if deps.Maintenance == nil {
			return nil, ErrNoMaintenance
		}

		window, err := purgeWindow(job.Payload, retention)
		if err != nil {
			return &jobs.Result{Failed: true, Error: err.Error()}, nil
		}

		now := time.Now().UTC()
		if deps.Now != nil {
			now = deps.Now()
		}
		cutoff := now.Add(-window)

		deleted, err := purge(ctx, deps.Maintenance, cutoff)
		if err != nil {
			return nil, fmt.Errorf("purge %s: %w", what, err)
		}

		deps.Logger.Info().
			Int64("deleted", deleted).
			Time("cutoff", cutoff).
			Msgf("Purged %s", what)
		return &jobs.Result{Output: PurgeOutput{Deleted: deleted, Cutoff: cutoff}}, nil
	}
}

func purgeWindow(payload json.RawMessage, fallback time.Duration) (time.Duration, error) {
	var p PurgePayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return 0, fmt.Errorf("invalid purge payload: %w", err)
		}
	}
	if verr := validation.ValidateStruct(&p); verr != nil {
		return 0, fmt.Errorf("invalid purge payload: %w", verr)
	}
	if p.OlderThan == "" {
		if fallback <= 0 {
			return 0, fmt.Errorf("no retention configured")
		}
		return fallback, nil
	}
	return time.ParseDuration(p.OlderThan)
}
