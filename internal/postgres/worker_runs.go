// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/jobqueue/internal/models"
)

// CreateWorkerRun inserts a running worker run record for source.
func (s *Store) CreateWorkerRun(ctx context.Context, source models.WorkerRunSource) (*models.WorkerRun, error) {
	run := &models.WorkerRun{
		ID:        uuid.New().String(),
		Source:    source,
		StartedAt: s.now(),
		Status:    models.WorkerRunStatusRunning,
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_worker_runs (id, source, started_at, status) VALUES ($1, $2, $3, $4)`,
		run.ID, string(run.Source), run.StartedAt, string(run.Status))
	if err != nil {
		return nil, fmt.Errorf("failed to insert worker run: %w", err)
	}
	return run, nil
}

// FinishWorkerRun stores the final status and counts of a worker run.
func (s *Store) FinishWorkerRun(ctx context.Context, run *models.WorkerRun) error {
	if run.CompletedAt == nil {
		now := s.now()
		run.CompletedAt = &now
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE job_worker_runs
		SET completed_at = $2, status = $3, processed = $4, succeeded = $5, failed = $6, error_message = $7
		WHERE id = $1`,
		run.ID, run.CompletedAt, string(run.Status), run.Processed, run.Succeeded, run.Failed, run.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to update worker run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("worker run %s not found", run.ID)
	}
	return nil
}

// ListWorkerRuns returns the most recent worker runs first.
func (s *Store) ListWorkerRuns(ctx context.Context, limit int) ([]*models.WorkerRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+workerRunColumns+` FROM job_worker_runs ORDER BY started_at DESC LIMIT $1`,
		clampListLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list worker runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.WorkerRun
	for rows.Next() {
		run, err := scanWorkerRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan worker run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating worker runs: %w", err)
	}
	return runs, nil
}

// DeleteWorkerRunsBefore removes worker runs started before cutoff.
func (s *Store) DeleteWorkerRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM job_worker_runs WHERE started_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete worker runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
