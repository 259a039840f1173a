// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/jobqueue/internal/models"
)

// CreateWorkerRun inserts a running worker run record for source.
func (db *DB) CreateWorkerRun(ctx context.Context, source models.WorkerRunSource) (*models.WorkerRun, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	run := &models.WorkerRun{
		ID:        uuid.New().String(),
		Source:    source,
		StartedAt: db.now(),
		Status:    models.WorkerRunStatusRunning,
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO job_worker_runs (id, source, started_at, status)
		VALUES (?, ?, ?, ?)`,
		run.ID, string(run.Source), run.StartedAt, string(run.Status))
	if err != nil {
		return nil, fmt.Errorf("failed to insert worker run: %w", err)
	}
	return run, nil
}

// FinishWorkerRun stores the final status and counts of a worker run.
// completed_at defaults to now.
func (db *DB) FinishWorkerRun(ctx context.Context, run *models.WorkerRun) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if run.CompletedAt == nil {
		now := db.now()
		run.CompletedAt = &now
	}

	return db.withTx(ctx, "finish worker run", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE job_worker_runs
			SET completed_at = ?, status = ?, processed = ?, succeeded = ?, failed = ?, error_message = ?
			WHERE id = ?`,
			nullableTime(run.CompletedAt), string(run.Status), run.Processed, run.Succeeded, run.Failed,
			nullableString(run.ErrorMessage), run.ID)
		if err != nil {
			return fmt.Errorf("failed to update worker run: %w", err)
		}
		return checkRowsAffected(res, fmt.Errorf("worker run %s not found", run.ID))
	})
}

// ListWorkerRuns returns the most recent worker runs first.
func (db *DB) ListWorkerRuns(ctx context.Context, limit int) ([]*models.WorkerRun, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+workerRunColumns+` FROM job_worker_runs ORDER BY started_at DESC LIMIT ?`,
		clampListLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list worker runs: %w", err)
	}
	defer closeWithLog(rows, "worker run rows")

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
func (db *DB) DeleteWorkerRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int64
	err := db.withTx(ctx, "delete worker runs", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM job_worker_runs WHERE started_at < ?`, cutoff.UTC())
		if err != nil {
			return fmt.Errorf("failed to delete worker runs: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
