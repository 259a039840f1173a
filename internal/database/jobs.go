// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package database

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/jobqueue/internal/logging"
	"github.com/tomtom215/jobqueue/internal/models"
)

// Listing bounds for admin queries.
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// staleJobError is recorded on running jobs reclaimed by RecoverStale.
const staleJobError = "stale: worker did not report a result"

// Enqueue inserts a pending job.
func (db *DB) Enqueue(ctx context.Context, taskType string, payload json.RawMessage, opts models.EnqueueOptions) (*models.Job, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	job, err := models.NewJob(taskType, payload, opts, db.now(), db.defaultMaxAttempts)
	if err != nil {
		return nil, err
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO jobs (
			id, task_type, payload, status, attempts, max_attempts, run_at,
			is_recurring, recurrence_interval_minutes, expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.TaskType, string(job.Payload), string(job.Status), job.Attempts, job.MaxAttempts, job.RunAt,
		job.IsRecurring, nullableInt(job.RecurrenceIntervalMinutes), nullableTime(job.ExpiresAt),
		job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}

	logging.Debug().
		Str("job_id", job.ID).
		Str("task_type", job.TaskType).
		Time("run_at", job.RunAt).
		Msg("Job enqueued")

	return job, nil
}

// Claim atomically moves up to limit due pending jobs to running and returns
// them ordered by run_at, then creation order. Pending jobs whose expiry has
// passed are cancelled with last_error "expired" in the same transaction and
// are never returned.
func (db *DB) Claim(ctx context.Context, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		claimed []*models.Job
		seqs    map[string]int64
		expired int64
	)

	err := db.withTx(ctx, "claim jobs", func(tx *sql.Tx) error {
		now := db.now()
		claimed = claimed[:0]
		seqs = make(map[string]int64, limit)

		res, err := tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = 'cancelled', last_error = ?, completed_at = ?, updated_at = ?
			WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at <= ?`,
			models.ExpiredError, now, now, now)
		if err != nil {
			return fmt.Errorf("failed to expire jobs: %w", err)
		}
		if expired, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}

		rows, err := tx.QueryContext(ctx, `
			UPDATE jobs
			SET status = 'running', started_at = ?, updated_at = ?
			WHERE status = 'pending' AND id IN (
				SELECT id FROM jobs
				WHERE status = 'pending'
					AND run_at <= ?
					AND (expires_at IS NULL OR expires_at > ?)
				ORDER BY run_at, created_at, seq
				LIMIT ?
			)
			RETURNING `+jobColumns+`, seq`,
			now, now, now, now, limit)
		if err != nil {
			return fmt.Errorf("failed to claim jobs: %w", err)
		}
		defer closeWithLog(rows, "claim rows")

		for rows.Next() {
			var seq int64
			job, err := scanJob(rows, &seq)
			if err != nil {
				return fmt.Errorf("failed to scan claimed job: %w", err)
			}
			seqs[job.ID] = seq
			claimed = append(claimed, job)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	// RETURNING order is unspecified
	slices.SortFunc(claimed, func(a, b *models.Job) int {
		if c := a.RunAt.Compare(b.RunAt); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(seqs[a.ID], seqs[b.ID])
	})

	if expired > 0 {
		logging.Info().Int64("count", expired).Msg("Cancelled expired pending jobs")
	}

	return claimed, nil
}

// MarkSucceeded completes a running job. Recurring jobs are rescheduled to
// now + interval with attempts reset instead.
func (db *DB) MarkSucceeded(ctx context.Context, jobID string, output json.RawMessage) (*models.Job, error) {
	return db.transition(ctx, "mark job succeeded", jobID, func(job *models.Job, now time.Time) error {
		return job.ApplySuccess(now, output)
	})
}

// MarkFailed records a failed attempt on a running job. A non-nil retryIn
// reschedules the job while attempts remain; otherwise it fails terminally.
func (db *DB) MarkFailed(ctx context.Context, jobID, errMsg string, retryIn *time.Duration) (*models.Job, error) {
	return db.transition(ctx, "mark job failed", jobID, func(job *models.Job, now time.Time) error {
		return job.ApplyFailure(now, errMsg, retryIn)
	})
}

// RetryJob makes a non-running job pending and due now with attempts reset.
func (db *DB) RetryJob(ctx context.Context, jobID string) (*models.Job, error) {
	return db.transition(ctx, "retry job", jobID, func(job *models.Job, now time.Time) error {
		return job.ApplyRetry(now)
	})
}

// CancelJob cancels a pending or running job.
func (db *DB) CancelJob(ctx context.Context, jobID string) (*models.Job, error) {
	return db.transition(ctx, "cancel job", jobID, func(job *models.Job, now time.Time) error {
		return job.ApplyCancel(now)
	})
}

// DeleteJob removes a job row regardless of status.
func (db *DB) DeleteJob(ctx context.Context, jobID string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	return db.withTx(ctx, "delete job", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
		if err != nil {
			return fmt.Errorf("failed to delete job: %w", err)
		}
		return checkRowsAffected(res, models.ErrJobNotFound)
	})
}

// GetJob returns a job by ID.
func (db *DB) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs matching the filter, newest first.
func (db *DB) ListJobs(ctx context.Context, filter models.JobFilter) ([]*models.Job, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.TaskType != "" {
		where = append(where, "task_type = ?")
		args = append(args, filter.TaskType)
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, seq DESC LIMIT ? OFFSET ?`
	args = append(args, clampListLimit(filter.Limit), max(filter.Offset, 0))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer closeWithLog(rows, "job rows")

	return scanJobs(rows)
}

// CountJobsByStatus returns the number of jobs in every status, including
// statuses with no rows.
func (db *DB) CountJobsByStatus(ctx context.Context) (models.JobStats, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stats := make(models.JobStats, len(models.AllJobStatuses))
	for _, s := range models.AllJobStatuses {
		stats[s] = 0
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer closeWithLog(rows, "job count rows")

	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", err)
		}
		stats[models.JobStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job counts: %w", err)
	}
	return stats, nil
}

// RecoverStale records a failed attempt on running jobs claimed longer than
// olderThan ago. Jobs with attempts left return to pending immediately; the
// rest fail. It returns the number of jobs touched.
func (db *DB) RecoverStale(ctx context.Context, olderThan time.Duration) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	cutoff := db.now().Add(-olderThan)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id FROM jobs WHERE status = 'running' AND started_at <= ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale jobs: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			closeQuietly(rows)
			return 0, fmt.Errorf("failed to scan stale job: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		closeQuietly(rows)
		return 0, fmt.Errorf("error iterating stale jobs: %w", err)
	}
	closeWithLog(rows, "stale job rows")

	immediately := time.Duration(0)
	recovered := 0
	for _, id := range ids {
		job, err := db.MarkFailed(ctx, id, staleJobError, &immediately)
		if errors.Is(err, models.ErrInvalidTransition) || errors.Is(err, models.ErrJobNotFound) {
			// Finished or removed since the scan
			continue
		}
		if err != nil {
			return recovered, err
		}
		recovered++
		logging.Warn().
			Str("job_id", job.ID).
			Str("task_type", job.TaskType).
			Str("status", string(job.Status)).
			Int("attempts", job.Attempts).
			Msg("Recovered stale running job")
	}
	return recovered, nil
}

// DeleteFinishedJobsBefore removes terminal one-shot jobs completed before
// cutoff and returns the number removed.
func (db *DB) DeleteFinishedJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int64
	err := db.withTx(ctx, "delete finished jobs", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM jobs
			WHERE status IN ('succeeded', 'failed', 'cancelled')
				AND is_recurring = false
				AND completed_at IS NOT NULL
				AND completed_at < ?`, cutoff.UTC())
		if err != nil {
			return fmt.Errorf("failed to delete finished jobs: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

// transition loads a job, applies a state change in Go, and persists it
// with an UPDATE guarded on the status the change started from.
func (db *DB) transition(ctx context.Context, op, jobID string, apply func(job *models.Job, now time.Time) error) (*models.Job, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var out *models.Job
	err := db.withTx(ctx, op, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID)
		job, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrJobNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load job: %w", err)
		}

		from := job.Status
		if err := apply(job, db.now()); err != nil {
			return fmt.Errorf("%w: %s from %s", err, op, from)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = ?, attempts = ?, run_at = ?, last_error = ?, output = ?,
				started_at = ?, completed_at = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			string(job.Status), job.Attempts, job.RunAt, nullableString(job.LastError), nullableBytes(job.Output),
			nullableTime(job.StartedAt), nullableTime(job.CompletedAt), job.UpdatedAt,
			job.ID, string(from))
		if err != nil {
			return fmt.Errorf("failed to update job: %w", err)
		}
		if err := checkRowsAffected(res, models.ErrInvalidTransition); err != nil {
			return err
		}

		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func clampListLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}
