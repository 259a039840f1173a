// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package postgres

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/tomtom215/jobqueue/internal/logging"
	"github.com/tomtom215/jobqueue/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

const staleJobError = "stale: worker did not report a result"

const (
	insertJobQuery = `
		INSERT INTO jobs (
			id, task_type, payload, status, attempts, max_attempts, run_at,
			is_recurring, recurrence_interval_minutes, expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	expireJobsQuery = `
		UPDATE jobs
		SET status = 'cancelled', last_error = $1, completed_at = $2, updated_at = $2
		WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at <= $2`

	claimJobsQuery = `
		WITH due AS (
			SELECT id FROM jobs
			WHERE status = 'pending'
				AND run_at <= $1
				AND (expires_at IS NULL OR expires_at > $1)
			ORDER BY run_at, created_at, seq
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE jobs
		SET status = 'running', started_at = $1, updated_at = $1
		FROM due
		WHERE jobs.id = due.id
		RETURNING ` + qualifiedJobColumns

	lockJobQuery = `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1 FOR UPDATE`

	saveJobQuery = `
		UPDATE jobs
		SET status = $2, attempts = $3, run_at = $4, last_error = $5, output = $6,
			started_at = $7, completed_at = $8, updated_at = $9
		WHERE id = $1`
)

// qualifiedJobColumns disambiguates RETURNING when the UPDATE joins a CTE.
const qualifiedJobColumns = `jobs.id, jobs.task_type, jobs.payload, jobs.status, jobs.attempts,
	jobs.max_attempts, jobs.run_at, jobs.last_error, jobs.output, jobs.is_recurring,
	jobs.recurrence_interval_minutes, jobs.expires_at, jobs.created_at, jobs.updated_at,
	jobs.started_at, jobs.completed_at, jobs.seq`

// Enqueue inserts a pending job.
func (s *Store) Enqueue(ctx context.Context, taskType string, payload json.RawMessage, opts models.EnqueueOptions) (*models.Job, error) {
	job, err := models.NewJob(taskType, payload, opts, s.now(), s.defaultMaxAttempts)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx, insertJobQuery,
		job.ID, job.TaskType, string(job.Payload), string(job.Status), job.Attempts, job.MaxAttempts, job.RunAt,
		job.IsRecurring, job.RecurrenceIntervalMinutes, job.ExpiresAt, job.CreatedAt, job.UpdatedAt)
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

// Claim atomically moves up to limit due pending jobs to running, ordered by
// run_at then creation order. Expired pending jobs are cancelled first.
func (s *Store) Claim(ctx context.Context, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	now := s.now()
	var claimed []*models.Job
	var expired int64

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, expireJobsQuery, models.ExpiredError, now)
		if err != nil {
			return fmt.Errorf("failed to expire jobs: %w", err)
		}
		expired = tag.RowsAffected()

		rows, err := tx.Query(ctx, claimJobsQuery, now, limit)
		if err != nil {
			return fmt.Errorf("failed to claim jobs: %w", err)
		}
		defer rows.Close()

		type claimedJob struct {
			job *models.Job
			seq int64
		}
		var batch []claimedJob
		for rows.Next() {
			var seq int64
			job, err := scanJob(rows, &seq)
			if err != nil {
				return fmt.Errorf("failed to scan claimed job: %w", err)
			}
			batch = append(batch, claimedJob{job: job, seq: seq})
		}
		if err := rows.Err(); err != nil {
			return err
		}

		// RETURNING order is unspecified
		slices.SortFunc(batch, func(a, b claimedJob) int {
			if c := a.job.RunAt.Compare(b.job.RunAt); c != 0 {
				return c
			}
			if c := a.job.CreatedAt.Compare(b.job.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(a.seq, b.seq)
		})
		for _, c := range batch {
			claimed = append(claimed, c.job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if expired > 0 {
		logging.Info().Int64("count", expired).Msg("Cancelled expired pending jobs")
	}
	return claimed, nil
}

// MarkSucceeded completes a running job or reschedules a recurring one.
func (s *Store) MarkSucceeded(ctx context.Context, jobID string, output json.RawMessage) (*models.Job, error) {
	return s.transition(ctx, "mark job succeeded", jobID, func(job *models.Job, now time.Time) error {
		return job.ApplySuccess(now, output)
	})
}

// MarkFailed records a failed attempt on a running job.
func (s *Store) MarkFailed(ctx context.Context, jobID, errMsg string, retryIn *time.Duration) (*models.Job, error) {
	return s.transition(ctx, "mark job failed", jobID, func(job *models.Job, now time.Time) error {
		return job.ApplyFailure(now, errMsg, retryIn)
	})
}

// RetryJob makes a non-running job pending and due now with attempts reset.
func (s *Store) RetryJob(ctx context.Context, jobID string) (*models.Job, error) {
	return s.transition(ctx, "retry job", jobID, func(job *models.Job, now time.Time) error {
		return job.ApplyRetry(now)
	})
}

// CancelJob cancels a pending or running job.
func (s *Store) CancelJob(ctx context.Context, jobID string) (*models.Job, error) {
	return s.transition(ctx, "cancel job", jobID, func(job *models.Job, now time.Time) error {
		return job.ApplyCancel(now)
	})
}

// DeleteJob removes a job row regardless of status.
func (s *Store) DeleteJob(ctx context.Context, jobID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrJobNotFound
	}
	return nil
}

// GetJob returns a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID))
	if isNoRows(err) {
		return nil, models.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs matching the filter, newest first.
func (s *Store) ListJobs(ctx context.Context, filter models.JobFilter) ([]*models.Job, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.TaskType != "" {
		args = append(args, filter.TaskType)
		where = append(where, fmt.Sprintf("task_type = $%d", len(args)))
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, clampListLimit(filter.Limit), max(filter.Offset, 0))
	query += fmt.Sprintf(` ORDER BY created_at DESC, seq DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return collectJobs(rows)
}

// CountJobsByStatus returns the number of jobs in every status.
func (s *Store) CountJobsByStatus(ctx context.Context) (models.JobStats, error) {
	stats := make(models.JobStats, len(models.AllJobStatuses))
	for _, st := range models.AllJobStatuses {
		stats[st] = 0
	}

	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", err)
		}
		stats[models.JobStatus(status)] = int(count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job counts: %w", err)
	}
	return stats, nil
}

// RecoverStale records a failed attempt on running jobs claimed longer than
// olderThan ago and returns the number of jobs touched.
func (s *Store) RecoverStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)

	rows, err := s.pool.Query(ctx, `SELECT id FROM jobs WHERE status = 'running' AND started_at <= $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale jobs: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, fmt.Errorf("failed to scan stale jobs: %w", err)
	}

	immediately := time.Duration(0)
	recovered := 0
	for _, id := range ids {
		job, err := s.MarkFailed(ctx, id, staleJobError, &immediately)
		if errors.Is(err, models.ErrInvalidTransition) || errors.Is(err, models.ErrJobNotFound) {
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

// DeleteFinishedJobsBefore removes terminal one-shot jobs completed before cutoff.
func (s *Store) DeleteFinishedJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM jobs
		WHERE status IN ('succeeded', 'failed', 'cancelled')
			AND is_recurring = false
			AND completed_at IS NOT NULL
			AND completed_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete finished jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// transition locks the job row, applies a state change, and saves it.
func (s *Store) transition(ctx context.Context, op, jobID string, apply func(job *models.Job, now time.Time) error) (*models.Job, error) {
	var out *models.Job

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		job, err := scanJob(tx.QueryRow(ctx, lockJobQuery, jobID))
		if isNoRows(err) {
			return models.ErrJobNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load job: %w", err)
		}

		from := job.Status
		if err := apply(job, s.now()); err != nil {
			return fmt.Errorf("%w: %s from %s", err, op, from)
		}

		_, err = tx.Exec(ctx, saveJobQuery,
			job.ID, string(job.Status), job.Attempts, job.RunAt, job.LastError, jsonArg(job.Output),
			job.StartedAt, job.CompletedAt, job.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update job: %w", err)
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
