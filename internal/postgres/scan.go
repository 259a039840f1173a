// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tomtom215/jobqueue/internal/models"
)

const jobColumns = `id, task_type, payload, status, attempts, max_attempts, run_at,
	last_error, output, is_recurring, recurrence_interval_minutes, expires_at,
	created_at, updated_at, started_at, completed_at`

const workerRunColumns = `id, source, started_at, completed_at, status,
	processed, succeeded, failed, error_message`

func scanJob(row pgx.Row, extra ...any) (*models.Job, error) {
	var (
		job     models.Job
		payload []byte
		output  []byte
		status  string
	)

	dest := []any{
		&job.ID, &job.TaskType, &payload, &status, &job.Attempts, &job.MaxAttempts, &job.RunAt,
		&job.LastError, &output, &job.IsRecurring, &job.RecurrenceIntervalMinutes, &job.ExpiresAt,
		&job.CreatedAt, &job.UpdatedAt, &job.StartedAt, &job.CompletedAt,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	job.Payload = payload
	if len(output) > 0 {
		job.Output = output
	}
	job.Status = models.JobStatus(status)
	job.RunAt = job.RunAt.UTC()
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	job.ExpiresAt = utcPtr(job.ExpiresAt)
	job.StartedAt = utcPtr(job.StartedAt)
	job.CompletedAt = utcPtr(job.CompletedAt)
	return &job, nil
}

func collectJobs(rows pgx.Rows) ([]*models.Job, error) {
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}
	return jobs, nil
}

func scanWorkerRun(row pgx.Row) (*models.WorkerRun, error) {
	var (
		run    models.WorkerRun
		source string
		status string
	)
	if err := row.Scan(&run.ID, &source, &run.StartedAt, &run.CompletedAt, &status,
		&run.Processed, &run.Succeeded, &run.Failed, &run.ErrorMessage); err != nil {
		return nil, err
	}
	run.Source = models.WorkerRunSource(source)
	run.Status = models.WorkerRunStatus(status)
	run.StartedAt = run.StartedAt.UTC()
	run.CompletedAt = utcPtr(run.CompletedAt)
	return &run, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// jsonArg passes raw JSON to a JSONB parameter; empty documents become NULL.
func jsonArg(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
