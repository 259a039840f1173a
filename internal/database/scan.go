// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/jobqueue/internal/models"
)

const jobColumns = `id, task_type, payload, status, attempts, max_attempts, run_at,
	last_error, output, is_recurring, recurrence_interval_minutes, expires_at,
	created_at, updated_at, started_at, completed_at`

const workerRunColumns = `id, source, started_at, completed_at, status,
	processed, succeeded, failed, error_message`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob reads one row selected with jobColumns. extra receives any
// columns selected after jobColumns.
func scanJob(row rowScanner, extra ...any) (*models.Job, error) {
	var (
		job         models.Job
		payload     string
		status      string
		lastError   sql.NullString
		output      sql.NullString
		interval    sql.NullInt64
		expiresAt   sql.NullTime
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)

	dest := []any{
		&job.ID, &job.TaskType, &payload, &status, &job.Attempts, &job.MaxAttempts, &job.RunAt,
		&lastError, &output, &job.IsRecurring, &interval, &expiresAt,
		&job.CreatedAt, &job.UpdatedAt, &startedAt, &completedAt,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	job.Payload = []byte(payload)
	job.Status = models.JobStatus(status)
	job.RunAt = job.RunAt.UTC()
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	job.LastError = nullStringPtr(lastError)
	if output.Valid {
		job.Output = []byte(output.String)
	}
	if interval.Valid {
		minutes := int(interval.Int64)
		job.RecurrenceIntervalMinutes = &minutes
	}
	job.ExpiresAt = nullTimePtr(expiresAt)
	job.StartedAt = nullTimePtr(startedAt)
	job.CompletedAt = nullTimePtr(completedAt)

	return &job, nil
}

func scanJobs(rows *sql.Rows) ([]*models.Job, error) {
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

func scanWorkerRun(row rowScanner) (*models.WorkerRun, error) {
	var (
		run          models.WorkerRun
		source       string
		status       string
		completedAt  sql.NullTime
		errorMessage sql.NullString
	)

	if err := row.Scan(&run.ID, &source, &run.StartedAt, &completedAt, &status,
		&run.Processed, &run.Succeeded, &run.Failed, &errorMessage); err != nil {
		return nil, err
	}

	run.Source = models.WorkerRunSource(source)
	run.Status = models.WorkerRunStatus(status)
	run.StartedAt = run.StartedAt.UTC()
	run.CompletedAt = nullTimePtr(completedAt)
	run.ErrorMessage = nullStringPtr(errorMessage)
	return &run, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// nullableString converts a string pointer to a driver value
func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// nullableTime converts a time pointer to a driver value
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// nullableInt converts an int pointer to a driver value
func nullableInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

// nullableBytes stores empty JSON documents as NULL
func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
