// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package database

import (
	"context"
	"fmt"

	"github.com/tomtom215/jobqueue/internal/models"
)

// No secondary indexes: DuckDB rewrites ART index entries on every UPDATE
// of an indexed column, and status and run_at change on every transition.
var schemaStatements = []string{
	`CREATE SEQUENCE IF NOT EXISTS jobs_seq START 1`,

	`CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		seq BIGINT NOT NULL DEFAULT nextval('jobs_seq'),
		task_type TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 3,
		run_at TIMESTAMP NOT NULL,
		last_error TEXT,
		output TEXT,
		is_recurring BOOLEAN NOT NULL DEFAULT false,
		recurrence_interval_minutes INTEGER,
		expires_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		started_at TIMESTAMP,
		completed_at TIMESTAMP,
		CHECK (status IN ('pending', 'running', 'succeeded', 'failed', 'cancelled')),
		CHECK (attempts >= 0),
		CHECK (max_attempts >= 1),
		CHECK (recurrence_interval_minutes IS NULL OR recurrence_interval_minutes > 0)
	)`,

	`CREATE TABLE IF NOT EXISTS job_queue_settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		processing_enabled BOOLEAN NOT NULL DEFAULT true,
		paused_reason TEXT,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS job_worker_runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		status TEXT NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0,
		succeeded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error_message TEXT
	)`,
}

// createTables creates the job queue schema if it does not exist
func (db *DB) createTables(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// seedSettings inserts the settings singleton with processing enabled.
// An existing row is left untouched so a pause survives restarts.
func (db *DB) seedSettings(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO job_queue_settings (id, processing_enabled, paused_reason, updated_at)
		VALUES (?, true, NULL, ?)
		ON CONFLICT DO NOTHING`,
		models.QueueSettingsID, db.now())
	if err != nil {
		return fmt.Errorf("failed to seed job queue settings: %w", err)
	}
	return nil
}
