// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tomtom215/jobqueue/internal/models"
)

// GetSettings returns the queue settings singleton. A missing row reads as
// processing enabled.
func (db *DB) GetSettings(ctx context.Context) (*models.QueueSettings, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		settings models.QueueSettings
		reason   sql.NullString
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT processing_enabled, paused_reason, updated_at FROM job_queue_settings WHERE id = ?`,
		models.QueueSettingsID,
	).Scan(&settings.ProcessingEnabled, &reason, &settings.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.QueueSettings{ProcessingEnabled: true, UpdatedAt: db.now()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job queue settings: %w", err)
	}

	settings.PausedReason = nullStringPtr(reason)
	settings.UpdatedAt = settings.UpdatedAt.UTC()
	return &settings, nil
}

// UpdateSettings sets the processing switch. The paused reason is kept only
// while processing is disabled.
func (db *DB) UpdateSettings(ctx context.Context, enabled bool, reason *string) (*models.QueueSettings, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	settings := &models.QueueSettings{
		ProcessingEnabled: enabled,
		UpdatedAt:         db.now(),
	}
	if !enabled && reason != nil && *reason != "" {
		r := *reason
		settings.PausedReason = &r
	}

	err := db.withTx(ctx, "update job queue settings", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO job_queue_settings (id, processing_enabled, paused_reason, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				processing_enabled = excluded.processing_enabled,
				paused_reason = excluded.paused_reason,
				updated_at = excluded.updated_at`,
			models.QueueSettingsID, settings.ProcessingEnabled, nullableString(settings.PausedReason), settings.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update job queue settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settings, nil
}
