// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package postgres

import (
	"context"
	"fmt"

	"github.com/tomtom215/jobqueue/internal/models"
)

// GetSettings returns the queue settings singleton. A missing row reads as
// processing enabled.
func (s *Store) GetSettings(ctx context.Context) (*models.QueueSettings, error) {
	var settings models.QueueSettings
	err := s.pool.QueryRow(ctx,
		`SELECT processing_enabled, paused_reason, updated_at FROM job_queue_settings WHERE id = $1`,
		models.QueueSettingsID,
	).Scan(&settings.ProcessingEnabled, &settings.PausedReason, &settings.UpdatedAt)
	if isNoRows(err) {
		return &models.QueueSettings{ProcessingEnabled: true, UpdatedAt: s.now()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job queue settings: %w", err)
	}
	settings.UpdatedAt = settings.UpdatedAt.UTC()
	return &settings, nil
}

// UpdateSettings sets the processing switch. The paused reason is kept only
// while processing is disabled.
func (s *Store) UpdateSettings(ctx context.Context, enabled bool, reason *string) (*models.QueueSettings, error) {
	settings := &models.QueueSettings{
		ProcessingEnabled: enabled,
		UpdatedAt:         s.now(),
	}
	if !enabled && reason != nil && *reason != "" {
		r := *reason
		settings.PausedReason = &r
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_queue_settings (id, processing_enabled, paused_reason, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			processing_enabled = EXCLUDED.processing_enabled,
			paused_reason = EXCLUDED.paused_reason,
			updated_at = EXCLUDED.updated_at`,
		models.QueueSettingsID, settings.ProcessingEnabled, settings.PausedReason, settings.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update job queue settings: %w", err)
	}
	return settings, nil
}
