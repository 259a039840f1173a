// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

// Package stores opens the job store selected by DB_DRIVER. The server and
// jobctl share it so both always talk to the same backend.
package stores

import (
	"context"
	"fmt"

	"github.com/tomtom215/jobqueue/internal/config"
	"github.com/tomtom215/jobqueue/internal/database"
	"github.com/tomtom215/jobqueue/internal/jobs"
	"github.com/tomtom215/jobqueue/internal/postgres"
)

// Compile-time checks that both backends satisfy the full store surface.
var (
	_ jobs.Store = (*database.DB)(nil)
	_ jobs.Store = (*postgres.Store)(nil)
)

// Open returns the configured store. The DuckDB store creates its schema on
// open; the Postgres store applies pending migrations first.
func Open(ctx context.Context, cfg *config.Config) (jobs.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverDuckDB, "":
		db, err := database.New(&cfg.Database, database.WithDefaultMaxAttempts(cfg.Jobs.DefaultMaxAttempts))
		if err != nil {
			return nil, fmt.Errorf("open duckdb store: %w", err)
		}
		return db, nil
	case config.DriverPostgres:
		pg, err := postgres.New(ctx, &cfg.Database, postgres.WithDefaultMaxAttempts(cfg.Jobs.DefaultMaxAttempts))
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}
