// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

// Package postgres implements the job store on PostgreSQL with pgx.
//
// Claims use SELECT ... FOR UPDATE SKIP LOCKED so concurrent runners never
// block on, or receive, each other's jobs. Transitions lock the row with
// FOR UPDATE, compute the new state through the models package, and write
// it back in the same transaction.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tomtom215/jobqueue/internal/config"
	"github.com/tomtom215/jobqueue/internal/models"
)

// Store is the PostgreSQL job store.
type Store struct {
	pool *pgxpool.Pool

	defaultMaxAttempts int
	now                func() time.Time
}

// Option customizes a Store at construction time.
type Option func(*Store)

// WithDefaultMaxAttempts sets max_attempts for jobs enqueued without one.
func WithDefaultMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.defaultMaxAttempts = n
		}
	}
}

// WithClock replaces the store clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New migrates the database and opens a connection pool.
func New(ctx context.Context, cfg *config.DatabaseConfig, opts ...Option) (*Store, error) {
	db, err := sql.Open("pgx", cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("failed to close migration connection: %w", err)
	}

	pgxConfig, err := pgxpool.ParseConfig(cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pgxConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pgxConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pgxConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pgxConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	s := &Store{
		pool:               pool,
		defaultMaxAttempts: models.DefaultMaxAttempts,
		now:                func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ping checks that the pool can reach the server.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Pool exposes the pgx pool for tests and maintenance tooling.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
