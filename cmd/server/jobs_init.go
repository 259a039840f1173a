// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/jobqueue/internal/config"
	"github.com/tomtom215/jobqueue/internal/jobs"
	"github.com/tomtom215/jobqueue/internal/jobs/handlers"
	"github.com/tomtom215/jobqueue/internal/logging"
	"github.com/tomtom215/jobqueue/internal/metrics"
)

// purgeWorkerRunsIntervalMinutes is how often the recurring cleanup job runs.
const purgeWorkerRunsIntervalMinutes = 24 * 60

// buildRegistry registers the built-in handlers and checks that every task
// type the deployment requires has one.
func buildRegistry(cfg *config.Config) (*jobs.Registry, error) {
	registry, err := jobs.NewRegistry(handlers.Builtins(cfg))
	if err != nil {
		return nil, fmt.Errorf("build handler registry: %w", err)
	}

	required := cfg.Jobs.RequiredTaskTypes
	if len(required) == 0 {
		for _, t := range jobs.BuiltinTaskTypes {
			required = append(required, string(t))
		}
	}
	if err := registry.Require(required...); err != nil {
		return nil, fmt.Errorf("handler registry incomplete: %w", err)
	}
	return registry, nil
}

// initJobs wires the registry, runner, and optional poller over store.
// The returned poller is nil when JOBS_POLL_ENABLED is off. Nil observers are skipped.
func initJobs(ctx context.Context, cfg *config.Config, store jobs.Store, observers ...jobs.Observer) (*jobs.Runner, *jobs.Poller, error) {
	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, nil, err
	}
	logging.Info().Int("handlers", len(registry.TaskTypes())).Msg("Handler registry validated")

	opts := []jobs.RunnerOption{
		jobs.WithWorkerRuns(store),
		jobs.WithMaintenance(store),
	}
	for _, o := range observers {
		opts = append(opts, jobs.WithObserver(o))
	}
	runner, err := jobs.NewRunner(store, registry, jobs.RunnerConfigFrom(cfg.Jobs), opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create runner: %w", err)
	}

	if job, err := jobs.EnsureRecurring(ctx, store, registry, jobs.TaskPurgeWorkerRuns, nil, purgeWorkerRunsIntervalMinutes); err != nil {
		logging.Warn().Err(err).Msg("Failed to schedule worker run cleanup")
	} else {
		logging.Info().Str("job_id", job.ID).Time("run_at", job.RunAt).Msg("Worker run cleanup scheduled")
	}

	if settings, err := store.GetSettings(ctx); err == nil {
		metrics.SetProcessingEnabled(settings.ProcessingEnabled)
	}

	if !cfg.Jobs.PollEnabled {
		return runner, nil, nil
	}

	poller := jobs.NewPoller(runner, store, jobs.PollerConfig{
		Interval:   cfg.Jobs.PollInterval,
		StaleAfter: cfg.Jobs.StaleAfter,
	})
	return runner, poller, nil
}
