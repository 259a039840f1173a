// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/jobqueue/internal/logging"
	"github.com/tomtom215/jobqueue/internal/metrics"
	"github.com/tomtom215/jobqueue/internal/models"
)

// PollerStore is the housekeeping surface the poller uses between passes.
// It is optional.
type PollerStore interface {
	RecoverStale(ctx context.Context, olderThan time.Duration) (int, error)
	CountJobsByStatus(ctx context.Context) (models.JobStats, error)
}

// PollerConfig holds configuration for the in-process poller.
type PollerConfig struct {
	// Interval is how often to run a pass (default: 1 minute)
	Interval time.Duration

	// Limit is the claim limit per pass; <= 0 means the runner default.
	Limit int

	// StaleAfter returns running jobs older than this to the queue before
	// each pass. Zero disables recovery.
	StaleAfter time.Duration

	// PassTimeout bounds a single pass (default: 5 minutes)
	PassTimeout time.Duration
}

// Poller triggers runner passes on an interval. It is the in-process
// alternative to an external scheduler calling /jobs/run.
type Poller struct {
	runner *Runner
	store  PollerStore
	config PollerConfig
	logger zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewPoller creates a poller. store may be nil.
func NewPoller(runner *Runner, store PollerStore, config PollerConfig) *Poller {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.PassTimeout <= 0 {
		config.PassTimeout = 5 * time.Minute
	}

	return &Poller{
		runner: runner,
		store:  store,
		config: config,
		logger: logging.WithComponent("job-poller"),
	}
}

// Start begins the poll loop.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	p.logger.Info().
		Dur("interval", p.config.Interval).
		Int("limit", p.runner.BatchSize(p.config.Limit)).
		Dur("stale_after", p.config.StaleAfter).
		Msg("Starting job poller")

	go p.run(ctx)
	return nil
}

// Stop stops the poll loop and waits for an in-flight pass to finish.
func (p *Poller) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)
	<-p.doneCh

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	p.logger.Info().Msg("Job poller stopped")
	return nil
}

// IsRunning reports whether the loop is active.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// Run immediately on start
	p.Tick(ctx)

	for {
		select {
		case <-ticker.C:
			p.Tick(ctx)
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Tick performs one poll: stale recovery, a runner pass, and gauge refresh.
func (p *Poller) Tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.config.PassTimeout)
	defer cancel()

	if p.store != nil && p.config.StaleAfter > 0 {
		recovered, err := p.store.RecoverStale(ctx, p.config.StaleAfter)
		if err != nil {
			p.logger.Error().Err(err).Msg("Stale job recovery failed")
		} else if recovered > 0 {
			metrics.JobsRecovered.Add(float64(recovered))
			p.logger.Warn().Int("recovered", recovered).Msg("Returned stale running jobs to the queue")
		}
	}

	if _, err := p.runner.Run(ctx, RunOptions{
		Limit:  p.config.Limit,
		Source: models.WorkerRunSourceScheduler,
	}); err != nil {
		p.logger.Error().Err(err).Msg("Scheduled runner pass failed")
	}

	if p.store != nil {
		counts, err := p.store.CountJobsByStatus(ctx)
		if err != nil {
			p.logger.Debug().Err(err).Msg("Failed to refresh job status gauges")
			return
		}
		gauges := make(map[string]int, len(counts))
		for status, n := range counts {
			gauges[string(status)] = n
		}
		metrics.UpdateJobStatusGauges(gauges)
	}
}
