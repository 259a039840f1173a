// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package services

import (
	"context"
	"fmt"
)

// PollerManager is the Start/Stop lifecycle of *jobs.Poller.
type PollerManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// PollerService adapts the in-process job poller to suture's Serve pattern.
// It is only added to the tree when JOBS_POLL_ENABLED is set; otherwise an
// external scheduler drives the runner through /jobs/run.
type PollerService struct {
	manager PollerManager
	name    string
}

// NewPollerService wraps manager.
func NewPollerService(manager PollerManager) *PollerService {
	return &PollerService{
		manager: manager,
		name:    "job-poller",
	}
}

// Serve starts the poller, blocks until ctx is cancelled, then stops it.
// A Start failure is returned so the supervisor retries with backoff.
func (s *PollerService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("job poller start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("job poller stop failed: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logs.
func (s *PollerService) String() string {
	return s.name
}
