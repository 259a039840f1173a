// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPServer is the lifecycle surface of *http.Server.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// defaultShutdownTimeout bounds connection draining when none is configured.
const defaultShutdownTimeout = 10 * time.Second

// APIServerService runs the admin and trigger API under the supervisor.
//
// ListenAndServe runs in its own goroutine; cancellation of the Serve
// context triggers Shutdown with a fresh timeout context so in-flight
// runner passes started by /jobs/run can finish writing their results.
//
//	server := &http.Server{Addr: ":8080", Handler: router.Setup()}
//	tree.AddAPIService(services.NewAPIServerService(server, cfg.Server.Timeout))
type APIServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	name            string
}

// NewAPIServerService wraps server. A non-positive shutdownTimeout uses 10s.
func NewAPIServerService(server HTTPServer, shutdownTimeout time.Duration) *APIServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &APIServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            "api-server",
	}
}

// Serve implements suture.Service. A listener failure is returned so the
// supervisor restarts the server with backoff.
func (s *APIServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api server shutdown failed: %w", err)
		}

		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *APIServerService) String() string {
	return s.name
}
