// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/jobqueue/internal/config"
	"github.com/tomtom215/jobqueue/internal/database"
	"github.com/tomtom215/jobqueue/internal/models"
	"github.com/tomtom215/jobqueue/internal/postgres"
)

// Both stores satisfy the full interface.
var (
	_ Store = (*database.DB)(nil)
	_ Store = (*postgres.Store)(nil)
)

// testDBSemaphore serializes DuckDB creation across tests in this package.
var testDBSemaphore = make(chan struct{}, 1)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// setupTestStore opens an in-memory DuckDB store driven by a fixed clock.
func setupTestStore(t *testing.T) (*database.DB, *testClock) {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	clock := newTestClock()
	db, err := database.New(&config.DatabaseConfig{
		Driver:    config.DriverDuckDB,
		Path:      ":memory:",
		MaxMemory: "512MB",
	}, database.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return db, clock
}

func mustEnqueue(t *testing.T, store Enqueuer, taskType string, opts models.EnqueueOptions) *models.Job {
	t.Helper()
	job, err := store.Enqueue(context.Background(), taskType, nil, opts)
	if err != nil {
		t.Fatalf("Enqueue(%s): %v", taskType, err)
	}
	return job
}

func mustGetJob(t *testing.T, db *database.DB, id string) *models.Job {
	t.Helper()
	job, err := db.GetJob(context.Background(), id)
	if err != nil {
		t.Fatalf("GetJob(%s): %v", id, err)
	}
	return job
}

func newTestRunner(t *testing.T, queue Queue, handlers map[TaskType]Handler, opts ...RunnerOption) *Runner {
	t.Helper()
	registry, err := NewRegistry(handlers)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	opts = append([]RunnerOption{WithLogger(zerolog.Nop())}, opts...)
	runner, err := NewRunner(queue, registry, RunnerConfig{}, opts...)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return runner
}

func throwingHandler(context.Context, *models.Job, Deps) (*Result, error) {
	return nil, errors.New("intentional failure")
}

// mockQueue is an in-memory Queue that records calls and injects errors.
type mockQueue struct {
	mu sync.Mutex

	settings    models.QueueSettings
	settingsErr error
	claimErr    error
	markErr     error

	pending    []*models.Job
	claimCalls int
	claimLimit int
	succeeded  []string
	failed     map[string]string
	rows       map[string]*models.Job
}

func newMockQueue(jobs ...*models.Job) *mockQueue {
	return &mockQueue{
		settings: models.QueueSettings{ProcessingEnabled: true},
		pending:  jobs,
		failed:   make(map[string]string),
	}
}

func (m *mockQueue) GetSettings(context.Context) (*models.QueueSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settingsErr != nil {
		return nil, m.settingsErr
	}
	s := m.settings
	return &s, nil
}

func (m *mockQueue) Claim(_ context.Context, limit int) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claimCalls++
	m.claimLimit = limit
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	n := min(limit, len(m.pending))
	claimed := m.pending[:n]
	m.pending = m.pending[n:]
	for _, j := range claimed {
		j.Status = models.JobStatusRunning
	}
	return claimed, nil
}

func (m *mockQueue) MarkSucceeded(_ context.Context, jobID string, _ json.RawMessage) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return nil, m.markErr
	}
	m.succeeded = append(m.succeeded, jobID)
	return &models.Job{ID: jobID, Status: models.JobStatusSucceeded}, nil
}

func (m *mockQueue) MarkFailed(_ context.Context, jobID, errMsg string, _ *time.Duration) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return nil, m.markErr
	}
	m.failed[jobID] = errMsg
	return &models.Job{ID: jobID, Status: models.JobStatusFailed, Attempts: 1, LastError: &errMsg}, nil
}

// GetJob serves rows seeded into m.rows.
func (m *mockQueue) GetJob(_ context.Context, jobID string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.rows[jobID]
	if !ok {
		return nil, models.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

// failingRuns is a WorkerRunStore whose writes always fail.
type failingRuns struct {
	mu            sync.Mutex
	createCalls   int
	finishCalls   int
	failOnCreate  bool
	lastFinishRun *models.WorkerRun
}

func (f *failingRuns) CreateWorkerRun(_ context.Context, source models.WorkerRunSource) (*models.WorkerRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.failOnCreate {
		return nil, errors.New("worker runs table unavailable")
	}
	return &models.WorkerRun{ID: "run-1", Source: source, Status: models.WorkerRunStatusRunning}, nil
}

func (f *failingRuns) FinishWorkerRun(_ context.Context, run *models.WorkerRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishCalls++
	f.lastFinishRun = run
	return errors.New("worker runs table unavailable")
}
