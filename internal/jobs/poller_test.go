// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/jobqueue/internal/models"
)

func TestPoller_TickRecoversAndRuns(t *testing.T) {
	db, clock := setupTestStore(t)
	ctx := context.Background()

	// A job left running by a worker that died
	stuck := mustEnqueue(t, db, string(TaskNoopSuccess), models.EnqueueOptions{MaxAttempts: 3})
	if _, err := db.Claim(ctx, 1); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Hour)

	fresh := mustEnqueue(t, db, string(TaskNoopSuccess), models.EnqueueOptions{})

	runner := newTestRunner(t, db, map[TaskType]Handler{TaskNoopSuccess: okHandler}, WithWorkerRuns(db))
	poller := NewPoller(runner, db, PollerConfig{Interval: time.Hour, StaleAfter: 10 * time.Minute})

	poller.Tick(ctx)

	if got := mustGetJob(t, db, fresh.ID); got.Status != models.JobStatusSucceeded {
		t.Errorf("fresh job = %s, want succeeded", got.Status)
	}
	got := mustGetJob(t, db, stuck.ID)
	if got.Status != models.JobStatusSucceeded || got.Attempts != 1 {
		t.Errorf("stuck job = %s attempts=%d, want recovered then succeeded", got.Status, got.Attempts)
	}

	runs, err := db.ListWorkerRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Source != models.WorkerRunSourceScheduler {
		t.Errorf("worker runs = %+v, want one scheduler run", runs)
	}
}

func TestPoller_StartStop(t *testing.T) {
	t.Parallel()

	q := newMockQueue(&models.Job{ID: "a", TaskType: "noop_success"})
	runner := newTestRunner(t, q, map[TaskType]Handler{TaskNoopSuccess: okHandler})
	poller := NewPoller(runner, nil, PollerConfig{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := poller.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := poller.Start(ctx); err == nil {
		t.Error("second Start should fail while running")
	}
	if !poller.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		q.mu.Lock()
		done := len(q.succeeded) == 1
		q.mu.Unlock()
		if done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("poller did not process the job")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := poller.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if poller.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	if err := poller.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestNewPoller_Defaults(t *testing.T) {
	t.Parallel()

	runner := newTestRunner(t, newMockQueue(), nil)
	poller := NewPoller(runner, nil, PollerConfig{})
	if poller.config.Interval != time.Minute || poller.config.PassTimeout != 5*time.Minute {
		t.Errorf("config = %+v", poller.config)
	}
}
