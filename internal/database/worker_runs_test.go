// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package database

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/jobqueue/internal/models"
)

func TestWorkerRunLifecycle(t *testing.T) {
	db, clock := setupClockedTestDB(t)
	ctx := context.Background()

	run, err := db.CreateWorkerRun(ctx, models.WorkerRunSourceCronSecret)
	if err != nil {
		t.Fatalf("CreateWorkerRun: %v", err)
	}
	if run.Status != models.WorkerRunStatusRunning || run.ID == "" {
		t.Errorf("new run = %+v", run)
	}

	clock.Advance(3 * time.Second)
	run.Status = models.WorkerRunStatusCompleted
	run.Processed, run.Succeeded, run.Failed = 3, 2, 1
	if err := db.FinishWorkerRun(ctx, run); err != nil {
		t.Fatalf("FinishWorkerRun: %v", err)
	}

	runs, err := db.ListWorkerRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListWorkerRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("ListWorkerRuns returned %d runs", len(runs))
	}

	got := runs[0]
	if got.Source != models.WorkerRunSourceCronSecret || got.Status != models.WorkerRunStatusCompleted {
		t.Errorf("run = %s/%s", got.Source, got.Status)
	}
	if got.Processed != 3 || got.Succeeded != 2 || got.Failed != 1 {
		t.Errorf("counts = %d/%d/%d", got.Processed, got.Succeeded, got.Failed)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(clock.Now()) {
		t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, clock.Now())
	}
}

func TestFinishWorkerRun_Unknown(t *testing.T) {
	db := setupTestDB(t)

	err := db.FinishWorkerRun(context.Background(), &models.WorkerRun{ID: "missing", Status: models.WorkerRunStatusError})
	if err == nil {
		t.Error("FinishWorkerRun on unknown run should fail")
	}
}

func TestDeleteWorkerRunsBefore(t *testing.T) {
	db, clock := setupClockedTestDB(t)
	ctx := context.Background()

	if _, err := db.CreateWorkerRun(ctx, models.WorkerRunSourceAdminManual); err != nil {
		t.Fatalf("CreateWorkerRun: %v", err)
	}
	clock.Advance(31 * 24 * time.Hour)
	if _, err := db.CreateWorkerRun(ctx, models.WorkerRunSourceScheduler); err != nil {
		t.Fatalf("CreateWorkerRun: %v", err)
	}

	n, err := db.DeleteWorkerRunsBefore(ctx, clock.Now().Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteWorkerRunsBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d runs, want 1", n)
	}

	runs, err := db.ListWorkerRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListWorkerRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Source != models.WorkerRunSourceScheduler {
		t.Errorf("remaining runs = %+v", runs)
	}
}
