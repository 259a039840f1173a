// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/jobqueue/internal/config"
	"github.com/tomtom215/jobqueue/internal/database"
	"github.com/tomtom215/jobqueue/internal/jobs"
	"github.com/tomtom215/jobqueue/internal/models"
)

// testDBSemaphore serializes DuckDB creation across tests in this package.
var testDBSemaphore = make(chan struct{}, 1)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	db, err := database.New(&config.DatabaseConfig{
		Driver:    config.DriverDuckDB,
		Path:      ":memory:",
		MaxMemory: "512MB",
	})
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Jobs: config.JobsConfig{WorkerRunRetention: 24 * time.Hour},
		Webhook: config.WebhookConfig{
			Timeout:            2 * time.Second,
			BreakerMaxFailures: 3,
			BreakerOpenTimeout: time.Minute,
			BaseBackoff:        time.Second,
			MaxBackoff:         time.Minute,
		},
	}
}

func newBuiltinRunner(t *testing.T, db *database.DB) *jobs.Runner {
	t.Helper()

	registry, err := jobs.NewRegistry(Builtins(testConfig()))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	runner, err := jobs.NewRunner(db, registry, jobs.RunnerConfig{},
		jobs.WithLogger(zerolog.Nop()),
		jobs.WithMaintenance(db),
		jobs.WithWorkerRuns(db),
	)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return runner
}

func testDeps() jobs.Deps {
	return jobs.Deps{Logger: zerolog.Nop(), Now: func() time.Time { return time.Now().UTC() }}
}

func TestBuiltins_CoverEveryBuiltinTaskType(t *testing.T) {
	t.Parallel()

	registry, err := jobs.NewRegistry(Builtins(testConfig()))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	names := make([]string, 0, len(jobs.BuiltinTaskTypes))
	for _, tt := range jobs.BuiltinTaskTypes {
		names = append(names, string(tt))
	}
	if err := registry.Require(names...); err != nil {
		t.Errorf("Require(builtins) = %v", err)
	}
}

func TestNoopSuccess_EndToEnd(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	job, err := db.Enqueue(ctx, "noop_success", nil, models.EnqueueOptions{})
	if err != nil {
		t.Fatal(err)
	}

	summary, err := newBuiltinRunner(t, db).Run(ctx, jobs.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Status != models.RunStatusOK || summary.Processed != 1 || summary.Succeeded != 1 || summary.Failed != 0 {
		t.Errorf("summary = %+v, want {ok 1 1 0}", summary)
	}

	got, err := db.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.JobStatusSucceeded {
		t.Errorf("status = %s, want succeeded", got.Status)
	}
}

func TestAlwaysThrows_EndToEnd(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	job, err := db.Enqueue(ctx, "always_throws", nil, models.EnqueueOptions{})
	if err != nil {
		t.Fatal(err)
	}

	summary, err := newBuiltinRunner(t, db).Run(ctx, jobs.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 1 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want processed=1 failed=1", summary)
	}

	got, err := db.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.JobStatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.LastErrorString() != ErrAlwaysThrows.Error() {
		t.Errorf("last_error = %q", got.LastErrorString())
	}
}

func TestAlwaysThrows_ReturnsError(t *testing.T) {
	t.Parallel()

	res, err := AlwaysThrows(context.Background(), &models.Job{}, testDeps())
	if res != nil || !errors.Is(err, ErrAlwaysThrows) {
		t.Errorf("AlwaysThrows = %v, %v", res, err)
	}
}

func TestPurgeWorkerRuns(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	run, err := db.CreateWorkerRun(ctx, models.WorkerRunSourceCronSecret)
	if err != nil {
		t.Fatal(err)
	}

	deps := testDeps()
	deps.Maintenance = db
	deps.Now = func() time.Time { return run.StartedAt.Add(48 * time.Hour) }

	res, err := PurgeWorkerRuns(24*time.Hour)(ctx, &models.Job{Payload: json.RawMessage(`{}`)}, deps)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	out, ok := res.Output.(PurgeOutput)
	if !ok || out.Deleted != 1 {
		t.Errorf("output = %+v, want 1 deleted", res.Output)
	}

	runs, err := db.ListWorkerRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("%d worker runs remain", len(runs))
	}
}

func TestPurgeFinishedJobs_PayloadOverride(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	runner := newBuiltinRunner(t, db)
	if _, err := db.Enqueue(ctx, "noop_success", nil, models.EnqueueOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := runner.Run(ctx, jobs.RunOptions{}); err != nil {
		t.Fatal(err)
	}

	deps := testDeps()
	deps.Maintenance = db

	// Default retention keeps the job that just finished
	res, err := PurgeFinishedJobs(DefaultFinishedJobRetention)(ctx, &models.Job{}, deps)
	if err != nil {
		t.Fatal(err)
	}
	if out := res.Output.(PurgeOutput); out.Deleted != 0 {
		t.Errorf("default retention deleted %d", out.Deleted)
	}

	deps.Now = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	res, err = PurgeFinishedJobs(DefaultFinishedJobRetention)(ctx, &models.Job{Payload: json.RawMessage(`{"older_than":"1m"}`)}, deps)
	if err != nil {
		t.Fatal(err)
	}
	if out := res.Output.(PurgeOutput); out.Deleted != 1 {
		t.Errorf("override deleted %d, want 1", out.Deleted)
	}
}

func TestPurge_InvalidPayloadFailsPermanently(t *testing.T) {
	t.Parallel()

	deps := testDeps()
	deps.Maintenance = nopMaintenance{}

	for _, payload := range []string{`{"older_than":"soon"}`, `{"older_than":"-1h"}`, `not json`} {
		res, err := PurgeWorkerRuns(time.Hour)(context.Background(), &models.Job{Payload: json.RawMessage(payload)}, deps)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", payload, err)
		}
		if res == nil || !res.Failed || res.RetryIn != nil {
			t.Errorf("%s: result = %+v, want permanent failure", payload, res)
		}
	}
}

func TestPurge_RequiresMaintenance(t *testing.T) {
	t.Parallel()

	_, err := PurgeWorkerRuns(time.Hour)(context.Background(), &models.Job{}, testDeps())
	if !errors.Is(err, ErrNoMaintenance) {
		t.Errorf("err = %v, want ErrNoMaintenance", err)
	}
}

type nopMaintenance struct{}

func (nopMaintenance) DeleteWorkerRunsBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (nopMaintenance) DeleteFinishedJobsBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}
