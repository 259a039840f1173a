// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

/*
Package database implements the embedded job store on DuckDB.

It holds three tables:

  - jobs: one row per unit of deferred work
  - job_queue_settings: a single row with the global processing switch
  - job_worker_runs: diagnostic records of runner invocations

State transitions are computed by the models package (ApplySuccess,
ApplyFailure, ApplyRetry, ApplyCancel) and persisted with a guarded UPDATE
that only matches the status the transition started from. A concurrent
writer therefore causes either a DuckDB transaction conflict, which is
retried with exponential backoff, or a zero-row update, which surfaces as
models.ErrInvalidTransition.

Claiming is a single UPDATE ... RETURNING over the oldest eligible pending
rows, preceded in the same transaction by cancelling pending rows whose
expires_at has passed. DuckDB's optimistic concurrency control aborts one
of two transactions that touch the same row, so a job is never returned to
two callers.

All timestamps are stored as UTC TIMESTAMP values.
*/
package database
