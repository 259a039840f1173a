// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

/*
Package jobs executes queued work.

It holds the handler Registry, the Runner that performs one bounded pass over
the queue, and the Poller that triggers passes on an interval. Storage is
abstracted behind the Queue, WorkerRunStore and Store interfaces, satisfied by
both *database.DB (DuckDB) and *postgres.Store.

A runner pass:

 1. Reads the processing switch. A paused queue returns a "paused" summary
    without touching any job, unless the caller forces the pass.
 2. Claims up to limit due jobs (default 5, never more than 10).
 3. Runs each job's handler in claim order, one at a time. A missing handler,
    a returned error or a panic fails the job permanently; a handler asks for
    a retry by returning Result{Failed: true, RetryIn: &d}.
 4. Returns a models.RunSummary.

Handlers are registered in a typed map and validated once at startup:

	registry, err := jobs.NewRegistry(handlers.Builtins(cfg))
	if err != nil { ... }
	if err := registry.Require(cfg.Jobs.RequiredTaskTypes...); err != nil { ... }
*/
package jobs
