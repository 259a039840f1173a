// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

/*
Package eventbus publishes job lifecycle events to NATS.

Downstream services subscribe instead of polling the admin API. Publishing
goes through a Watermill NATS publisher (core NATS, no JetStream) guarded
by a circuit breaker, so an unreachable server costs one failed publish per
breaker window rather than one per job.

Subjects, under the configured prefix (default "jobqueue"):

	<prefix>.job.<status>     one recorded attempt: succeeded, pending, failed, cancelled
	<prefix>.pass.<status>    a finished runner pass: ok, paused
	<prefix>.queue.paused     processing switched off
	<prefix>.queue.resumed    processing switched on

Every message body is an Event envelope in JSON. The envelope ID is also
the Watermill message UUID.

Publisher implements the runner's Observer interface and is wired with
jobs.WithObserver. Publishing is fire-and-forget: errors are logged and
counted, never returned to the runner.
*/
package eventbus
