// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

/*
Package main is the entry point for the jobqueue server.

The server owns a durable jobs table and exposes the HTTP triggers that drive
it: an external scheduler calls /jobs/run, administrators use the
/api/v1/admin/job-queue routes, and an optional in-process poller runs passes
on a ticker.

# Application Architecture

Long-running components run under a Suture v4 supervisor tree:

	RootSupervisor ("jobqueue")
	├── ProcessingSupervisor ("processing-layer")
	│   ├── Job Poller (optional, JOBS_POLL_ENABLED=true)
	│   ├── WebSocket Hub (live event stream)
	│   └── Audit Retention (optional, AUDIT_ENABLED=true)
	└── APISupervisor ("api-layer")
	    └── API Server (chi router)

Initialization order:

 1. Configuration: Koanf v2 with environment variables and config file
 2. Logging: zerolog, optionally mirrored to a lumberjack-rotated file
 3. Job store: DuckDB (default) or PostgreSQL, selected by DB_DRIVER
 4. Handler registry: built-in handlers, checked against JOBS_REQUIRED_TASK_TYPES
 5. Maintenance: the recurring purge_worker_runs job is enqueued if absent
 6. Event bus: NATS publisher through Watermill (optional, NATS_URL)
 7. Runner and poller, observed by the websocket hub and the event bus
 8. Audit trail
 9. Authentication (JWT) and authorization (Casbin)
 10. Supervisor tree and HTTP server

# Configuration

	DB_DRIVER=duckdb             # duckdb or postgres
	DUCKDB_PATH=/data/jobqueue.duckdb
	DATABASE_URL=postgres://...  # when DB_DRIVER=postgres

	CRON_SECRET=<16+ chars>      # bearer token accepted by /jobs/run
	CRON_USER_AGENTS=vercel-cron # trusted scheduler User-Agent prefixes

	AUTH_MODE=jwt                # jwt or none (none is refused in production)
	JWT_SECRET=<32+ chars>
	ADMIN_USERNAME=admin
	ADMIN_PASSWORD=<12+ chars>

	JOBS_DEFAULT_BATCH=5
	JOBS_MAX_BATCH=10
	JOBS_POLL_ENABLED=false

	AUDIT_ENABLED=true
	NATS_URL=nats://localhost:4222 # empty disables the event bus
	NATS_SUBJECT_PREFIX=jobqueue

# Signal Handling

SIGINT and SIGTERM cancel the root context. The API server drains
connections for SHUTDOWN_TIMEOUT, the poller finishes its in-flight pass,
and the store is closed last.

# Example

	export DUCKDB_PATH=./jobqueue.duckdb
	export AUTH_MODE=none
	export CRON_SECRET=$(openssl rand -hex 32)
	./jobqueue-server

	curl -X POST -H "Authorization: Bearer $CRON_SECRET" localhost:8380/jobs/run
*/
package main
