// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

/*
Package api exposes the job queue over HTTP.

Routes:

	GET|POST /jobs/run                                  cron trigger (secret or scheduler user agent)
	POST     /api/v1/auth/login                         admin login, issues a JWT
	POST     /api/v1/auth/logout                        records the logout (tokens are stateless)
	GET      /api/v1/admin/job-queue                    settings and per-status counts
	POST     /api/v1/admin/job-queue/run                manual runner pass
	POST     /api/v1/admin/job-queue/toggle             pause or resume processing
	POST     /api/v1/admin/job-queue/actions            retry, cancel or delete one job (form)
	GET      /api/v1/admin/job-queue/jobs               list jobs
	POST     /api/v1/admin/job-queue/jobs               enqueue a job
	GET      /api/v1/admin/job-queue/jobs/{id}          job detail
	GET      /api/v1/admin/job-queue/runs               recent worker runs
	GET      /api/v1/admin/job-queue/audit              audit trail, most recent first
	GET      /api/v1/admin/job-queue/events             websocket live event stream
	GET      /health                                    store ping
	GET      /metrics                                   Prometheus exposition

Both run endpoints answer with the bare run summary:

	{"status":"ok","processed":1,"succeeded":1,"failed":0,"results":[...]}

Every other endpoint uses the APIResponse envelope:

	{"success":true,"data":{...},"meta":{"request_id":"...","timestamp":"..."}}

Admin routes pass through auth.Middleware (JWT or AUTH_MODE=none) and then
authz.Middleware, which checks the caller's role against the Casbin policy.
*/
package api
