// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

/*
Package handlers provides the task handlers shipped with the server.

	noop_success         succeeds immediately; used to verify a deployment
	always_throws        returns an error; used to verify failure handling
	webhook_deliver      sends the payload's body to an HTTP endpoint
	purge_worker_runs    deletes worker run records past retention
	purge_finished_jobs  deletes finished one-shot jobs past an age

webhook_deliver payload:

	{
	  "url": "https://hooks.example.com/deploy",
	  "method": "POST",
	  "headers": {"X-Token": "..."},
	  "body": {"any": "json"}
	}

Transient webhook failures (network errors, 408, 429, 5xx, open circuit)
ask the runner for a retry with exponential backoff. Other 4xx responses and
invalid payloads fail the job permanently.
*/
package handlers
