// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

/*
Package metrics provides Prometheus metrics collection and export for observability.

# Overview

The package provides metrics for:
  - HTTP request latency and throughput
  - Runner passes by trigger source and outcome
  - Job outcomes and handler duration per task type
  - Queue depth per job status and the processing switch
  - Circuit breaker state for outbound webhook delivery

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8380/metrics

# Example Queries

Failure ratio per task type over 15 minutes:

	sum by (task_type) (rate(jobqueue_jobs_processed_total{outcome="failed"}[15m]))
	  / sum by (task_type) (rate(jobqueue_jobs_processed_total[15m]))

Paused passes (processing disabled while the scheduler keeps firing):

	increase(jobqueue_runner_passes_total{status="paused"}[1h])

All collectors register with the default registry through promauto.
*/
package metrics
