// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

/*
Package middleware provides HTTP middleware shared by every route group.

Key Components:

  - Request ID: UUID-based request tracking, propagated into the logging context
  - Prometheus Metrics: request count, latency and in-flight gauge

Both are plain func(http.Handler) http.Handler and mount directly with chi:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

Metrics are labelled with the matched chi route pattern rather than the raw
path, so /api/v1/admin/job-queue/jobs/{id} is one series no matter how many
job ids are requested.
*/
package middleware
