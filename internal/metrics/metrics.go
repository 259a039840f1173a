// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job outcome labels.
const (
	OutcomeSucceeded   = "succeeded"
	OutcomeRescheduled = "rescheduled"
	OutcomeRetried     = "retried"
	OutcomeFailed      = "failed"
	OutcomeLost        = "lost"
	OutcomePreempted   = "preempted"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobqueue_auth_failures_total",
			Help: "Rejected requests by authentication surface",
		},
		[]string{"surface"}, // "cron", "login", "admin"
	)

	// Runner Metrics
	RunnerPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobqueue_runner_passes_total",
			Help: "Total number of runner passes",
		},
		[]string{"source", "status"}, // status: "ok", "paused", "error"
	)

	RunnerPassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jobqueue_runner_pass_duration_seconds",
			Help:    "Duration of runner passes in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	JobsClaimed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jobqueue_claim_batch_size",
			Help:    "Number of jobs claimed per runner pass",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 10},
		},
	)

	// Job Metrics
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobqueue_jobs_processed_total",
			Help: "Total number of job executions by outcome",
		},
		[]string{"task_type", "outcome"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobqueue_job_duration_seconds",
			Help:    "Handler execution time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task_type"},
	)

	JobsRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobqueue_jobs_recovered_total",
			Help: "Running jobs returned to the queue after exceeding the stale threshold",
		},
	)

	JobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobqueue_jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
		[]string{"task_type"},
	)

	JobsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobqueue_jobs",
			Help: "Current number of jobs per status",
		},
		[]string{"status"},
	)

	ProcessingEnabled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobqueue_processing_enabled",
			Help: "1 when the queue processing switch is on, 0 when paused",
		},
	)

	AuditEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobqueue_audit_events_dropped_total",
			Help: "Audit events dropped because the write buffer was full",
		},
	)

	EventStreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobqueue_event_stream_clients",
			Help: "Connected websocket clients on the live event stream",
		},
	)

	EventBusPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobqueue_event_bus_publishes_total",
			Help: "Event bus publish attempts by result",
		},
		[]string{"result"}, // "published", "failed", "rejected"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRunnerPass records one runner pass
func RecordRunnerPass(source, status string, claimed int, duration time.Duration) {
	RunnerPasses.WithLabelValues(source, status).Inc()
	RunnerPassDuration.Observe(duration.Seconds())
	if status != "paused" {
		JobsClaimed.Observe(float64(claimed))
	}
}

// RecordJobOutcome records the result of one handler execution
func RecordJobOutcome(taskType, outcome string, duration time.Duration) {
	JobsProcessed.WithLabelValues(taskType, outcome).Inc()
	JobDuration.WithLabelValues(taskType).Observe(duration.Seconds())
}

// SetProcessingEnabled mirrors the queue processing switch
func SetProcessingEnabled(enabled bool) {
	if enabled {
		ProcessingEnabled.Set(1)
	} else {
		ProcessingEnabled.Set(0)
	}
}

// UpdateJobStatusGauges replaces the per-status job gauges
func UpdateJobStatusGauges(counts map[string]int) {
	for status, n := range counts {
		JobsByStatus.WithLabelValues(status).Set(float64(n))
	}
}
