// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/jobqueue/internal/config"
	"github.com/tomtom215/jobqueue/internal/logging"
	"github.com/tomtom215/jobqueue/internal/metrics"
	"github.com/tomtom215/jobqueue/internal/models"
)

// DefaultBatchSize is the claim limit used when a caller does not pass one.
const DefaultBatchSize = 5

// DefaultPausedMessage is reported when processing is off without a reason.
const DefaultPausedMessage = "job processing is paused"

// persistTimeout bounds the status write that follows a handler, which runs
// detached from the trigger's context so a dropped request still records
// the outcome.
const persistTimeout = 10 * time.Second

// ErrNoQueue is returned by NewRunner without a queue.
var ErrNoQueue = errors.New("runner: queue is nil")

// RunnerConfig bounds runner passes.
type RunnerConfig struct {
	// DefaultBatchSize is used when RunOptions.Limit <= 0. Default: 5
	DefaultBatchSize int
	// MaxBatchSize caps RunOptions.Limit. Never above config.HardMaxBatchSize.
	MaxBatchSize int
}

// RunnerConfigFrom derives runner bounds from the jobs config section.
func RunnerConfigFrom(cfg config.JobsConfig) RunnerConfig {
	return RunnerConfig{
		DefaultBatchSize: cfg.DefaultBatchSize,
		MaxBatchSize:     cfg.MaxBatchSize,
	}
}

func (c RunnerConfig) normalize() RunnerConfig {
	if c.MaxBatchSize <= 0 || c.MaxBatchSize > config.HardMaxBatchSize {
		c.MaxBatchSize = config.HardMaxBatchSize
	}
	if c.DefaultBatchSize <= 0 {
		c.DefaultBatchSize = DefaultBatchSize
	}
	if c.DefaultBatchSize > c.MaxBatchSize {
		c.DefaultBatchSize = c.MaxBatchSize
	}
	return c
}

// RunOptions are the per-pass parameters supplied by a trigger.
type RunOptions struct {
	// Limit is the number of jobs to claim; <= 0 means the default.
	Limit int
	// Force runs the pass even while processing is paused.
	Force bool
	// Source is recorded on the worker run and in metrics.
	Source models.WorkerRunSource
}

// Observer is told about job outcomes and finished passes as they happen.
// Calls run on the pass goroutine and must not block.
type Observer interface {
	JobFinished(source models.WorkerRunSource, result models.JobRunResult)
	PassFinished(source models.WorkerRunSource, summary *models.RunSummary)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkerRuns enables best-effort worker run records.
func WithWorkerRuns(store WorkerRunStore) RunnerOption {
	return func(r *Runner) { r.runs = store }
}

// WithMaintenance exposes cleanup operations to handlers through Deps.
func WithMaintenance(m Maintenance) RunnerOption {
	return func(r *Runner) { r.maintenance = m }
}

// WithObserver publishes job outcomes and pass totals to o. Repeated
// options add observers, notified in order.
func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// WithLogger sets the runner logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func WithLogger(logger zerolog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithRunnerClock overrides the clock handed to handlers.
func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// Runner performs bounded passes over the queue.
// Passes may run concurrently; the store's claim keeps them disjoint.
type Runner struct {
	queue       Queue
	registry    *Registry
	runs        WorkerRunStore
	maintenance Maintenance
	observers   []Observer
	cfg         RunnerConfig
	logger      zerolog.Logger
	now         func() time.Time
}

// NewRunner creates a runner over queue dispatching through registry.
func NewRunner(queue Queue, registry *Registry, cfg RunnerConfig, opts ...RunnerOption) (*Runner, error) {
	if queue == nil {
		return nil, ErrNoQueue
	}
	if registry == nil {
		registry = &Registry{handlers: map[TaskType]Handler{}}
	}

	r := &Runner{
		queue:    queue,
		registry: registry,
		cfg:      cfg.normalize(),
		logger:   logging.WithComponent("job-runner"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Registry returns the runner's handler registry.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// BatchSize resolves a requested limit against the runner bounds.
func (r *Runner) BatchSize(requested int) int {
	if requested <= 0 {
		return r.cfg.DefaultBatchSize
	}
	return min(requested, r.cfg.MaxBatchSize)
}

// Run performs one pass. The returned error covers only failures to read
// settings or claim; handler failures are reported in the summary.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*models.RunSummary, error) {
	start := time.Now()
	source := opts.Source
	if source == "" {
		source = models.WorkerRunSourceUnknown
	}
	logger := r.logger.With().Str("source", string(source)).Logger()

	run := r.startWorkerRun(ctx, source, logger)

	settings, err := r.queue.GetSettings(ctx)
	if err != nil {
		err = fmt.Errorf("read queue settings: %w", err)
		r.finishWorkerRun(ctx, run, models.WorkerRunStatusError, nil, err, logger)
		metrics.RecordRunnerPass(string(source), "error", 0, time.Since(start))
		return nil, err
	}
	metrics.SetProcessingEnabled(settings.ProcessingEnabled)

	if !settings.ProcessingEnabled && !opts.Force {
		summary := &models.RunSummary{
			Status:  models.RunStatusPaused,
			Message: DefaultPausedMessage,
		}
		if settings.PausedReason != nil && *settings.PausedReason != "" {
			summary.Message = *settings.PausedReason
		}
		logger.Debug().Str("reason", summary.Message).Msg("Job processing paused, skipping pass")
		r.finishWorkerRun(ctx, run, models.WorkerRunStatusPaused, summary, nil, logger)
		metrics.RecordRunnerPass(string(source), string(models.RunStatusPaused), 0, time.Since(start))
		r.passFinished(source, summary)
		return summary, nil
	}

	limit := r.BatchSize(opts.Limit)
	claimed, err := r.queue.Claim(ctx, limit)
	if err != nil {
		err = fmt.Errorf("claim jobs: %w", err)
		r.finishWorkerRun(ctx, run, models.WorkerRunStatusError, nil, err, logger)
		metrics.RecordRunnerPass(string(source), "error", 0, time.Since(start))
		return nil, err
	}

	summary := &models.RunSummary{
		Status:  models.RunStatusOK,
		Results: make([]models.JobRunResult, 0, len(claimed)),
	}
	for _, job := range claimed {
		result, outcome := r.execute(ctx, job)
		summary.Processed++
		switch outcome {
		case attemptSucceeded:
			summary.Succeeded++
		case attemptFailed:
			summary.Failed++
		}
		summary.Results = append(summary.Results, result)
		for _, o := range r.observers {
			o.JobFinished(source, result)
		}
	}

	r.finishWorkerRun(ctx, run, models.WorkerRunStatusCompleted, summary, nil, logger)
	metrics.RecordRunnerPass(string(source), string(models.RunStatusOK), len(claimed), time.Since(start))

	if summary.Processed > 0 {
		logger.Info().
			Int("limit", limit).
			Int("processed", summary.Processed).
			Int("succeeded", summary.Succeeded).
			Int("failed", summary.Failed).
			Dur("duration", time.Since(start)).
			Msg("Runner pass completed")
	}
	r.passFinished(source, summary)
	return summary, nil
}

func (r *Runner) passFinished(source models.WorkerRunSource, summary *models.RunSummary) {
	for _, o := range r.observers {
		o.PassFinished(source, summary)
	}
}

// attemptOutcome is how one claimed job counts in the pass summary.
type attemptOutcome int

const (
	attemptSucceeded attemptOutcome = iota
	attemptFailed
	// attemptPreempted: an admin cancelled or deleted the row while the
	// handler ran, so its result was discarded. Counted as processed only.
	attemptPreempted
)

// execute runs one claimed job to a recorded outcome.
func (r *Runner) execute(ctx context.Context, job *models.Job) (models.JobRunResult, attemptOutcome) {
	start := time.Now()
	logger := r.logger.With().
		Str("job_id", job.ID).
		Str("task_type", job.TaskType).
		Int("attempt", job.Attempts+1).
		Logger()
	jobCtx := logging.ContextWithLogger(logging.ContextWithJobID(ctx, job.ID), logger)

	var (
		updated *models.Job
		err     error
		success bool
	)

	handler, found := r.registry.Lookup(job.TaskType)
	if !found {
		msg := fmt.Sprintf("%v: %s", ErrHandlerNotFound, job.TaskType)
		logger.Warn().Msg("No handler registered, failing job")
		updated, err = r.markFailed(ctx, job.ID, msg, nil)
	} else {
		res, herr := r.invoke(jobCtx, handler, job, logger)
		switch {
		case herr != nil:
			logger.Warn().Err(herr).Msg("Job handler failed")
			updated, err = r.markFailed(ctx, job.ID, herr.Error(), nil)
		case res != nil && res.Failed:
			msg := res.Error
			if msg == "" {
				msg = "handler reported failure"
			}
			logger.Warn().Str("error", msg).Bool("retry_requested", res.RetryIn != nil).Msg("Job attempt failed")
			updated, err = r.markFailed(ctx, job.ID, msg, res.RetryIn)
		default:
			var output json.RawMessage
			output, err = encodeOutput(res)
			if err != nil {
				updated, err = r.markFailed(ctx, job.ID, err.Error(), nil)
				break
			}
			updated, err = r.markSucceeded(ctx, job.ID, output)
			success = err == nil
		}
	}

	if err != nil {
		if result, ok := r.preempted(ctx, job, err, logger); ok {
			metrics.RecordJobOutcome(job.TaskType, metrics.OutcomePreempted, time.Since(start))
			return result, attemptPreempted
		}
		// The row is still running; stale recovery returns it to the queue.
		logger.Error().Err(err).Msg("Failed to record job outcome")
		metrics.RecordJobOutcome(job.TaskType, metrics.OutcomeLost, time.Since(start))
		msg := err.Error()
		return models.JobRunResult{
			ID:        job.ID,
			TaskType:  job.TaskType,
			Status:    job.Status,
			Attempts:  job.Attempts,
			LastError: &msg,
		}, attemptFailed
	}

	metrics.RecordJobOutcome(job.TaskType, outcomeOf(updated, success), time.Since(start))
	outcome := attemptFailed
	if success {
		outcome = attemptSucceeded
	}
	return resultOf(updated), outcome
}

// preempted reports the row's current state when recording failed because
// the job left running (admin cancel) or no longer exists (admin delete).
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (r *Runner) preempted(ctx context.Context, job *models.Job, recordErr error, logger zerolog.Logger) (models.JobRunResult, bool) {
	switch {
	case errors.Is(recordErr, models.ErrJobNotFound):
		logger.Info().Msg("Job deleted while running, outcome discarded")
		msg := models.ErrJobNotFound.Error()
		return models.JobRunResult{ID: job.ID, TaskType: job.TaskType, Status: models.JobStatusCancelled, Attempts: job.Attempts, LastError: &msg}, true
	case !errors.Is(recordErr, models.ErrInvalidTransition):
		return models.JobRunResult{}, false
	}

	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	current, err := r.queue.GetJob(lookupCtx, job.ID)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to re-read job after a rejected transition")
		return models.JobRunResult{}, false
	}
	if current.Status == models.JobStatusRunning {
		return models.JobRunResult{}, false
	}
	logger.Info().Str("status", string(current.Status)).Msg("Job changed while running, outcome discarded")
	return resultOf(current), true
}

func resultOf(job *models.Job) models.JobRunResult {
	return models.JobRunResult{
		ID:        job.ID,
		TaskType:  job.TaskType,
		Status:    job.Status,
		Attempts:  job.Attempts,
		LastError: job.LastError,
	}
}

// invoke calls the handler, converting a panic into an error.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (r *Runner) invoke(ctx context.Context, h Handler, job *models.Job, logger zerolog.Logger) (res *Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error().
				Interface("panic", p).
				Bytes("stack", debug.Stack()).
				Msg("Job handler panicked")
			res = nil
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	return h(ctx, job, Deps{
		Maintenance: r.maintenance,
		Logger:      logger,
		Now:         r.now,
	})
}

func (r *Runner) markFailed(ctx context.Context, jobID, msg string, retryIn *time.Duration) (*models.Job, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	return r.queue.MarkFailed(ctx, jobID, msg, retryIn)
}

func (r *Runner) markSucceeded(ctx context.Context, jobID string, output json.RawMessage) (*models.Job, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	return r.queue.MarkSucceeded(ctx, jobID, output)
}

func encodeOutput(res *Result) (json.RawMessage, error) {
	if res == nil || res.Output == nil {
		return nil, nil
	}
	if raw, ok := res.Output.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(res.Output)
	if err != nil {
		return nil, fmt.Errorf("encode handler output: %w", err)
	}
	return b, nil
}

func outcomeOf(job *models.Job, success bool) string {
	switch {
	case success && job.Status == models.JobStatusPending:
		return metrics.OutcomeRescheduled
	case success:
		return metrics.OutcomeSucceeded
	case job.Status == models.JobStatusPending:
		return metrics.OutcomeRetried
	default:
		return metrics.OutcomeFailed
	}
}

// startWorkerRun opens a worker run record. Failures are logged and the pass
// continues without a record.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (r *Runner) startWorkerRun(ctx context.Context, source models.WorkerRunSource, logger zerolog.Logger) *models.WorkerRun {
	if r.runs == nil {
		return nil
	}
	run, err := r.runs.CreateWorkerRun(ctx, source)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to create worker run record")
		return nil
	}
	return run
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (r *Runner) finishWorkerRun(ctx context.Context, run *models.WorkerRun, status models.WorkerRunStatus, summary *models.RunSummary, runErr error, logger zerolog.Logger) {
	if r.runs == nil || run == nil {
		return
	}

	now := r.now()
	run.Status = status
	run.CompletedAt = &now
	if summary != nil {
		run.Processed = summary.Processed
		run.Succeeded = summary.Succeeded
		run.Failed = summary.Failed
	}
	if runErr != nil {
		msg := runErr.Error()
		run.ErrorMessage = &msg
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := r.runs.FinishWorkerRun(ctx, run); err != nil {
		logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to finalize worker run record")
	}
}
