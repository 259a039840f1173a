// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package jobs

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/jobqueue/internal/models"
)

// TaskType names a kind of job. Every enqueued job carries one.
type TaskType string

// Built-in task types.
const (
	TaskNoopSuccess       TaskType = "noop_success"
	TaskAlwaysThrows      TaskType = "always_throws"
	TaskWebhookDeliver    TaskType = "webhook_deliver"
	TaskPurgeWorkerRuns   TaskType = "purge_worker_runs"
	TaskPurgeFinishedJobs TaskType = "purge_finished_jobs"
)

// BuiltinTaskTypes lists the task types shipped with the server.
var BuiltinTaskTypes = []TaskType{
	TaskNoopSuccess,
	TaskAlwaysThrows,
	TaskWebhookDeliver,
	TaskPurgeWorkerRuns,
	TaskPurgeFinishedJobs,
}

// Registry errors.
var (
	ErrHandlerNotFound = errors.New("no handler registered for task type")
	ErrNilHandler      = errors.New("handler is nil")
)

// Result is the structured outcome of a handler.
// A nil *Result with a nil error means success with no output.
type Result struct {
	// Failed marks the attempt as failed.
	Failed bool
	// Error is recorded as last_error when Failed is set.
	Error string
	// RetryIn requests another attempt after the delay, if attempts remain.
	RetryIn *time.Duration
	// Output is marshaled to JSON and stored on success.
	Output any
}

// Deps are the services handed to every handler invocation.
type Deps struct {
	Maintenance Maintenance
	Logger      zerolog.Logger
	Now         func() time.Time
}

// Handler executes one job. A returned error is a permanent failure.
type Handler func(ctx context.Context, job *models.Job, deps Deps) (*Result, error)

// Registry maps task types to handlers. It is immutable after construction.
type Registry struct {
	handlers map[TaskType]Handler
}

// NewRegistry copies handlers into a registry, rejecting nil entries and
// malformed task type names.
func NewRegistry(handlers map[TaskType]Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[TaskType]Handler, len(handlers))}
	for taskType, h := range handlers {
		if strings.TrimSpace(string(taskType)) == "" {
			return nil, fmt.Errorf("registry: empty task type")
		}
		if h == nil {
			return nil, fmt.Errorf("registry: %s: %w", taskType, ErrNilHandler)
		}
		r.handlers[taskType] = h
	}
	return r, nil
}

// Lookup returns the handler for taskType.
func (r *Registry) Lookup(taskType string) (Handler, bool) {
	h, ok := r.handlers[TaskType(taskType)]
	return h, ok
}

// Has reports whether taskType has a handler.
func (r *Registry) Has(taskType string) bool {
	_, ok := r.handlers[TaskType(taskType)]
	return ok
}

// TaskTypes returns the registered task types in sorted order.
func (r *Registry) TaskTypes() []TaskType {
	out := make([]TaskType, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Require returns an error naming every listed task type without a handler.
// The server calls it at startup so a misconfigured deployment fails fast.
func (r *Registry) Require(taskTypes ...string) error {
	var missing []string
	for _, t := range taskTypes {
		if !r.Has(t) {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrHandlerNotFound, strings.Join(missing, ", "))
	}
	return nil
}
