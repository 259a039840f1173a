// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package audit

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// EventType categorizes audit events.
type EventType string

const (
	// Authentication
	EventTypeLoginSuccess EventType = "auth.login_success"
	EventTypeLoginFailure EventType = "auth.login_failure"
	EventTypeLogout       EventType = "auth.logout"
	EventTypeCronRejected EventType = "trigger.rejected"

	// Queue control
	EventTypeQueuePaused  EventType = "queue.paused"
	EventTypeQueueResumed EventType = "queue.resumed"
	EventTypeManualRun    EventType = "queue.manual_run"

	// Job actions
	EventTypeJobEnqueued  EventType = "job.enqueued"
	EventTypeJobRetried   EventType = "job.retried"
	EventTypeJobCancelled EventType = "job.cancelled"
	EventTypeJobDeleted   EventType = "job.deleted"
)

// Severity indicates how much attention an event deserves.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Outcome indicates whether an action succeeded.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is one audited action.
type Event struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Type        EventType       `json:"type"`
	Severity    Severity        `json:"severity"`
	Outcome     Outcome         `json:"outcome"`
	Actor       Actor           `json:"actor"`
	Source      Source          `json:"source"`
	JobID       string          `json:"job_id,omitempty"`
	Description string          `json:"description,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	RequestID   string          `json:"request_id,omitempty"`
}

// Actor is who performed an action.
type Actor struct {
	// Name is the username, or the trigger source for scheduler calls.
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
	// AuthMethod is jwt, none, cron-secret, or cron-user-agent.
	AuthMethod string `json:"auth_method,omitempty"`
}

// Source is where a request came from.
type Source struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Store persists audit events.
type Store interface {
	Save(ctx context.Context, event *Event) error
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)
	Delete(ctx context.Context, olderThan time.Time) (int64, error)
}

// QueryFilter selects events, most recent first.
type QueryFilter struct {
	Types   []EventType
	Actor   string
	JobID   string
	Outcome Outcome
	Since   *time.Time
	Limit   int
}
