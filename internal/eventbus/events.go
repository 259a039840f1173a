// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package eventbus

import (
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/jobqueue/internal/models"
)

// Event types carried in the envelope.
const (
	EventTypeJobFinished  = "job.finished"
	EventTypePassFinished = "pass.finished"
	EventTypeQueueToggled = "queue.toggled"
)

// Event is the JSON envelope of every published message.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Source     models.WorkerRunSource `json:"source,omitempty"`
	Data       any                    `json:"data"`
}

func newEvent(eventType string, source models.WorkerRunSource, data any, now time.Time) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: now,
		Source:     source,
		Data:       data,
	}
}

// JobSubject is the subject for a job that ended an attempt in status.
func JobSubject(prefix string, status models.JobStatus) string {
	return prefix + ".job." + string(status)
}

// PassSubject is the subject for a pass that finished with status.
func PassSubject(prefix string, status models.RunStatus) string {
	return prefix + ".pass." + string(status)
}

// QueueSubject is the subject for a processing switch change.
func QueueSubject(prefix string, enabled bool) string {
	if enabled {
		return prefix + ".queue.resumed"
	}
	return prefix + ".queue.paused"
}
