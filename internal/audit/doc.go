// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

// Package audit records who changed the job queue and how.
//
// Every state-changing admin call (toggle, retry, cancel, delete, enqueue,
// manual run), every login attempt, and every rejected /jobs/run request
// produces an Event. Events are diagnostic: the job store stays the source
// of truth and a full buffer drops events rather than slowing requests.
//
// # Architecture
//
//	Logger.Log() -> Event Buffer (chan) -> Async Writer -> Store
//	                     |                      |
//	                 Non-blocking           Background goroutine
//
// The writer also mirrors each event to the structured log when
// AUDIT_LOG_EVENTS is set, so deployments that ship logs keep a durable
// trail. MemoryStore keeps the most recent events for
// GET /api/v1/admin/job-queue/audit.
//
// # Retention
//
// Logger implements suture.Service. Under the supervisor it deletes events
// older than AUDIT_RETENTION once per CleanupInterval.
//
// # Usage
//
//	store := audit.NewMemoryStore(cfg.Audit.MaxEvents)
//	logger := audit.NewLogger(store, audit.ConfigFrom(cfg.Audit))
//	defer logger.Close()
//
//	logger.Log(&audit.Event{
//	    Type:    audit.EventTypeJobCancelled,
//	    Outcome: audit.OutcomeSuccess,
//	    Actor:   audit.Actor{Name: "admin", Role: "admin"},
//	    JobID:   job.ID,
//	})
package audit
