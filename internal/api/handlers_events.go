// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package api

import (
	"net/http"

	"github.com/tomtom215/jobqueue/internal/logging"
	"github.com/tomtom215/jobqueue/internal/websocket"
)

// StreamEvents upgrades to a websocket that receives job outcomes, pass
// totals and queue toggles as they happen.
//
// Method: GET
// Path: /api/v1/admin/job-queue/events
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		NewResponseWriter(w, r).Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "event stream is disabled")
		return
	}

	if err := websocket.ServeWS(h.events, h.upgrader, w, r); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Event stream upgrade failed")
	}
}
