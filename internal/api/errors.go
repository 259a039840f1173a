// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/jobqueue/internal/jobs"
	"github.com/tomtom215/jobqueue/internal/models"
)

// writeStoreError maps job store and registry errors onto the envelope.
// Anything unrecognised is logged and reported as a database error.
func writeStoreError(rw *ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrJobNotFound):
		rw.NotFound("job not found")
	case errors.Is(err, models.ErrInvalidTransition):
		rw.Conflict("job status does not allow this action")
	case errors.Is(err, models.ErrInvalidJob):
		rw.BadRequest(err.Error())
	case errors.Is(err, jobs.ErrHandlerNotFound):
		rw.Error(http.StatusBadRequest, ErrCodeUnknownTaskType, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "job store timed out")
	default:
		rw.DatabaseError(err)
	}
}
