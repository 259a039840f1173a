// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/jobqueue/internal/models"
)

// maxBodyBytes bounds every request body the API reads.
const maxBodyBytes = 1 << 20

// List bounds shared by the admin listing endpoints.
const (
	defaultJobListLimit = 50
	maxJobListLimit     = 500
	defaultRunListLimit = 20
	maxRunListLimit     = 200
	defaultAuditLimit   = 100
	maxAuditLimit       = 1000
)

// RunRequest is the body or query of both run triggers.
// A limit of zero or below means the runner's default batch size.
type RunRequest struct {
	Limit int  `json:"limit"`
	Force bool `json:"force"`
}

// ToggleRequest pauses or resumes processing.
type ToggleRequest struct {
	Enabled *bool  `json:"enabled" validate:"required"`
	Reason  string `json:"reason" validate:"max=500"`
}

// Job actions accepted by the actions endpoint.
const (
	ActionRetry  = "retry"
	ActionCancel = "cancel"
	ActionDelete = "delete"
)

// JobActionRequest is the form posted to the actions endpoint.
type JobActionRequest struct {
	JobID  string `form:"jobId" validate:"required,uuid"`
	Action string `form:"action" validate:"required,oneof=retry cancel delete"`
}

// EnqueueRequest creates a job through the admin API.
type EnqueueRequest struct {
	TaskType                  string          `json:"task_type" validate:"required,task_type"`
	Payload                   json.RawMessage `json:"payload"`
	RunAt                     *time.Time      `json:"run_at"`
	IsRecurring               bool            `json:"is_recurring"`
	RecurrenceIntervalMinutes *int            `json:"recurrence_interval_minutes" validate:"omitempty,gt=0"`
	ExpiresAt                 *time.Time      `json:"expires_at"`
	MaxAttempts               int             `json:"max_attempts" validate:"gte=0,lte=100"`
}

// Options converts the request into store enqueue options.
func (req *EnqueueRequest) Options() models.EnqueueOptions {
	return models.EnqueueOptions{
		RunAt:                     req.RunAt,
		IsRecurring:               req.IsRecurring,
		RecurrenceIntervalMinutes: req.RecurrenceIntervalMinutes,
		ExpiresAt:                 req.ExpiresAt,
		MaxAttempts:               req.MaxAttempts,
	}
}

// ListJobsRequest is the query of the job listing endpoint.
type ListJobsRequest struct {
	Status   string `form:"status" validate:"omitempty,oneof=pending running succeeded failed cancelled"`
	TaskType string `form:"task_type" validate:"omitempty,task_type"`
	Limit    int    `form:"limit" validate:"gte=1,lte=500"`
	Offset   int    `form:"offset" validate:"gte=0,lte=1000000"`
}

// ListRunsRequest is the query of the worker run listing endpoint.
type ListRunsRequest struct {
	Limit int `form:"limit" validate:"gte=1,lte=200"`
}

// ListAuditRequest is the query of the audit trail endpoint.
type ListAuditRequest struct {
	Type  string `form:"type" validate:"omitempty,max=64"`
	JobID string `form:"job_id" validate:"omitempty,uuid"`
	Actor string `form:"actor" validate:"omitempty,max=255"`
	Limit int    `form:"limit" validate:"gte=1,lte=1000"`
}

// LoginRequest is the admin login body.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=1024"`
}

// errEmptyBody is returned by decodeJSON when the body has no content.
var errEmptyBody = errors.New("request body is empty")

// decodeJSON reads a single JSON document from the request body and
// rejects fields dst does not declare.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return readJSON(w, r, dst, true)
}

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}, strict bool) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// isFormRequest reports whether the body is url-encoded or multipart form data.
func isFormRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data"
}

// decodeRunRequest reads limit and force from the query string, then from a
// JSON or form body when one is present. Body values win over the query.
func decodeRunRequest(w http.ResponseWriter, r *http.Request) (*RunRequest, error) {
	req := &RunRequest{}
	if err := applyRunValues(req, r.URL.Query()); err != nil {
		return nil, err
	}

	if r.Method != http.MethodPost || r.Body == nil || r.ContentLength == 0 {
		return req, nil
	}

	if isFormRequest(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
		if err := applyRunValues(req, r.PostForm); err != nil {
			return nil, err
		}
		return req, nil
	}

	var body struct {
		Limit *int  `json:"limit"`
		Force *bool `json:"force"`
	}
	// Schedulers may post their own metadata, so unknown fields are ignored.
	if err := readJSON(w, r, &body, false); err != nil {
		if errors.Is(err, errEmptyBody) {
			return req, nil
		}
		return nil, err
	}
	if body.Limit != nil {
		req.Limit = *body.Limit
	}
	if body.Force != nil {
		req.Force = *body.Force
	}
	return req, nil
}

func applyRunValues(req *RunRequest, values url.Values) error {
	limit, err := intParam(values, "limit", req.Limit)
	if err != nil {
		return err
	}
	force, err := boolParam(values, "force", req.Force)
	if err != nil {
		return err
	}
	req.Limit = limit
	req.Force = force
	return nil
}

// intParam parses an integer parameter, returning defaultValue when absent.
func intParam(values url.Values, key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

// boolParam parses a boolean parameter, returning defaultValue when absent.
func boolParam(values url.Values, key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return b, nil
}
