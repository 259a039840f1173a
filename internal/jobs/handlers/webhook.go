// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/jobqueue/internal/config"
	"github.com/tomtom215/jobqueue/internal/jobs"
	"github.com/tomtom215/jobqueue/internal/logging"
	"github.com/tomtom215/jobqueue/internal/metrics"
	"github.com/tomtom215/jobqueue/internal/models"
	"github.com/tomtom215/jobqueue/internal/validation"
)

const (
	webhookBreakerName = "webhook-deliver"
	webhookUserAgent   = "Jobqueue-Webhook/1.0"
	maxResponseBody    = 4096
)

// WebhookPayload is the job payload of webhook_deliver.
type WebhookPayload struct {
	URL     string            `json:"url" validate:"required,http_url"`
	Method  string            `json:"method" validate:"omitempty,oneof=POST PUT PATCH"`
	Headers map[string]string `json:"headers"`
	Body    json.RawMessage   `json:"body"`
}

// WebhookOutput is stored as the job output on delivery.
type WebhookOutput struct {
	StatusCode int    `json:"status_code"`
	ExternalID string `json:"external_id,omitempty"`
}

// statusError is a non-2xx response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("webhook returned %d: %s", e.code, e.body)
}

// transient reports whether a later attempt could succeed.
func (e *statusError) transient() bool {
	return e.code == http.StatusRequestTimeout ||
		e.code == http.StatusTooManyRequests ||
		e.code >= 500
}

// WebhookDeliverer sends webhook_deliver jobs through a rate limiter and a
// circuit breaker shared by every delivery.
type WebhookDeliverer struct {
	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[*WebhookOutput]
	cfg     config.WebhookConfig
}

// NewWebhookDeliverer creates the webhook handler state.
// Circuit breaker configuration:
// - Opens after BreakerMaxFailures consecutive transient failures
// - Stays open for BreakerOpenTimeout before probing with one request
// - Permanent 4xx responses do not count against the endpoint
func NewWebhookDeliverer(cfg config.WebhookConfig) *WebhookDeliverer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = 5
	}
	if cfg.BreakerOpenTimeout <= 0 {
		cfg.BreakerOpenTimeout = 30 * time.Second
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 30 * time.Second
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = cfg.BaseBackoff
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		if burst <= 0 {
			burst = 1
		}
	}

	metrics.CircuitBreakerState.WithLabelValues(webhookBreakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[*WebhookOutput](gobreaker.Settings{
		Name:        webhookBreakerName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
			if trip {
				logging.Warn().
					Uint32("consecutive_failures", counts.ConsecutiveFailures).
					Msg("[CIRCUIT BREAKER] Opening webhook circuit")
			}
			return trip
		},
		IsSuccessful: func(err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				return !se.transient()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &WebhookDeliverer{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		cb:      cb,
		cfg:     cfg,
	}
}

// Handle is the webhook_deliver handler.
func (d *WebhookDeliverer) Handle(ctx context.Context, job *models.Job, deps jobs.Deps) (*jobs.Result, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return permanent(fmt.Sprintf("invalid webhook payload: %v", err)), nil
	}
	if verr := validation.ValidateStruct(&payload); verr != nil {
		return permanent(fmt.Sprintf("invalid webhook payload: %v", verr)), nil
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return d.retry(job, fmt.Sprintf("rate limiter: %v", err)), nil
	}

	output, err := d.cb.Execute(func() (*WebhookOutput, error) {
		return d.send(ctx, &payload)
	})

	var se *statusError
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(webhookBreakerName, "success").Inc()
		deps.Logger.Info().Int("status_code", output.StatusCode).Str("url", payload.URL).Msg("Webhook delivered")
		return &jobs.Result{Output: output}, nil

	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(webhookBreakerName, "rejected").Inc()
		delay := d.cfg.BreakerOpenTimeout
		return &jobs.Result{Failed: true, Error: "webhook circuit open", RetryIn: &delay}, nil

	case errors.As(err, &se) && !se.transient():
		metrics.CircuitBreakerRequests.WithLabelValues(webhookBreakerName, "success").Inc()
		return permanent(se.Error()), nil

	default:
		metrics.CircuitBreakerRequests.WithLabelValues(webhookBreakerName, "failure").Inc()
		deps.Logger.Warn().Err(err).Str("url", payload.URL).Msg("Webhook delivery failed, will retry")
		return d.retry(job, err.Error()), nil
	}
}

func (d *WebhookDeliverer) send(ctx context.Context, payload *WebhookPayload) (*WebhookOutput, error) {
	method := strings.ToUpper(payload.Method)
	if method == "" {
		method = http.MethodPost
	}

	body := payload.Body
	if len(body) == 0 {
		body = json.RawMessage("{}")
	}

	req, err := http.NewRequestWithContext(ctx, method, payload.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)
	for key, value := range payload.Headers {
		req.Header.Set(key, value)
	}
	if jobID := logging.JobIDFromContext(ctx); jobID != "" {
		req.Header.Set("Idempotency-Key", jobID)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		respBody = []byte("(failed to read response)")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, body: string(respBody)}
	}

	out := &WebhookOutput{StatusCode: resp.StatusCode}
	var respData map[string]interface{}
	if err := json.Unmarshal(respBody, &respData); err == nil {
		if id, ok := respData["id"].(string); ok {
			out.ExternalID = id
		} else if id, ok := respData["message_id"].(string); ok {
			out.ExternalID = id
		}
	}
	return out, nil
}

// retry requests another attempt after an exponential backoff based on the
// attempts already made.
func (d *WebhookDeliverer) retry(job *models.Job, msg string) *jobs.Result {
	delay := Backoff(d.cfg.BaseBackoff, d.cfg.MaxBackoff, job.Attempts)
	return &jobs.Result{Failed: true, Error: msg, RetryIn: &delay}
}

// Backoff returns base * 2^attempts capped at maxDelay.
func Backoff(base, maxDelay time.Duration, attempts int) time.Duration {
	delay := base
	for i := 0; i < attempts && delay < maxDelay; i++ {
		delay *= 2
	}
	return min(delay, maxDelay)
}

func permanent(msg string) *jobs.Result {
	return &jobs.Result{Failed: true, Error: msg}
}

// stateToString converts circuit breaker state to string
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// stateToFloat converts circuit breaker state to float for Prometheus
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
