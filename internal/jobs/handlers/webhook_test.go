// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/jobqueue/internal/metrics"
	"github.com/tomtom215/jobqueue/internal/models"
	"github.com/tomtom215/jobqueue/internal/testinfra"
)

func webhookJob(t *testing.T, payload WebhookPayload, attempts int) *models.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return &models.Job{ID: "job-1", TaskType: "webhook_deliver", Payload: raw, Attempts: attempts, MaxAttempts: 5}
}

func TestWebhookDeliverer_Success(t *testing.T) {
	server := testinfra.NewMockWebhookServer(t)
	d := NewWebhookDeliverer(testConfig().Webhook)

	job := webhookJob(t, WebhookPayload{
		URL:     server.URL() + "/hooks/deploy",
		Method:  "PUT",
		Headers: map[string]string{"X-Token": "abc"},
		Body:    json.RawMessage(`{"release":"v1.2.0"}`),
	}, 0)

	res, err := d.Handle(context.Background(), job, testDeps())
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res == nil || res.Failed {
		t.Fatalf("result = %+v, want success", res)
	}
	if out, ok := res.Output.(*WebhookOutput); !ok || out.StatusCode != http.StatusOK {
		t.Errorf("output = %+v", res.Output)
	}

	captures := server.Captures()
	if len(captures) != 1 {
		t.Fatalf("got %d requests, want 1", len(captures))
	}
	c := captures[0]
	if c.Method != http.MethodPut || c.Path != "/hooks/deploy" {
		t.Errorf("request = %s %s", c.Method, c.Path)
	}
	if c.Headers.Get("X-Token") != "abc" || c.Headers.Get("Content-Type") != "application/json" {
		t.Errorf("headers = %v", c.Headers)
	}
	if string(c.Body) != `{"release":"v1.2.0"}` {
		t.Errorf("body = %s", c.Body)
	}
}

func TestWebhookDeliverer_TransientFailureRetriesWithBackoff(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusTooManyRequests} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			server := testinfra.NewMockWebhookServer(t, status)
			d := NewWebhookDeliverer(testConfig().Webhook)

			res, err := d.Handle(context.Background(), webhookJob(t, WebhookPayload{URL: server.URL()}, 2), testDeps())
			if err != nil {
				t.Fatalf("Handle: %v", err)
			}
			if !res.Failed || res.RetryIn == nil {
				t.Fatalf("result = %+v, want retry", res)
			}
			// base 1s, two prior attempts
			if *res.RetryIn != 4*time.Second {
				t.Errorf("RetryIn = %v, want 4s", *res.RetryIn)
			}
			if !strings.Contains(res.Error, fmt.Sprint(status)) {
				t.Errorf("error = %q", res.Error)
			}
		})
	}
}

func TestWebhookDeliverer_ClientErrorIsPermanent(t *testing.T) {
	server := testinfra.NewMockWebhookServer(t, http.StatusNotFound)
	d := NewWebhookDeliverer(testConfig().Webhook)

	res, err := d.Handle(context.Background(), webhookJob(t, WebhookPayload{URL: server.URL()}, 0), testDeps())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Failed || res.RetryIn != nil {
		t.Errorf("result = %+v, want permanent failure", res)
	}
}

func TestWebhookDeliverer_InvalidPayload(t *testing.T) {
	t.Parallel()

	d := NewWebhookDeliverer(testConfig().Webhook)
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `nope`},
		{"missing url", `{}`},
		{"ftp url", `{"url":"ftp://example.com/x"}`},
		{"bad method", `{"url":"https://example.com","method":"DELETE"}`},
	}

	for _, tt := range tests {
		res, err := d.Handle(context.Background(), &models.Job{Payload: json.RawMessage(tt.payload)}, testDeps())
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if !res.Failed || res.RetryIn != nil || !strings.Contains(res.Error, "invalid webhook payload") {
			t.Errorf("%s: result = %+v", tt.name, res)
		}
	}
}

func TestWebhookDeliverer_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	server := testinfra.NewMockWebhookServer(t, http.StatusServiceUnavailable)
	cfg := testConfig().Webhook
	d := NewWebhookDeliverer(cfg)
	job := webhookJob(t, WebhookPayload{URL: server.URL()}, 0)

	for i := 0; i < int(cfg.BreakerMaxFailures); i++ {
		if _, err := d.Handle(context.Background(), job, testDeps()); err != nil {
			t.Fatal(err)
		}
	}

	res, err := d.Handle(context.Background(), job, testDeps())
	if err != nil {
		t.Fatal(err)
	}
	if res.Error != "webhook circuit open" || res.RetryIn == nil || *res.RetryIn != cfg.BreakerOpenTimeout {
		t.Errorf("result = %+v, want open-circuit retry", res)
	}
	if got := len(server.Captures()); got != int(cfg.BreakerMaxFailures) {
		t.Errorf("server saw %d requests, want %d", got, cfg.BreakerMaxFailures)
	}
	if state := testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues(webhookBreakerName)); state != 2 {
		t.Errorf("breaker state gauge = %v, want 2 (open)", state)
	}
}

func TestWebhookDeliverer_ClientErrorsDoNotTripBreaker(t *testing.T) {
	server := testinfra.NewMockWebhookServer(t, http.StatusBadRequest)
	cfg := testConfig().Webhook
	d := NewWebhookDeliverer(cfg)
	job := webhookJob(t, WebhookPayload{URL: server.URL()}, 0)

	for i := 0; i < int(cfg.BreakerMaxFailures)+2; i++ {
		if _, err := d.Handle(context.Background(), job, testDeps()); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(server.Captures()); got != int(cfg.BreakerMaxFailures)+2 {
		t.Errorf("server saw %d requests; breaker should stay closed", got)
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{6, time.Minute},
		{50, time.Minute},
	}
	for _, tt := range tests {
		if got := Backoff(time.Second, time.Minute, tt.attempts); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}
