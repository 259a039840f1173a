// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/jobqueue/internal/auth"
	"github.com/tomtom215/jobqueue/internal/config"
	"github.com/tomtom215/jobqueue/internal/middleware"
)

func TestHealth(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, auth.AuthModeNone)

	rec := ts.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var status HealthStatus
	env := decodeEnvelope(t, rec, &status)
	if status.Status != "healthy" || !status.DatabaseConnected || status.Database != config.DriverDuckDB {
		t.Errorf("Unexpected health %+v", status)
	}
	if env.Meta == nil || env.Meta.RequestID == "" {
		t.Error("Expected request id in meta")
	}
	if rec.Header().Get(middleware.RequestIDHeader) != env.Meta.RequestID {
		t.Error("Meta request id should match the response header")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, auth.AuthModeNone)
	ts.do(t, http.MethodGet, "/health", "")

	rec := ts.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "api_requests_total") {
		t.Error("Expected api_requests_total in metrics output")
	}
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, auth.AuthModeNone)

	rec := ts.do(t, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec, nil); env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Errorf("Expected NOT_FOUND envelope, got %+v", env)
	}

	rec = ts.do(t, http.MethodDelete, "/jobs/run", "", withBearer(testCronSecret))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	mw := NewChiMiddleware(&ChiMiddlewareConfig{
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
	})
	handler := mw.RateLimit()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/jobs/run", nil)
		req.RemoteAddr = "192.0.2.10:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("Expected 200, 200, 429; got %v", codes)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	t.Parallel()

	mw := NewChiMiddleware(&ChiMiddlewareConfig{
		RateLimitRequests: 1,
		RateLimitWindow:   time.Minute,
		RateLimitDisabled: true,
	})
	handler := mw.RateLimitLogin()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("Request %d limited while disabled: %d", i, rec.Code)
		}
	}
}

func TestChiMiddlewareConfigFrom(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		origins     []string
		credentials bool
	}{
		{"no origins", nil, false},
		{"wildcard", []string{"*"}, false},
		{"explicit", []string{"https://admin.example.org"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := ChiMiddlewareConfigFrom(config.SecurityConfig{CORSOrigins: tt.origins, RateLimitReqs: 10, RateLimitWindow: time.Second})
			if cfg.CORSAllowCredentials != tt.credentials {
				t.Errorf("CORSAllowCredentials = %v, want %v", cfg.CORSAllowCredentials, tt.credentials)
			}
			if cfg.RateLimitRequests != 10 || cfg.RateLimitWindow != time.Second {
				t.Errorf("Rate limit not copied: %+v", cfg)
			}
		})
	}
}
