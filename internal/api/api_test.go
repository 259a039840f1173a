// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/jobqueue/internal/audit"
	"github.com/tomtom215/jobqueue/internal/auth"
	"github.com/tomtom215/jobqueue/internal/authz"
	"github.com/tomtom215/jobqueue/internal/config"
	"github.com/tomtom215/jobqueue/internal/database"
	"github.com/tomtom215/jobqueue/internal/jobs"
	"github.com/tomtom215/jobqueue/internal/jobs/handlers"
	"github.com/tomtom215/jobqueue/internal/models"
	"github.com/tomtom215/jobqueue/internal/websocket"
)

const (
	testCronSecret    = "cron-secret-0123456789abcdef"
	testJWTSecret     = "jwt-secret-0123456789abcdef0123456789"
	testAdminUser     = "admin"
	testAdminPassword = "correct horse battery"
)

// DuckDB in-memory databases are opened one at a time to bound memory.
var testDBSemaphore = make(chan struct{}, 1)

type testServer struct {
	handler http.Handler
	store   *database.DB
	jwt     *auth.JWTManager
	audit   *audit.Logger
	events  *websocket.Hub
	api     *Handler
}

func testConfig(mode auth.AuthMode) *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{
			Driver:    config.DriverDuckDB,
			Path:      ":memory:",
			MaxMemory: "512MB",
		},
		Security: config.SecurityConfig{
			AuthMode:          string(mode),
			JWTSecret:         testJWTSecret,
			SessionTimeout:    time.Hour,
			AdminUsername:     testAdminUser,
			AdminPassword:     testAdminPassword,
			CronSecret:        testCronSecret,
			CronUserAgents:    []string{"vercel-cron"},
			RateLimitDisabled: true,
		},
		Jobs: config.JobsConfig{
			DefaultBatchSize:   5,
			MaxBatchSize:       config.HardMaxBatchSize,
			DefaultMaxAttempts: 3,
			WorkerRunRetention: 24 * time.Hour,
		},
	}
}

func newTestServer(t *testing.T, mode auth.AuthMode) *testServer {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	cfg := testConfig(mode)

	db, err := database.New(&cfg.Database)
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	registry, err := jobs.NewRegistry(handlers.Builtins(cfg))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	hub := websocket.NewHub()
	hubCtx, stopHub := context.WithCancel(context.Background())
	go func() { _ = hub.Serve(hubCtx) }()
	t.Cleanup(stopHub)

	runner, err := jobs.NewRunner(db, registry, jobs.RunnerConfigFrom(cfg.Jobs),
		jobs.WithWorkerRuns(db),
		jobs.WithObserver(hub),
		jobs.WithMaintenance(db),
		jobs.WithLogger(zerolog.Nop()),
	)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	auditLogger := audit.NewLogger(audit.NewMemoryStore(100), &audit.Config{Enabled: true, BufferSize: 100})
	t.Cleanup(func() { _ = auditLogger.Close() })

	h := NewHandler(db, runner, cfg)
	h.SetAudit(auditLogger)
	h.SetEvents(hub)
	ts := &testServer{store: db, audit: auditLogger, events: hub, api: h}

	var jwtManager *auth.JWTManager
	if mode == auth.AuthModeJWT {
		jwtManager, err = auth.NewJWTManager(&cfg.Security)
		if err != nil {
			t.Fatalf("NewJWTManager: %v", err)
		}
		admin, err := auth.NewAdminCredentials(testAdminUser, testAdminPassword)
		if err != nil {
			t.Fatalf("NewAdminCredentials: %v", err)
		}
		h.SetLogin(jwtManager, admin)
		ts.jwt = jwtManager
	}

	authn, err := auth.NewMiddleware(jwtManager, mode)
	if err != nil {
		t.Fatalf("auth.NewMiddleware: %v", err)
	}
	enforcer, err := authz.NewEnforcer(cfg.Security.Casbin)
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}

	ts.handler = NewRouter(h, authn, authz.NewMiddleware(enforcer), NewChiMiddleware(ChiMiddlewareConfigFrom(cfg.Security))).Setup()
	return ts
}

type requestOption func(*http.Request)

func withBearer(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withUserAgent(ua string) requestOption {
	return func(r *http.Request) { r.Header.Set("User-Agent", ua) }
}

func withJSON() requestOption {
	return func(r *http.Request) { r.Header.Set("Content-Type", "application/json") }
}

func withForm() requestOption {
	return func(r *http.Request) { r.Header.Set("Content-Type", "application/x-www-form-urlencoded") }
}

func (ts *testServer) do(t *testing.T, method, path, body string, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) token(t *testing.T, role string) string {
	t.Helper()
	if ts.jwt == nil {
		t.Fatal("token requested on a server without JWT auth")
	}
	token, _, err := ts.jwt.GenerateToken(role+"-user", role)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

func (ts *testServer) enqueue(t *testing.T, taskType jobs.TaskType, opts models.EnqueueOptions) *models.Job {
	t.Helper()
	job, err := ts.store.Enqueue(context.Background(), string(taskType), nil, opts)
	if err != nil {
		t.Fatalf("Enqueue(%s): %v", taskType, err)
	}
	return job
}

func (ts *testServer) job(t *testing.T, id string) *models.Job {
	t.Helper()
	job, err := ts.store.GetJob(context.Background(), id)
	if err != nil {
		t.Fatalf("GetJob(%s): %v", id, err)
	}
	return job
}

// auditEvents flushes the audit logger and returns everything it recorded.
// Nothing is recorded after the flush.
func (ts *testServer) auditEvents(t *testing.T) []audit.Event {
	t.Helper()
	_ = ts.audit.Close()
	events, err := ts.audit.Query(context.Background(), audit.QueryFilter{})
	if err != nil {
		t.Fatalf("audit Query: %v", err)
	}
	return events
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) *envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("decode data: %v (data %s)", err, env.Data)
		}
	}
	return &env
}

func decodeSummary(t *testing.T, rec *httptest.ResponseRecorder) *models.RunSummary {
	t.Helper()
	var summary models.RunSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v (body %s)", err, rec.Body.String())
	}
	return &summary
}

func formBody(values map[string]string) string {
	form := url.Values{}
	for k, v := range values {
		form.Set(k, v)
	}
	return form.Encode()
}
