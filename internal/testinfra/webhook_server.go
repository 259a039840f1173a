// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package testinfra

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// WebhookCapture represents a captured webhook request.
type WebhookCapture struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
}

// MockWebhookServer records webhook deliveries and answers with scripted
// status codes.
type MockWebhookServer struct {
	Server *httptest.Server

	mu       sync.Mutex
	captures []WebhookCapture
	statuses []int
}

// NewMockWebhookServer starts a receiver that answers each request with the
// next code in statuses, repeating the last one once the list runs out.
// With no statuses every request gets 200. The server closes with the test.
func NewMockWebhookServer(t *testing.T, statuses ...int) *MockWebhookServer {
	t.Helper()

	m := &MockWebhookServer{statuses: statuses}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.Server.Close)
	return m
}

func (m *MockWebhookServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	_ = r.Body.Close()

	m.mu.Lock()
	m.captures = append(m.captures, WebhookCapture{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: r.Header.Clone(),
		Body:    body,
	})
	status := http.StatusOK
	if n := len(m.statuses); n > 0 {
		idx := min(len(m.captures)-1, n-1)
		status = m.statuses[idx]
	}
	m.mu.Unlock()

	w.WriteHeader(status)
}

// URL returns the server URL.
func (m *MockWebhookServer) URL() string {
	return m.Server.URL
}

// Captures returns a copy of all captured requests.
func (m *MockWebhookServer) Captures() []WebhookCapture {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WebhookCapture, len(m.captures))
	copy(out, m.captures)
	return out
}
