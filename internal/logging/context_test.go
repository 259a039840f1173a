// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRequestIDContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("expected empty request id, got %q", got)
	}

	id := GenerateRequestID()
	if len(id) != 36 {
		t.Errorf("expected uuid length 36, got %d", len(id))
	}
	ctx = ContextWithRequestID(ctx, id)
	if got := RequestIDFromContext(ctx); got != id {
		t.Errorf("RequestIDFromContext = %q, want %q", got, id)
	}
}

func TestCtx_AddsContextFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf))
	ctx = ContextWithRequestID(ctx, "req-1")
	ctx = ContextWithJobID(ctx, "job-1")

	Ctx(ctx).Info().Msg("processing")

	out := buf.String()
	for _, want := range []string{`"request_id":"req-1"`, `"job_id":"job-1"`, "processing"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in output: %s", want, out)
		}
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(NewTestLogger(&buf))
	defer SetLogger(prev)

	logger := WithComponent("job-runner")
	logger.Info().Msg("pass started")

	if !strings.Contains(buf.String(), `"component":"job-runner"`) {
		t.Errorf("expected component field, got: %s", buf.String())
	}
}
