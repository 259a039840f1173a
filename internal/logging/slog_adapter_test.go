// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogHandler_Handle(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewSlogHandlerWithLogger(NewTestLogger(&buf)))

	logger.Warn("service restarted", "service", "job-poller", "attempt", 2)

	out := buf.String()
	for _, want := range []string{`"level":"warn"`, `"service":"job-poller"`, `"attempt":2`, "service restarted"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in output: %s", want, out)
		}
	}
}

func TestSlogHandler_GroupsAndAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewSlogHandlerWithLogger(NewTestLogger(&buf))).
		With("tree", "root").
		WithGroup("supervisor")

	logger.Info("event", "name", "api")

	out := buf.String()
	if !strings.Contains(out, `"tree":"root"`) || strings.Contains(out, `"supervisor.tree"`) {
		t.Errorf("expected attr added before the group to stay ungrouped, got: %s", out)
	}
	if !strings.Contains(out, `"supervisor.name":"api"`) {
		t.Errorf("expected grouped record attr, got: %s", out)
	}
}
