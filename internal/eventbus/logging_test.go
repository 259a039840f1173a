// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package eventbus

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

func TestLoggerAdapter(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewLoggerAdapter(zerolog.New(&buf).Level(zerolog.DebugLevel))

	adapter.With(watermill.LogFields{"topic": "jq.job.failed"}).
		Error("publish failed", errors.New("boom"), watermill.LogFields{"attempt": 2})
	adapter.Info("connected", nil)
	adapter.Trace("suppressed", nil)

	out := buf.String()
	for _, want := range []string{`"topic":"jq.job.failed"`, `"attempt":2`, `"error":"boom"`, `"message":"connected"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
	if strings.Contains(out, "suppressed") {
		t.Error("trace message logged below the configured level")
	}
}
