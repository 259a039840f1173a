// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package audit

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/jobqueue/internal/config"
	"github.com/tomtom215/jobqueue/internal/logging"
	"github.com/tomtom215/jobqueue/internal/metrics"
)

// Config holds configuration for the audit logger.
type Config struct {
	// Enabled controls whether events are recorded at all.
	Enabled bool

	// BufferSize is the size of the async write buffer.
	BufferSize int

	// LogEvents mirrors every event to the structured log.
	LogEvents bool

	// Retention is how long events are kept; zero keeps them until evicted.
	Retention time.Duration

	// CleanupInterval is how often retention is enforced.
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		BufferSize:      1000,
		LogEvents:       true,
		Retention:       30 * 24 * time.Hour,
		CleanupInterval: time.Hour,
	}
}

// ConfigFrom maps the audit config section onto logger options.
func ConfigFrom(cfg config.AuditConfig) *Config {
	c := DefaultConfig()
	c.Enabled = cfg.Enabled
	c.LogEvents = cfg.LogEvents
	if cfg.BufferSize > 0 {
		c.BufferSize = cfg.BufferSize
	}
	c.Retention = cfg.Retention
	return c
}

// Logger buffers events and writes them to a Store in the background.
// A nil *Logger discards everything, so callers never need a nil check.
type Logger struct {
	config    *Config
	store     Store
	eventChan chan *Event
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewLogger creates a logger and starts its writer goroutine.
func NewLogger(store Store, cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}

	l := &Logger{
		config:    cfg,
		store:     store,
		eventChan: make(chan *Event, cfg.BufferSize),
		stopChan:  make(chan struct{}),
	}

	l.wg.Add(1)
	go l.asyncWriter()
	return l
}

func (l *Logger) asyncWriter() {
	defer l.wg.Done()

	for {
		select {
		case <-l.stopChan:
			for {
				select {
				case event := <-l.eventChan:
					l.writeEvent(event)
				default:
					return
				}
			}
		case event := <-l.eventChan:
			l.writeEvent(event)
		}
	}
}

func (l *Logger) writeEvent(event *Event) {
	if l.config.LogEvents {
		data, err := json.Marshal(event)
		if err != nil {
			logging.Error().Err(err).Msg("Failed to marshal audit event")
		} else {
			logging.Info().RawJSON("audit", data).Str("audit_type", string(event.Type)).Msg("Audit event")
		}
	}

	if l.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.Save(ctx, event); err != nil {
		logging.Error().Err(err).Str("event_id", event.ID).Msg("Failed to save audit event")
	}
}

// Log records an event without blocking. ID, timestamp, and severity are
// filled in when unset; failures default to warning severity.
func (l *Logger) Log(event *Event) {
	if l == nil || !l.config.Enabled || event == nil {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
		if event.Outcome == OutcomeFailure {
			event.Severity = SeverityWarning
		}
	}

	select {
	case l.eventChan <- event:
	default:
		metrics.AuditEventsDropped.Inc()
		logging.Warn().Str("event_id", event.ID).Str("audit_type", string(event.Type)).Msg("Audit event buffer full, dropping event")
	}
}

// LogRequest records an event attributed to actor for the HTTP request r.
// metadata is marshaled to JSON when non-nil.
//
//nolint:gocritic // hugeParam: Actor passed by value for API simplicity
func (l *Logger) LogRequest(r *http.Request, eventType EventType, outcome Outcome, actor Actor, jobID, description string, metadata any) {
	if l == nil {
		return
	}
	event := &Event{
		Type:        eventType,
		Outcome:     outcome,
		Actor:       actor,
		Source:      SourceFromRequest(r),
		JobID:       jobID,
		Description: description,
		RequestID:   logging.RequestIDFromContext(r.Context()),
	}
	if metadata != nil {
		event.Metadata = mustJSON(metadata)
	}
	l.Log(event)
}

// Query returns stored events matching filter, most recent first.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	if l == nil || l.store == nil {
		return []Event{}, nil
	}
	return l.store.Query(ctx, filter)
}

// Close stops the writer after draining buffered events. It is idempotent.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.stopOnce.Do(func() { close(l.stopChan) })
	l.wg.Wait()
	return nil
}

// Serve implements suture.Service by enforcing retention until ctx ends.
func (l *Logger) Serve(ctx context.Context) error {
	if l.config.Retention <= 0 || l.store == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	interval := l.config.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.cleanup(ctx)
		}
	}
}

func (l *Logger) cleanup(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-l.config.Retention)
	count, err := l.store.Delete(ctx, cutoff)
	if err != nil {
		logging.Error().Err(err).Msg("Audit cleanup error")
	} else if count > 0 {
		logging.Info().Int64("count", count).Msg("Cleaned up old audit events")
	}
}

// String implements fmt.Stringer for supervisor logs.
func (l *Logger) String() string {
	return "audit-retention"
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

// SourceFromRequest describes the client of r. RemoteAddr has already been
// rewritten by chi's RealIP middleware when the router runs it.
func SourceFromRequest(r *http.Request) Source {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return Source{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}
