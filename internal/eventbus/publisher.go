// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package eventbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/jobqueue/internal/metrics"
	"github.com/tomtom215/jobqueue/internal/models"
)

const breakerName = "event-bus"

// Publish results for the publish counter.
const (
	resultPublished = "published"
	resultFailed    = "failed"
	resultRejected  = "rejected"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("event bus publisher is closed")

// Publisher sends job lifecycle events to NATS.
type Publisher struct {
	publisher message.Publisher
	cb        *gobreaker.CircuitBreaker[struct{}]
	prefix    string
	logger    zerolog.Logger
	now       func() time.Time

	mu     sync.RWMutex
	closed bool
}

// NewPublisher connects a Watermill NATS publisher for cfg.URL.
// The connection retries in the background, so an unreachable server does
// not fail startup; messages are buffered until it comes back.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewPublisher(cfg PublisherConfig, logger zerolog.Logger) (*Publisher, error) {
	wmLogger := NewLoggerAdapter(logger)

	natsOpts := []natsgo.Option{
		natsgo.Name("jobqueue"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				wmLogger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			wmLogger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return newPublisher(pub, cfg, logger), nil
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func newPublisher(pub message.Publisher, cfg PublisherConfig, logger zerolog.Logger) *Publisher {
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Publisher{
		publisher: pub,
		cb:        cb,
		prefix:    cfg.SubjectPrefix,
		logger:    logger,
		now:       time.Now,
	}
}

// Publish sends event on subject through the circuit breaker.
func (p *Publisher) Publish(subject string, event *Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(event.ID, data)
	msg.Metadata.Set("event_type", event.Type)
	if event.Source != "" {
		msg.Metadata.Set("source", string(event.Source))
	}

	_, err = p.cb.Execute(func() (struct{}, error) {
		return struct{}{}, p.publisher.Publish(subject, msg)
	})
	switch {
	case err == nil:
		metrics.EventBusPublishes.WithLabelValues(resultPublished).Inc()
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.EventBusPublishes.WithLabelValues(resultRejected).Inc()
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
	default:
		metrics.EventBusPublishes.WithLabelValues(resultFailed).Inc()
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
	}
	return err
}

// publishQuietly logs failures instead of returning them.
func (p *Publisher) publishQuietly(subject string, event *Event) {
	if err := p.Publish(subject, event); err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			p.logger.Debug().Str("subject", subject).Msg("Event bus circuit open, dropping event")
			return
		}
		p.logger.Warn().Err(err).Str("subject", subject).Msg("Failed to publish event")
	}
}

// JobFinished publishes one recorded job attempt.
func (p *Publisher) JobFinished(source models.WorkerRunSource, result models.JobRunResult) {
	event := newEvent(EventTypeJobFinished, source, result, p.now().UTC())
	p.publishQuietly(JobSubject(p.prefix, result.Status), event)
}

// PassFinished publishes a runner pass summary without per-job results,
// which were already published one by one.
func (p *Publisher) PassFinished(source models.WorkerRunSource, summary *models.RunSummary) {
	if summary == nil {
		return
	}
	trimmed := *summary
	trimmed.Results = nil
	event := newEvent(EventTypePassFinished, source, &trimmed, p.now().UTC())
	p.publishQuietly(PassSubject(p.prefix, summary.Status), event)
}

// QueueToggled publishes a processing switch change.
func (p *Publisher) QueueToggled(settings *models.QueueSettings) {
	if settings == nil {
		return
	}
	event := newEvent(EventTypeQueueToggled, "", settings, p.now().UTC())
	p.publishQuietly(QueueSubject(p.prefix, settings.ProcessingEnabled), event)
}

// Close flushes and closes the NATS connection. Safe to call twice.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.logger.Debug().Msg("Closing event bus publisher")
	return p.publisher.Close()
}

// stateToFloat converts circuit breaker state to float for Prometheus
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
