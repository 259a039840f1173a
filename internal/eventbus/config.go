// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package eventbus

import (
	"net/url"
	"time"

	"github.com/tomtom215/jobqueue/internal/config"
)

// PublisherConfig holds publisher configuration.
type PublisherConfig struct {
	URL             string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int

	// BreakerMaxFailures consecutive publish failures open the breaker
	// for BreakerOpenTimeout.
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

// DefaultPublisherConfig returns production defaults for url.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:                url,
		SubjectPrefix:      "jobqueue",
		MaxReconnects:      -1,
		ReconnectWait:      2 * time.Second,
		ReconnectBuffer:    8 * 1024 * 1024,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: 30 * time.Second,
	}
}

// ConfigFrom maps the event bus config section onto publisher options.
func ConfigFrom(cfg config.EventBusConfig) PublisherConfig {
	c := DefaultPublisherConfig(cfg.URL)
	if cfg.SubjectPrefix != "" {
		c.SubjectPrefix = cfg.SubjectPrefix
	}
	c.MaxReconnects = cfg.MaxReconnects
	if cfg.ReconnectWait > 0 {
		c.ReconnectWait = cfg.ReconnectWait
	}
	return c
}

// RedactURL hides any password in a NATS URL for logging.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
