// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package websocket

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/jobqueue/internal/logging"
)

// NewUpgrader returns an upgrader that accepts browser origins listed in
// allowedOrigins ("*" allows any). Requests without an Origin header come
// from non-browser clients and are accepted; they authenticate with a
// bearer token before reaching the upgrade.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), allowedOrigins)
		},
	}
}

func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeOrigin(origin)).Msg("websocket connection rejected from unauthorized origin")
	return false
}

// sanitizeOrigin keeps an untrusted header out of log control characters.
func sanitizeOrigin(origin string) string {
	if len(origin) > 256 {
		origin = origin[:256]
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, origin)
}

// ServeWS upgrades the request and attaches a new client to hub.
// On failure the upgrader has already written an HTTP error.
func ServeWS(hub *Hub, upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	NewClient(hub, conn).Start()
	return nil
}
