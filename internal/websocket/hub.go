// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/jobqueue/internal/logging"
	"github.com/tomtom215/jobqueue/internal/metrics"
	"github.com/tomtom215/jobqueue/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types sent to clients
const (
	MessageTypeJobFinished  = "job_finished"
	MessageTypePassFinished = "pass_finished"
	MessageTypeQueueToggled = "queue_toggled"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
)

// broadcastBuffer bounds messages waiting for the hub loop.
const broadcastBuffer = 256

// Message is one event on the stream.
type Message struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// JobFinishedData is the payload of a job_finished message.
type JobFinishedData struct {
	Source models.WorkerRunSource `json:"source"`
	models.JobRunResult
}

// PassFinishedData is the payload of a pass_finished message.
type PassFinishedData struct {
	Source    models.WorkerRunSource `json:"source"`
	Status    models.RunStatus       `json:"status"`
	Processed int                    `json:"processed"`
	Succeeded int                    `json:"succeeded"`
	Failed    int                    `json:"failed"`
	Message   string                 `json:"message,omitempty"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients   map[*Client]bool
	broadcast chan Message
	mu        sync.RWMutex
	now       func() time.Time
}

// NewHub creates a new Hub. Messages are delivered only while Serve runs.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]bool),
		broadcast: make(chan Message, broadcastBuffer),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Serve delivers broadcasts until ctx ends, then disconnects every client.
// It implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		// Shutdown wins over pending broadcasts.
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (h *Hub) String() string {
	return "websocket-hub"
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	metrics.EventStreamClients.Set(float64(count))
	logging.Debug().Int("total_clients", count).Msg("websocket client connected")
}

// unregister removes client and closes its send channel. Safe to call for
// a client the hub already dropped.
func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	metrics.EventStreamClients.Set(float64(count))
	logging.Debug().Int("total_clients", count).Msg("websocket client disconnected")
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.ClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// sortedClients returns clients in connection order. Caller holds h.mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToClients sends message to every client in connection order.
// Clients that cannot keep up are dropped.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var toRemove []*Client
	for _, client := range h.sortedClients() {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
	if len(toRemove) > 0 {
		metrics.EventStreamClients.Set(float64(len(h.clients)))
		logging.Warn().Int("dropped", len(toRemove)).Msg("Dropped slow websocket clients")
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClients() {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.EventStreamClients.Set(0)
}

// Broadcast queues a message for every client without blocking.
func (h *Hub) Broadcast(messageType string, data any) {
	message := Message{
		Type:      messageType,
		Timestamp: h.now(),
		Data:      data,
	}

	select {
	case h.broadcast <- message:
	default:
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping message")
	}
}

// JobFinished publishes one recorded job attempt.
//
//nolint:gocritic // hugeParam: matches the runner observer signature
func (h *Hub) JobFinished(source models.WorkerRunSource, result models.JobRunResult) {
	h.Broadcast(MessageTypeJobFinished, &JobFinishedData{Source: source, JobRunResult: result})
}

// PassFinished publishes the totals of a runner pass.
func (h *Hub) PassFinished(source models.WorkerRunSource, summary *models.RunSummary) {
	h.Broadcast(MessageTypePassFinished, &PassFinishedData{
		Source:    source,
		Status:    summary.Status,
		Processed: summary.Processed,
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		Message:   summary.Message,
	})
}

// QueueToggled publishes the new processing switch.
func (h *Hub) QueueToggled(settings *models.QueueSettings) {
	h.Broadcast(MessageTypeQueueToggled, settings)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
