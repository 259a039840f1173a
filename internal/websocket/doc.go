// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

/*
Package websocket streams live queue events to admin clients.

The hub receives events from the job runner and the admin API and fans
them out to every connected client. It uses gorilla/websocket with a
hub-client layout:

	┌──────────┐
	│   Hub    │ <- runner and API publish here
	└────┬─────┘
	     │
	┌────┴─────┬─────────┬─────────┐
	│ Client1  │ Client2 │ Client3 │
	└──────────┴─────────┴─────────┘

Each client has two goroutines. readPump answers application pings and
notices disconnects; writePump forwards hub messages and sends protocol
pings.

Message types:

  - job_finished: one job attempt was recorded (task type, status, attempts, error)
  - pass_finished: a runner pass ended (source, status, counts)
  - queue_toggled: processing was paused or resumed
  - ping / pong: application keepalive initiated by the client

Publishing never blocks. A full broadcast buffer drops the message and a
client whose send buffer is full is disconnected.

The hub implements suture.Service and is supervised alongside the poller:

	hub := websocket.NewHub()
	tree.AddProcessingService(hub)
	runner, _ := jobs.NewRunner(store, registry, cfg, jobs.WithObserver(hub))
*/
package websocket
