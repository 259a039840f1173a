// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

// Command jobctl operates on the job store directly: it enqueues jobs,
// inspects the queue, flips the processing switch, and runs passes without
// going through the HTTP API. It reads the same configuration as the server.
//
//	jobctl enqueue webhook_deliver --payload '{"url":"https://example.org/hook"}'
//	jobctl list --status failed
//	jobctl retry 7b0e...
//	jobctl run --limit 10 --force
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(newApp()).Execute(); err != nil {
		os.Exit(1)
	}
}
