// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

/*
Package services adapts long-running jobqueue components to suture.Service
so they can be placed in the supervisor tree.

# Services

  - APIServerService: wraps *http.Server. ListenAndServe runs in a goroutine
    and context cancellation triggers a bounded graceful Shutdown.
  - PollerService: wraps *jobs.Poller, whose lifecycle is Start(ctx)/Stop().
    Serve starts the poller, waits for cancellation, and stops it.

Both implement fmt.Stringer; the supervisor uses the name in its logs.

# Restart Semantics

Serve returns ctx.Err() on a requested shutdown and a wrapped error on
failure. Suture restarts a service after a failure according to the tree's
FailureThreshold and FailureBackoff. Returning suture.ErrDoNotRestart is not
used: a crashed listener or poller should always come back.

# Usage

	tree.AddProcessingService(services.NewPollerService(poller))
	tree.AddAPIService(services.NewAPIServerService(server, cfg.Server.Timeout))
*/
package services
