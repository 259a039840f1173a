// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

/*
Package supervisor runs the server's long-lived services under suture v4.

# Overview

The tree has two layers so a crashing poller never takes the HTTP API down
with it, and vice versa:

	RootSupervisor ("jobqueue")
	├── ProcessingSupervisor ("processing-layer")
	│   └── PollerService (if JOBS_POLL_ENABLED)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services are restarted with suture's failure decay and backoff.
Supervisor events are logged through sutureslog, which writes to the zerolog
logger via logging.NewSlogLogger.

# Usage Example

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
	    return err
	}

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	if cfg.Jobs.PollEnabled {
	    tree.AddProcessingService(services.NewPollerService(poller))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := tree.ServeBackground(ctx)

# Shutdown

Cancelling the context stops every service. Services that do not return within
ShutdownTimeout are listed by UnstoppedServiceReport.
*/
package supervisor
