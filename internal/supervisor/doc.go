// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

/*
Package supervisor runs Snapvault's long-lived services under suture v4.

# Overview

	RootSupervisor ("snapvault")
	├── JobsSupervisor ("jobs-layer")
	│   └── SchedulerService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Each layer counts failures on its own, so a status server that keeps failing
to bind backs off without restarting the scheduler.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    ShutdownTimeout: cfg.Shutdown.Grace + 5*time.Second,
	})
	if err != nil {
	    return err
	}
	tree.AddJobService(services.NewSchedulerService(sched))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	errCh := tree.ServeBackground(ctx)

# Service Interface

All services implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Return behavior:
  - nil: the service finished and is not restarted
  - error: the service failed and is restarted after backoff
  - ctx.Err(): shutdown was requested

# Shutdown

ShutdownTimeout must cover the scheduler's grace period, otherwise suture
abandons the scheduler while a backup is still draining. Services that miss
the deadline are listed by UnstoppedServiceReport.
*/
package supervisor
