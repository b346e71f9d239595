// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

/*
Package api serves the read-only status surface using the Chi router.

Endpoints:

	GET /         service info and endpoint list
	GET /health   liveness: status, service, version, timestamp
	GET /status   health plus uptime, scheduler jobs and next runs, and a
	              configuration summary (names only, never credentials)
	GET /metrics  Prometheus exposition

Middleware, outermost first: request ID, panic recovery, per-IP rate
limiting (go-chi/httprate), request duration metrics.

The status surface reports only what is scheduled next. Failed runs are
announced through the alert sinks, not kept here.
*/
package api
