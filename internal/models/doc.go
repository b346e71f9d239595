// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

/*
Package models defines the documents served by the status surface.

Key Components:

  - HealthStatus: liveness document for /health
  - ServiceStatus: health fields plus uptime, scheduler state and a
    non-sensitive configuration summary for /status
  - ServiceInfo: endpoint listing for /
  - APIErrorResponse: error envelope for 404, 405 and 429 responses

Configuration summaries carry names only (dataset, host:dataset, bucket).
Secrets and credentials have no field here, so they cannot be serialized.
*/
package models
