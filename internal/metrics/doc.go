// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

/*
Package metrics provides Prometheus metrics for backup job observability.

Metrics are registered at package init through promauto and exposed by the
status server at /metrics:

	curl http://localhost:30886/metrics

# Available Metrics

Job Metrics:
  - snapvault_job_runs_total: Completed job runs (counter)
    Labels: job, result (success, failure)
  - snapvault_job_duration_seconds: Job run duration (histogram)
    Labels: job
  - snapvault_job_dropped_total: Firings that did not start a run (counter)
    Labels: job, reason (overlap, misfire)
  - snapvault_job_running: Runs currently in flight (gauge)
    Labels: job
  - snapvault_job_next_run_timestamp_seconds: Next scheduled firing (gauge)
    Labels: job

Command Metrics:
  - snapvault_command_duration_seconds: External command duration (histogram)
    Labels: command, result (success, failure, timeout)

Snapshot Metrics:
  - snapvault_snapshots_created_total: Snapshots created (counter)
    Labels: class
  - snapvault_snapshots_pruned_total: Retention deletions (counter)
    Labels: class, result

Replication Metrics:
  - snapvault_replication_sends_total: Replication runs by mode (counter)
    Labels: mode (full, incremental, none), result

Alert Metrics:
  - snapvault_alerts_total: Alert deliveries (counter)
    Labels: sink, result (sent, failed, skipped)

HTTP Metrics:
  - snapvault_http_request_duration_seconds: Status API latency (histogram)
    Labels: method, route, status
*/
package metrics
