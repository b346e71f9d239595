// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

/*
Command server runs Snapvault, a tiered ZFS backup orchestrator.

Snapvault takes daily, weekly and monthly snapshots of one dataset, prunes
each class to its retention count, replicates snapshots to a remote host
with zfs send/recv over SSH, and mirrors a directory to object storage
with rclone. Job outcomes are posted to Discord and optionally published
on NATS.

# Supervision

	RootSupervisor ("snapvault")
	├── JobsSupervisor ("jobs-layer")
	│   └── job-scheduler
	└── APISupervisor ("api-layer")
	    └── http-server (/, /health, /status, /metrics)

# Configuration

Layers, lowest to highest priority:
  - built-in defaults
  - config.yaml (-config flag, CONFIG_PATH, or the search path)
  - config.<environment>.yaml next to the base file
  - VAULT_* environment variables

Invalid values never stop the service: each is replaced by its default and
logged as a violation at startup.

Credentials are resolved by name from /run/secrets, ./secrets, then
VAULT_SECRET_<NAME>.

# Signals

SIGINT and SIGTERM stop the scheduler from firing new runs, wait up to
shutdown.grace for running jobs, drain the status server, and report any
service that did not stop in time.

# Usage

	snapvault -config /etc/snapvault/config.yaml
	snapvault -version
*/
package main
