// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

// Package backup implements the Snapvault backup jobs.
//
// Three jobs make up the pipeline:
//
//	SnapshotJob:  creates today's snapshot of one class, then prunes the class
//	Replicator:   ships the newest local snapshot to the offsite mirror
//	CloudSync:    mirrors a local directory to a cloud bucket with rclone
//
// Architecture:
//
//	┌──────────────┐     ┌─────────────────┐     ┌──────────────┐
//	│   Scheduler  │────▶│    Reporter     │────▶│ Alert Sinks  │
//	└──────────────┘     └─────────────────┘     └──────────────┘
//	                            │
//	                            ▼
//	             ┌──────────────┬──────────────┬──────────────┐
//	             │ SnapshotJob  │  Replicator  │  CloudSync   │
//	             └──────────────┴──────────────┴──────────────┘
//	                            │
//	                            ▼
//	                   ┌─────────────────┐
//	                   │ command.Runner  │ (zfs, ssh, rclone)
//	                   └─────────────────┘
//
// Replication keeps no local cursor. Each run lists the remote and decides
// between a full send, an incremental send against the remote's newest
// snapshot, or nothing at all. A remote base that no longer exists locally is
// reported as ErrDivergedHistory and never falls back to a full send.
//
// Every run goes through Reporter.Run, which converts errors and panics into
// an Outcome, records metrics and notifies the alert sinks. No error escapes
// to the scheduler.
//
// Usage:
//
//	reporter := backup.NewReporter(dispatcher)
//	job := backup.NewSnapshotJob(runner, localCatalog, cfg)
//	reporter.Run(ctx, "snapshot_daily", job.Task(snapshot.ClassDaily))
package backup
