// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

// Package logging provides centralized zerolog-based structured logging for Snapvault.
//
// Every component logs through the process-wide logger configured here. Job
// runs carry a run ID and job name in their context so that all lines emitted
// during one snapshot, replication, or cloud sync run can be correlated.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("dataset", ds).Msg("Snapshot created")
//
//	ctx = logging.ContextWithRun(ctx, "snapshot_daily")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Prune failed")
//
// # Component Loggers
//
//	log := logging.Component("scheduler")
//
// # Sensitive Values
//
// Secrets never reach a log line. Use Redact for values that must be
// acknowledged without being shown, and SanitizeValue for untrusted text
// such as command stderr or names reported by a remote host.
//
// # slog Bridge
//
// Libraries that require *slog.Logger (sutureslog) use NewSlogLogger, which
// writes through the same zerolog backend.
package logging
