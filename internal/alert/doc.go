// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

// Package alert delivers job outcomes to notification sinks.
//
// Sinks:
//   - Discord: webhook embed, green on success and red on failure
//   - NATS: the outcome as JSON on a subject, for other services to consume
//
// The Dispatcher implements backup.Notifier. It filters outcomes by the
// on_success and on_failure settings, sends to every sink with a bounded
// timeout, and logs delivery errors instead of returning them, so a broken
// sink never changes the outcome of the job it reports.
//
// The Discord sink is guarded by a circuit breaker and a token bucket rate
// limiter so a dead webhook does not stall every job for its full timeout.
package alert
