// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

// Package retention decides which snapshots of a class to destroy.
//
// A policy keeps the newest Keep snapshots of its class and selects the
// oldest excess for deletion, oldest first. Keep == 0 retains nothing; zero
// is never treated as "unlimited".
//
// The input is expected in catalog order (ascending label). The policy never
// re-sorts and never deduplicates: two entries with the same label are both
// eligible and are reported as a collision for the caller to warn about.
package retention
