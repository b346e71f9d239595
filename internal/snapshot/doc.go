// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

// Package snapshot models managed ZFS snapshots and enumerates them.
//
// A managed snapshot is named "<dataset>@<class>-<label>", where class is
// daily, weekly, or monthly and label is a sortable token (an ISO date for
// snapshots created by Snapvault). Catalog performs a fresh enumeration on
// every call through a command.Runner, locally or on the replication host,
// and never caches results.
//
// Enumeration failure is reported as ErrEnumerationFailed and is never
// conflated with an empty result. A dataset that does not exist yet is an
// empty result.
package snapshot
