// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package backup

import "errors"

var (
	// ErrCreateFailed means a snapshot could not be created or confirmed.
	ErrCreateFailed = errors.New("snapshot creation failed")

	// ErrPruneFailed means one retention deletion failed. It never fails a run.
	ErrPruneFailed = errors.New("snapshot prune failed")

	// ErrNoLocalSnapshot means there is nothing to replicate.
	ErrNoLocalSnapshot = errors.New("no local snapshot to replicate")

	// ErrRemoteUnreachable means the remote host could not be contacted.
	// The next scheduled run retries.
	ErrRemoteUnreachable = errors.New("remote unreachable")

	// ErrDivergedHistory means the remote's newest snapshot has no matching
	// local snapshot to use as an incremental base. It needs an operator.
	ErrDivergedHistory = errors.New("replication history diverged")

	// ErrTransferFailed means a send/receive pipe or cloud sync failed.
	// The remote keeps its prior state.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrLocalPathMissing means the cloud sync source directory does not exist.
	ErrLocalPathMissing = errors.New("local sync path missing")
)
