// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

// Package command executes external programs (zfs, ssh, rclone, du) with a
// per-invocation timeout and captured output.
//
// All storage and transfer operations in Snapvault are external command
// invocations. They go through the Runner interface so that the snapshot
// catalog, the snapshot job, and the replication engine can be tested with
// FakeRunner instead of real storage tooling.
//
// # Running Commands
//
//	res, err := runner.Run(ctx, command.Command{
//	    Name:    "zfs",
//	    Args:    []string{"list", "-H", "-t", "snapshot", "-o", "name", "tank/data"},
//	    Timeout: time.Minute,
//	})
//	if errors.Is(err, command.ErrTimeout) { ... }
//
// A non-zero exit returns the Result together with an *ExitError.
//
// # Pipes
//
// Pipe connects a producer's stdout to a consumer's stdin under one shared
// deadline. It is used for zfs send | ssh zfs recv; either side failing fails
// the whole pipe.
//
// # Targets
//
// A Target decides where a command runs. Local leaves it unchanged; SSH wraps
// it into a non-interactive ssh invocation against the replication host.
package command
