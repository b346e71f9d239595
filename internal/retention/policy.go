// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package retention

import (
	"github.com/tomtom215/snapvault/internal/snapshot"
)

// Policy is the keep-count for one snapshot class.
type Policy struct {
	Class snapshot.Class
	Keep  int
}

// Plan is the result of applying a Policy to a catalog listing.
type Plan struct {
	// Delete holds the entries to destroy, oldest first.
	Delete []snapshot.Ref

	// Retain holds the surviving entries in their original order.
	Retain []snapshot.Ref

	// Collisions lists snapshot names that appeared more than once.
	Collisions []string
}

// SelectForDeletion returns the oldest len(snaps)-keep entries of snaps,
// or nothing when len(snaps) <= keep. A negative keep is treated as zero.
// The returned slice shares no backing array with snaps.
func SelectForDeletion(snaps []snapshot.Ref, keep int) []snapshot.Ref {
	if keep < 0 {
		keep = 0
	}
	if len(snaps) <= keep {
		return nil
	}
	excess := len(snaps) - keep
	out := make([]snapshot.Ref, excess)
	copy(out, snaps[:excess])
	return out
}

// Apply plans deletions for the entries of snaps that belong to the
// policy's class. Entries of other classes are ignored entirely.
func (p Policy) Apply(snaps []snapshot.Ref) Plan {
	own := snapshot.FilterClass(snaps, p.Class)
	del := SelectForDeletion(own, p.Keep)

	retain := make([]snapshot.Ref, len(own)-len(del))
	copy(retain, own[len(del):])

	return Plan{
		Delete:     del,
		Retain:     retain,
		Collisions: Collisions(own),
	}
}

// Collisions returns each full snapshot name that occurs more than once in
// snaps, in order of first repetition.
func Collisions(snaps []snapshot.Ref) []string {
	seen := make(map[string]int, len(snaps))
	var dups []string
	for _, ref := range snaps {
		name := ref.Identity.Name()
		seen[name]++
		if seen[name] == 2 {
			dups = append(dups, name)
		}
	}
	return dups
}
