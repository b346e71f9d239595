// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package scheduler

import "time"

// action is what the scheduler does with a job on one wake-up.
type action int

const (
	actionWait action = iota
	actionFire
	actionSkipMisfire
	actionDropOverlap
)

func (a action) String() string {
	switch a {
	case actionFire:
		return "fire"
	case actionSkipMisfire:
		return "misfire"
	case actionDropOverlap:
		return "overlap"
	}
	return "wait"
}

// latestDue returns the newest occurrence of t at or before now, starting
// from the due occurrence scheduled. Missed occurrences collapse into it.
func latestDue(t *Trigger, scheduled, now time.Time) time.Time {
	for n := t.Next(scheduled); !n.IsZero() && !n.After(now); n = t.Next(n) {
		scheduled = n
	}
	return scheduled
}

// decide applies the firing policy to a job whose next occurrence is
// scheduled. A due occurrence within grace fires unless the job is running.
func decide(now, scheduled time.Time, grace time.Duration, running bool) action {
	if now.Before(scheduled) {
		return actionWait
	}
	if now.Sub(scheduled) > grace {
		return actionSkipMisfire
	}
	if running {
		return actionDropOverlap
	}
	return actionFire
}
