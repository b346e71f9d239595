// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package snapshot

import "errors"

var (
	// ErrEnumerationFailed means the snapshot listing could not be obtained.
	// It is distinct from an empty listing.
	ErrEnumerationFailed = errors.New("snapshot enumeration failed")

	// ErrMalformedName means a name does not follow "<dataset>@<class>-<label>".
	ErrMalformedName = errors.New("malformed snapshot name")
)
