// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

// Package secrets resolves credentials by name.
//
// A name is looked up, in order, as a file in the Docker secrets directory
// (/run/secrets), as a file in the local development directory (./secrets),
// as the environment variable <prefix><NAME> (VAULT_SECRET_B2_KEY_ID), and
// finally as the well-known variable some tooling already exports
// (B2_KEY_ID, B2_APPLICATION_KEY, DISCORD_ALERT_TOKEN).
//
// File contents are trimmed. Results, misses included, are cached for the
// life of the Store; Reset clears the cache.
//
// Values are never logged. Source reports where a name was found so startup
// logs can show which credentials are configured.
package secrets
