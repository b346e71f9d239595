// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

/*
Package config loads Snapvault configuration.

# Configuration Sources

Configuration is layered with Koanf v2, lowest precedence first:

 1. Defaults from defaultConfig()
 2. Base file: CONFIG_PATH, config.yaml, config.yml, /etc/snapvault/config.yaml
 3. Environment file: config.<environment>.yaml next to the base file, where
    the environment comes from SNAPVAULT_ENV or service.environment
 4. Environment variables listed in the mapping table (VAULT_ZFS_DATASET,
    LOG_LEVEL, ...); unmapped variables are ignored

# Never Fail on One Value

Load does not return an error. A value that cannot be converted to its
field's type, fails a range or enum rule, or fails a semantic check (cron
expression, timezone) is replaced by its default and recorded in the Report
as a Violation. An unreadable or unparseable file is recorded and skipped.
The caller logs the report once at startup:

	cfg, report := config.Load(config.Options{})
	for _, v := range report.Violations {
	    logger.Warn().Str("key", v.Key).Str("reason", v.Reason).Msg("Configuration value replaced by default")
	}

# Secrets

Credentials never live in configuration. Sections hold the secret's name
(replication.key_ref, alerting.webhook_ref) and the value is resolved by
the secrets package.

# Thread Safety

Config is immutable after Load and safe for concurrent reads.
*/
package config
