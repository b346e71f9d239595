// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/snapvault/internal/scheduler"
	"github.com/tomtom215/snapvault/internal/validation"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/snapvault/config.yaml",
	"/etc/snapvault/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// EnvironmentEnvVar selects the environment-specific overlay file.
const EnvironmentEnvVar = "SNAPVAULT_ENV"

// Options adjusts Load.
type Options struct {
	// Path is an explicit config file (the -config flag). It takes
	// precedence over CONFIG_PATH and DefaultConfigPaths.
	Path string
}

// Load assembles the configuration from defaults, files and environment
// variables. It never fails: rejected values fall back to their defaults and
// are listed in the returned Report.
func Load(opts Options) (*Config, *Report) {
	report := &Report{}
	defaults := defaultConfig()

	defaultsK := koanf.New(".")
	if err := defaultsK.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		// Only reachable if defaultConfig stops being a plain struct.
		panic(fmt.Sprintf("config: load defaults: %v", err))
	}

	k := defaultsK.Copy()

	// Layer 2: base file
	basePath := findConfigFile(opts.Path, report)
	if basePath != "" {
		loadFile(k, basePath, report)
	}

	// Layer 3: environment overlay
	environment := os.Getenv(EnvironmentEnvVar)
	if environment == "" {
		environment = k.String("service.environment")
	}
	if environment != "" {
		overlay := overlayPath(basePath, environment)
		if _, err := os.Stat(overlay); err == nil {
			loadFile(k, overlay, report)
		}
		if err := k.Set("service.environment", environment); err != nil {
			report.add("service.environment", environment, err.Error(), defaults.Service.Environment)
		}
	}

	// Layer 4: environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		report.add("environment", nil, fmt.Sprintf("failed to read environment variables: %v", err), nil)
	}

	coerceAll(k, defaultsK, report)

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		report.add("config", nil, fmt.Sprintf("failed to unmarshal configuration: %v", err), nil)
		cfg = defaultConfig()
	}

	validate(cfg, k, defaultsK, report)

	report.Environment = cfg.Service.Environment
	return cfg, report
}

// findConfigFile returns the first config file that exists, or "".
func findConfigFile(explicit string, report *Report) string {
	for _, candidate := range []string{explicit, os.Getenv(ConfigPathEnvVar)} {
		if candidate == "" {
			continue
		}
		if _, err := os.Stat(candidate); err != nil {
			report.add(candidate, nil, fmt.Sprintf("config file not readable: %v", err), nil)
			continue
		}
		return candidate
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// overlayPath returns config.<environment>.yaml next to the base file.
func overlayPath(basePath, environment string) string {
	dir := "."
	if basePath != "" {
		dir = filepath.Dir(basePath)
	}
	return filepath.Join(dir, fmt.Sprintf("config.%s.yaml", environment))
}

func loadFile(k *koanf.Koanf, path string, report *Report) {
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		report.add(path, nil, fmt.Sprintf("config file skipped: %v", err), nil)
		return
	}
	report.Files = append(report.Files, path)
}

// coerceAll converts every merged value to the type of its default. Values
// that cannot be converted are replaced by the default.
func coerceAll(k, defaultsK *koanf.Koanf, report *Report) {
	keys := defaultsK.Keys()
	sort.Strings(keys)

	for _, key := range keys {
		def := defaultsK.Get(key)
		raw := k.Get(key)
		if raw == nil {
			_ = k.Set(key, def)
			continue
		}

		value, err := coerce(def, raw)
		if err != nil {
			report.add(key, raw, err.Error(), def)
			value = def
		}
		_ = k.Set(key, value)
	}
}

var errWrongType = errors.New("wrong type")

// coerce converts raw to the dynamic type of def.
func coerce(def, raw interface{}) (interface{}, error) {
	switch def.(type) {
	case string:
		switch v := raw.(type) {
		case string:
			return v, nil
		case int, int64, float64, bool:
			return fmt.Sprint(v), nil
		}
		return nil, fmt.Errorf("%w: expected a string", errWrongType)

	case int:
		switch v := raw.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("%w: expected an integer, got %v", errWrongType, v)
			}
			return int(v), nil
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("%w: expected an integer, got %q", errWrongType, v)
			}
			return n, nil
		}
		return nil, fmt.Errorf("%w: expected an integer", errWrongType)

	case bool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := parseBool(v)
			if err != nil {
				return nil, err
			}
			return b, nil
		}
		return nil, fmt.Errorf("%w: expected a boolean", errWrongType)

	case time.Duration:
		switch v := raw.(type) {
		case time.Duration:
			return v, nil
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		case string:
			d, err := parseDuration(v)
			if err != nil {
				return nil, err
			}
			return d, nil
		}
		return nil, fmt.Errorf("%w: expected a duration", errWrongType)
	}

	return raw, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%w: expected a boolean, got %q", errWrongType, s)
}

// parseDuration accepts Go durations ("90s", "1h30m") and bare seconds ("90").
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: expected a duration, got %q", errWrongType, s)
	}
	return d, nil
}

// validate runs struct rules and semantic checks. Each failing key is reset
// to its default and the struct is unmarshalled again.
func validate(cfg *Config, k, defaultsK *koanf.Koanf, report *Report) {
	failed := map[string]bool{}

	if verr := validation.ValidateStruct(cfg); verr != nil {
		for _, fe := range verr.Errors() {
			if failed[fe.Key()] {
				continue
			}
			failed[fe.Key()] = true
			report.add(fe.Key(), fe.Value(), fe.Error(), defaultsK.Get(fe.Key()))
		}
	}

	for key, expr := range cfg.Schedules.expressions() {
		if failed[key] {
			continue
		}
		if !scheduler.ValidExpression(expr) {
			failed[key] = true
			report.add(key, expr, "invalid cron expression", defaultsK.Get(key))
		}
	}

	if len(failed) == 0 {
		return
	}

	for key := range failed {
		_ = k.Set(key, defaultsK.Get(key))
	}
	fresh := &Config{}
	if err := k.Unmarshal("", fresh); err != nil {
		report.add("config", nil, fmt.Sprintf("failed to unmarshal configuration: %v", err), nil)
		fresh = defaultConfig()
	}
	*cfg = *fresh
}

// expressions maps each schedule key to its cron expression.
func (s SchedulesConfig) expressions() map[string]string {
	return map[string]string{
		"schedules.snapshot_daily":   s.SnapshotDaily,
		"schedules.snapshot_weekly":  s.SnapshotWeekly,
		"schedules.snapshot_monthly": s.SnapshotMonthly,
		"schedules.replication":      s.Replication,
		"schedules.cloud_sync":       s.CloudSync,
	}
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored so that unrelated environment cannot
// pollute the configuration.
var envMappings = map[string]string{
	// Service
	"vault_service_name": "service.name",
	"snapvault_env":      "service.environment",
	"vault_timezone":     "service.timezone",

	// ZFS
	"vault_zfs_dataset": "zfs.dataset",
	"vault_zfs_binary":  "zfs.binary",

	// Schedules
	"vault_schedule_snapshot_daily":   "schedules.snapshot_daily",
	"vault_schedule_snapshot_weekly":  "schedules.snapshot_weekly",
	"vault_schedule_snapshot_monthly": "schedules.snapshot_monthly",
	"vault_schedule_replication":      "schedules.replication",
	"vault_schedule_cloud_sync":       "schedules.cloud_sync",
	"vault_misfire_grace":             "schedules.misfire_grace",
	"vault_state_dir":                 "schedules.state_dir",

	// Retention
	"vault_retention_daily":   "retention.daily",
	"vault_retention_weekly":  "retention.weekly",
	"vault_retention_monthly": "retention.monthly",

	// Replication
	"vault_replication_enabled":      "replication.enabled",
	"vault_replication_host":         "replication.host",
	"vault_replication_user":         "replication.user",
	"vault_replication_port":         "replication.port",
	"vault_replication_dataset":      "replication.dataset",
	"vault_replication_key_ref":      "replication.key_ref",
	"vault_replication_key_path":     "replication.key_path",
	"vault_replication_host_key":     "replication.host_key_checking",
	"vault_replication_raw":          "replication.raw",
	"vault_replication_intermediate": "replication.intermediate",
	"vault_replication_verify":       "replication.verify",

	// Cloud
	"vault_cloud_enabled":    "cloud.enabled",
	"vault_cloud_bucket":     "cloud.bucket",
	"vault_cloud_local_path": "cloud.local_path",
	"vault_cloud_remote":     "cloud.remote",
	"vault_cloud_transfers":  "cloud.transfers",
	"vault_cloud_checkers":   "cloud.checkers",

	// Timeouts
	"vault_timeout_list":         "timeouts.list",
	"vault_timeout_create":       "timeouts.create",
	"vault_timeout_destroy":      "timeouts.destroy",
	"vault_timeout_connectivity": "timeouts.connectivity",
	"vault_timeout_incremental":  "timeouts.incremental",
	"vault_timeout_full":         "timeouts.full",
	"vault_timeout_sync":         "timeouts.sync",

	// Alerting
	"vault_alerting_enabled":   "alerting.enabled",
	"vault_alert_on_success":   "alerting.on_success",
	"vault_alert_on_failure":   "alerting.on_failure",
	"vault_alert_webhook_ref":  "alerting.webhook_ref",
	"vault_alert_timeout":      "alerting.timeout",
	"vault_alert_nats_url":     "alerting.nats_url",
	"vault_alert_nats_subject": "alerting.nats_subject",

	// Secrets
	"vault_secrets_docker_dir": "secrets.docker_dir",
	"vault_secrets_local_dir":  "secrets.local_dir",
	"vault_secrets_env_prefix": "secrets.env_prefix",

	// Server
	"http_host":        "server.host",
	"http_port":        "server.port",
	"vault_rate_limit": "server.rate_limit",

	// Shutdown
	"vault_shutdown_grace": "shutdown.grace",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// For unmapped keys it returns "" so the variable is skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
