// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config holds all Snapvault configuration.
type Config struct {
	Service     ServiceConfig     `koanf:"service"`
	ZFS         ZFSConfig         `koanf:"zfs"`
	Schedules   SchedulesConfig   `koanf:"schedules"`
	Retention   RetentionConfig   `koanf:"retention"`
	Replication ReplicationConfig `koanf:"replication"`
	Cloud       CloudConfig       `koanf:"cloud"`
	Timeouts    TimeoutsConfig    `koanf:"timeouts"`
	Alerting    AlertingConfig    `koanf:"alerting"`
	Secrets     SecretsConfig     `koanf:"secrets"`
	Server      ServerConfig      `koanf:"server"`
	Shutdown    ShutdownConfig    `koanf:"shutdown"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServiceConfig identifies the deployment.
type ServiceConfig struct {
	Name        string `koanf:"name" validate:"required"`
	Environment string `koanf:"environment" validate:"required,alphanum"`
	Timezone    string `koanf:"timezone" validate:"required,timezone"`
}

// ZFSConfig names the source dataset.
type ZFSConfig struct {
	Dataset string `koanf:"dataset" validate:"required,excludesall=@ "`
	Binary  string `koanf:"binary" validate:"required"`
}

// SchedulesConfig holds one cron expression per job plus scheduler tuning.
type SchedulesConfig struct {
	SnapshotDaily   string        `koanf:"snapshot_daily" validate:"required"`
	SnapshotWeekly  string        `koanf:"snapshot_weekly" validate:"required"`
	SnapshotMonthly string        `koanf:"snapshot_monthly" validate:"required"`
	Replication     string        `koanf:"replication" validate:"required"`
	CloudSync       string        `koanf:"cloud_sync" validate:"required"`
	MisfireGrace    time.Duration `koanf:"misfire_grace" validate:"gt=0"`

	// StateDir persists next fire times across restarts. Empty keeps them in memory.
	StateDir string `koanf:"state_dir"`
}

// RetentionConfig is the keep-count per snapshot class.
type RetentionConfig struct {
	Daily   int `koanf:"daily" validate:"gte=0,lte=3650"`
	Weekly  int `koanf:"weekly" validate:"gte=0,lte=520"`
	Monthly int `koanf:"monthly" validate:"gte=0,lte=1200"`
}

// ReplicationConfig describes the offsite mirror.
type ReplicationConfig struct {
	Enabled         bool   `koanf:"enabled"`
	Host            string `koanf:"host" validate:"required,hostname_rfc1123|ip"`
	User            string `koanf:"user" validate:"required"`
	Port            int    `koanf:"port" validate:"gte=1,lte=65535"`
	Dataset         string `koanf:"dataset" validate:"required,excludesall=@ "`
	KeyRef          string `koanf:"key_ref"`
	KeyPath         string `koanf:"key_path"`
	HostKeyChecking string `koanf:"host_key_checking" validate:"oneof=yes no accept-new"`
	Raw             bool   `koanf:"raw"`
	Intermediate    bool   `koanf:"intermediate"`
	Verify          bool   `koanf:"verify"`
}

// CloudConfig describes the object-storage mirror.
type CloudConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Bucket    string `koanf:"bucket" validate:"required"`
	LocalPath string `koanf:"local_path" validate:"required"`
	Remote    string `koanf:"remote" validate:"required,alphanum"`
	Transfers int    `koanf:"transfers" validate:"gte=1,lte=64"`
	Checkers  int    `koanf:"checkers" validate:"gte=1,lte=128"`
}

// TimeoutsConfig bounds each external command.
type TimeoutsConfig struct {
	List         time.Duration `koanf:"list" validate:"gt=0"`
	Create       time.Duration `koanf:"create" validate:"gt=0"`
	Destroy      time.Duration `koanf:"destroy" validate:"gt=0"`
	Connectivity time.Duration `koanf:"connectivity" validate:"gt=0"`
	Incremental  time.Duration `koanf:"incremental" validate:"gt=0"`
	Full         time.Duration `koanf:"full" validate:"gt=0"`
	Sync         time.Duration `koanf:"sync" validate:"gt=0"`
}

// AlertingConfig controls outcome notifications.
type AlertingConfig struct {
	Enabled     bool          `koanf:"enabled"`
	OnSuccess   bool          `koanf:"on_success"`
	OnFailure   bool          `koanf:"on_failure"`
	WebhookRef  string        `koanf:"webhook_ref"`
	Timeout     time.Duration `koanf:"timeout" validate:"gt=0"`
	NATSURL     string        `koanf:"nats_url" validate:"omitempty,url"`
	NATSSubject string        `koanf:"nats_subject" validate:"required"`
}

// SecretsConfig locates credentials.
type SecretsConfig struct {
	DockerDir string `koanf:"docker_dir"`
	LocalDir  string `koanf:"local_dir"`
	EnvPrefix string `koanf:"env_prefix"`
}

// ServerConfig configures the status surface.
type ServerConfig struct {
	Host      string `koanf:"host" validate:"required,ip|hostname_rfc1123"`
	Port      int    `koanf:"port" validate:"gte=1,lte=65535"`
	RateLimit int    `koanf:"rate_limit" validate:"gte=1"`
}

// ShutdownConfig bounds graceful shutdown.
type ShutdownConfig struct {
	Grace time.Duration `koanf:"grace" validate:"gt=0"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Location loads the service timezone. Load has already verified it, so the
// UTC fallback only applies to hand-built configs.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Service.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Addr returns the status server listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// ReplicationTarget returns "host:dataset" for status output.
func (c *Config) ReplicationTarget() string {
	return fmt.Sprintf("%s:%s", c.Replication.Host, c.Replication.Dataset)
}

// defaultConfig returns the built-in defaults. Every default must pass validation.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "snapvault",
			Environment: "production",
			Timezone:    "America/Los_Angeles",
		},
		ZFS: ZFSConfig{
			Dataset: "syn/archives",
			Binary:  "zfs",
		},
		Schedules: SchedulesConfig{
			SnapshotDaily:   "0 3 * * *",
			SnapshotWeekly:  "0 3 * * 0",
			SnapshotMonthly: "0 3 1 * *",
			Replication:     "0 4 * * *",
			CloudSync:       "0 5 * * 0",
			MisfireGrace:    time.Hour,
			StateDir:        "",
		},
		Retention: RetentionConfig{
			Daily:   7,
			Weekly:  4,
			Monthly: 12,
		},
		Replication: ReplicationConfig{
			Enabled:         true,
			Host:            "10.20.30.253",
			User:            "root",
			Port:            22,
			Dataset:         "backup/ash-vault",
			KeyRef:          "replication_ssh_key",
			KeyPath:         "/root/.ssh/id_ed25519_lofn",
			HostKeyChecking: "accept-new",
			Raw:             true,
			Intermediate:    false,
			Verify:          true,
		},
		Cloud: CloudConfig{
			Enabled:   true,
			Bucket:    "ash-vault-backup-alphabetcartel",
			LocalPath: "/mnt/archives/minio-data",
			Remote:    "b2",
			Transfers: 4,
			Checkers:  8,
		},
		Timeouts: TimeoutsConfig{
			List:         time.Minute,
			Create:       5 * time.Minute,
			Destroy:      5 * time.Minute,
			Connectivity: time.Minute,
			Incremental:  time.Hour,
			Full:         2 * time.Hour,
			Sync:         2 * time.Hour,
		},
		Alerting: AlertingConfig{
			Enabled:     true,
			OnSuccess:   false,
			OnFailure:   true,
			WebhookRef:  "discord_alert_token",
			Timeout:     10 * time.Second,
			NATSURL:     "",
			NATSSubject: "snapvault.job.outcome",
		},
		Secrets: SecretsConfig{
			DockerDir: "/run/secrets",
			LocalDir:  "./secrets",
			EnvPrefix: "VAULT_SECRET_",
		},
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      30886,
			RateLimit: 120,
		},
		Shutdown: ShutdownConfig{
			Grace: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
