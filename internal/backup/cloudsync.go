// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package backup

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/snapvault/internal/command"
	"github.com/tomtom215/snapvault/internal/logging"
)

// Secret names holding object storage credentials.
const (
	SecretKeyID          = "b2_key_id"
	SecretApplicationKey = "b2_application_key"
)

// SecretLookup resolves a secret by name.
type SecretLookup interface {
	Get(name string) (string, bool)
}

// CloudSyncConfig configures a CloudSync job.
type CloudSyncConfig struct {
	// LocalPath is the directory mirrored to the bucket.
	LocalPath string

	// Remote is the rclone remote name, e.g. "b2".
	Remote string

	// Bucket is the destination bucket.
	Bucket string

	// Binary is the rclone executable. Default: rclone
	Binary string

	// Transfers and Checkers are passed to rclone. Defaults: 4 and 8
	Transfers int
	Checkers  int

	// ConnectivityTimeout bounds the pre-flight check. Default: 30s
	ConnectivityTimeout time.Duration

	// SyncTimeout bounds the transfer. Default: 12h
	SyncTimeout time.Duration
}

// CloudSync mirrors a local directory to a cloud bucket.
type CloudSync struct {
	runner  command.Runner
	secrets SecretLookup
	cfg     CloudSyncConfig
	logger  zerolog.Logger
}

// NewCloudSync creates a CloudSync job. secrets may be nil when rclone is
// configured with its own credentials.
func NewCloudSync(runner command.Runner, secrets SecretLookup, cfg CloudSyncConfig) *CloudSync {
	if cfg.Binary == "" {
		cfg.Binary = "rclone"
	}
	if cfg.Transfers <= 0 {
		cfg.Transfers = 4
	}
	if cfg.Checkers <= 0 {
		cfg.Checkers = 8
	}
	if cfg.ConnectivityTimeout <= 0 {
		cfg.ConnectivityTimeout = 30 * time.Second
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = 12 * time.Hour
	}
	return &CloudSync{
		runner:  runner,
		secrets: secrets,
		cfg:     cfg,
		logger: logging.With().
			Str("component", "cloud_sync").
			Str("bucket", cfg.Bucket).
			Logger(),
	}
}

// Destination returns "<remote>:<bucket>".
func (c *CloudSync) Destination() string {
	return c.cfg.Remote + ":" + c.cfg.Bucket
}

// Task adapts Sync for a Reporter.
func (c *CloudSync) Task() Task {
	return c.Sync
}

// Sync checks connectivity, then mirrors the local path to the bucket.
// It returns a detail line for the job outcome.
func (c *CloudSync) Sync(ctx context.Context) (string, error) {
	info, err := os.Stat(c.cfg.LocalPath)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrLocalPathMissing, c.cfg.LocalPath)
	}

	env := c.credentials()

	_, err = c.runner.Run(ctx, command.Command{
		Name:    c.cfg.Binary,
		Args:    []string{"lsd", c.cfg.Remote + ":"},
		Env:     env,
		Timeout: c.cfg.ConnectivityTimeout,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrRemoteUnreachable, c.cfg.Remote, err)
	}

	size := c.localSize(ctx)
	c.logger.Info().Str("path", c.cfg.LocalPath).Str("size", size).Msg("Starting cloud sync")

	res, err := c.runner.Run(ctx, command.Command{
		Name: c.cfg.Binary,
		Args: []string{
			"sync", c.cfg.LocalPath, c.Destination(),
			"--transfers", strconv.Itoa(c.cfg.Transfers),
			"--checkers", strconv.Itoa(c.cfg.Checkers),
			"--stats-one-line",
			"-v",
		},
		Env:     env,
		Timeout: c.cfg.SyncTimeout,
	})
	if err != nil {
		return "", fmt.Errorf("%w: sync to %s: %w", ErrTransferFailed, c.Destination(), err)
	}

	detail := fmt.Sprintf("synced %s (%s) to %s", c.cfg.LocalPath, size, c.Destination())
	if stats := lastStatsLine(res.Stderr); stats != "" {
		detail += ": " + stats
	}
	return detail, nil
}

// credentials returns rclone config overrides for the remote. Values never
// appear on the command line.
func (c *CloudSync) credentials() []string {
	if c.secrets == nil {
		return nil
	}
	prefix := "RCLONE_CONFIG_" + strings.ToUpper(strings.ReplaceAll(c.cfg.Remote, "-", "_"))

	var env []string
	if v, ok := c.secrets.Get(SecretKeyID); ok {
		env = append(env, prefix+"_ACCOUNT="+v)
	}
	if v, ok := c.secrets.Get(SecretApplicationKey); ok {
		env = append(env, prefix+"_KEY="+v)
	}
	return env
}

func (c *CloudSync) localSize(ctx context.Context) string {
	res, err := c.runner.Run(ctx, command.Command{
		Name:    "du",
		Args:    []string{"-sh", c.cfg.LocalPath},
		Timeout: c.cfg.ConnectivityTimeout,
	})
	if err != nil {
		c.logger.Debug().Err(err).Msg("Could not measure local path")
		return "unknown size"
	}
	fields := strings.Fields(res.Stdout)
	if len(fields) == 0 {
		return "unknown size"
	}
	return fields[0]
}

// lastStatsLine returns the last non-empty line rclone wrote to stderr.
func lastStatsLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return logging.SanitizeValue(line)
		}
	}
	return ""
}
