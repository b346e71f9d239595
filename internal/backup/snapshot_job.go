// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

/*
snapshot_job.go - Snapshot Creation and Pruning

A snapshot run moves through a small state machine:

	Idle -> Creating -> Pruning -> Done
	Idle -> Creating -> Failed

Creating only hands over to Pruning once a fresh listing shows the new
snapshot. A create that cannot be confirmed fails the run and nothing is
pruned. A snapshot that already exists under today's name counts as created,
so a repeated run on the same day only prunes.

Pruning is best effort: each deletion failure is logged and counted, and the
remaining deletions still run.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/snapvault/internal/command"
	"github.com/tomtom215/snapvault/internal/logging"
	"github.com/tomtom215/snapvault/internal/metrics"
	"github.com/tomtom215/snapvault/internal/retention"
	"github.com/tomtom215/snapvault/internal/snapshot"
)

// State is a snapshot run state.
type State string

const (
	// StateIdle is the state before a run starts.
	StateIdle State = "idle"

	// StateCreating covers the existence check, the create and its confirmation.
	StateCreating State = "creating"

	// StatePruning covers retention deletions.
	StatePruning State = "pruning"

	// StateDone is the terminal success state.
	StateDone State = "done"

	// StateFailed is the terminal failure state. Nothing was pruned.
	StateFailed State = "failed"
)

// SnapshotJobConfig configures a SnapshotJob.
type SnapshotJobConfig struct {
	// Dataset is the local dataset to snapshot.
	Dataset string

	// Binary is the zfs executable. Default: zfs
	Binary string

	// Keep maps each class to its retention count. A missing class keeps 0.
	Keep map[snapshot.Class]int

	// Location is the timezone labels are computed in. Default: UTC
	Location *time.Location

	// CreateTimeout bounds the create command. Default: 5m
	CreateTimeout time.Duration

	// DestroyTimeout bounds each destroy command. Default: 5m
	DestroyTimeout time.Duration
}

// SnapshotResult describes one snapshot run.
type SnapshotResult struct {
	Identity    snapshot.Identity
	State       State
	Created     bool
	Pruned      []string
	PruneFailed []string
	Collisions  []string
}

// Detail summarizes the run for the job outcome.
func (r *SnapshotResult) Detail() string {
	name := r.Identity.Name()
	prune := fmt.Sprintf("pruned %d (%d failed)", len(r.Pruned), len(r.PruneFailed))
	switch {
	case r.State == StateFailed:
		return "failed to create " + name
	case r.Created:
		return fmt.Sprintf("created %s, %s", name, prune)
	default:
		return fmt.Sprintf("%s already present, %s", name, prune)
	}
}

// SnapshotJob creates and prunes snapshots of one local dataset.
type SnapshotJob struct {
	runner  command.Runner
	catalog *snapshot.Catalog
	cfg     SnapshotJobConfig
	now     func() time.Time
	logger  zerolog.Logger
}

// NewSnapshotJob creates a SnapshotJob. The catalog must list the local host.
func NewSnapshotJob(runner command.Runner, catalog *snapshot.Catalog, cfg SnapshotJobConfig) *SnapshotJob {
	if cfg.Binary == "" {
		cfg.Binary = "zfs"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.CreateTimeout <= 0 {
		cfg.CreateTimeout = 5 * time.Minute
	}
	if cfg.DestroyTimeout <= 0 {
		cfg.DestroyTimeout = 5 * time.Minute
	}
	return &SnapshotJob{
		runner:  runner,
		catalog: catalog,
		cfg:     cfg,
		now:     time.Now,
		logger: logging.With().
			Str("component", "snapshot_job").
			Str("dataset", cfg.Dataset).
			Logger(),
	}
}

// Task adapts Run for a Reporter.
func (j *SnapshotJob) Task(class snapshot.Class) Task {
	return func(ctx context.Context) (string, error) {
		res, err := j.Run(ctx, class)
		if res == nil {
			return "", err
		}
		return res.Detail(), err
	}
}

// Run creates today's snapshot of class and applies the class retention.
// The returned result is never nil.
func (j *SnapshotJob) Run(ctx context.Context, class snapshot.Class) (*SnapshotResult, error) {
	res := &SnapshotResult{State: StateIdle}
	logger := j.logger.With().Str("class", string(class)).Logger()

	id, err := snapshot.NewIdentity(j.cfg.Dataset, class, snapshot.LabelFor(j.now().In(j.cfg.Location)))
	if err != nil {
		res.State = StateFailed
		return res, fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}
	res.Identity = id

	j.transition(&logger, res, StateCreating)
	listing, err := j.create(ctx, &logger, res)
	if err != nil {
		j.transition(&logger, res, StateFailed)
		return res, err
	}

	j.transition(&logger, res, StatePruning)
	j.prune(ctx, &logger, res, listing)

	j.transition(&logger, res, StateDone)
	return res, nil
}

// create makes sure the snapshot exists and returns a listing that contains it.
func (j *SnapshotJob) create(ctx context.Context, logger *zerolog.Logger, res *SnapshotResult) ([]snapshot.Ref, error) {
	id := res.Identity

	existing, err := j.catalog.List(ctx, id.Dataset, id.Class)
	if err != nil {
		return nil, fmt.Errorf("%w: checking for %s: %w", ErrCreateFailed, id.Name(), err)
	}
	if containsName(existing, id.Name()) {
		logger.Info().Str("snapshot", id.Name()).Msg("Snapshot already exists, skipping create")
		return existing, nil
	}

	_, err = j.runner.Run(ctx, command.Command{
		Name:    j.cfg.Binary,
		Args:    []string{"snapshot", id.Name()},
		Timeout: j.cfg.CreateTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCreateFailed, id.Name(), err)
	}

	confirmed, err := j.catalog.List(ctx, id.Dataset, id.Class)
	if err != nil {
		return nil, fmt.Errorf("%w: confirming %s: %w", ErrCreateFailed, id.Name(), err)
	}
	if !containsName(confirmed, id.Name()) {
		return nil, fmt.Errorf("%w: %s not listed after create", ErrCreateFailed, id.Name())
	}

	res.Created = true
	metrics.RecordSnapshotCreated(string(id.Class))
	logger.Info().Str("snapshot", id.Name()).Msg("Snapshot created")
	return confirmed, nil
}

func (j *SnapshotJob) prune(ctx context.Context, logger *zerolog.Logger, res *SnapshotResult, listing []snapshot.Ref) {
	policy := retention.Policy{Class: res.Identity.Class, Keep: j.cfg.Keep[res.Identity.Class]}
	plan := policy.Apply(listing)

	res.Collisions = plan.Collisions
	for _, name := range plan.Collisions {
		logger.Warn().Str("snapshot", name).Msg("Multiple snapshots share one label")
	}

	for _, ref := range plan.Delete {
		_, err := j.runner.Run(ctx, command.Command{
			Name:    j.cfg.Binary,
			Args:    []string{"destroy", ref.RawName},
			Timeout: j.cfg.DestroyTimeout,
		})
		metrics.RecordSnapshotPruned(string(ref.Identity.Class), err == nil)
		if err != nil {
			res.PruneFailed = append(res.PruneFailed, ref.RawName)
			logger.Warn().
				Err(errors.Join(ErrPruneFailed, err)).
				Str("snapshot", ref.RawName).
				Msg("Failed to destroy snapshot, continuing")
			continue
		}
		res.Pruned = append(res.Pruned, ref.RawName)
		logger.Info().Str("snapshot", ref.RawName).Msg("Snapshot destroyed")
	}

	logger.Info().
		Int("keep", policy.Keep).
		Int("retained", len(plan.Retain)).
		Int("pruned", len(res.Pruned)).
		Int("failed", len(res.PruneFailed)).
		Msg("Retention applied")
}

func (j *SnapshotJob) transition(logger *zerolog.Logger, res *SnapshotResult, next State) {
	logger.Debug().Str("from", string(res.State)).Str("to", string(next)).Msg("Snapshot job state change")
	res.State = next
}

func containsName(refs []snapshot.Ref, name string) bool {
	for _, ref := range refs {
		if ref.RawName == name {
			return true
		}
	}
	return false
}
