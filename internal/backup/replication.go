// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

/*
replication.go - Offsite Replication

Each run derives the replication state from scratch:

 1. List the local dataset. No managed snapshot fails with ErrNoLocalSnapshot.
 2. List the remote dataset. Transport failures fail with ErrRemoteUnreachable;
    a missing or empty dataset is a full send.
 3. Decide: full, incremental against the remote's newest snapshot, or none
    when the remote already holds the local newest.
 4. Ship through a single "zfs send | ssh zfs recv -F" pipe.
 5. Optionally re-list the remote to confirm it now holds the shipped snapshot.

The remote's newest snapshot must still exist locally under the same class
and label, and with the same guid when both sides report one. Otherwise the
run fails with ErrDivergedHistory and issues no transfer.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/snapvault/internal/command"
	"github.com/tomtom215/snapvault/internal/logging"
	"github.com/tomtom215/snapvault/internal/metrics"
	"github.com/tomtom215/snapvault/internal/snapshot"
)

// Mode is the kind of transfer a replication run performs.
type Mode string

const (
	// ModeFull sends a complete snapshot to an empty remote.
	ModeFull Mode = "full"

	// ModeIncremental sends the delta from the remote's newest snapshot.
	ModeIncremental Mode = "incremental"

	// ModeNone means the remote is already up to date.
	ModeNone Mode = "none"
)

// Decision is the replication plan for one run.
type Decision struct {
	Mode Mode

	// Target is the local snapshot to ship.
	Target snapshot.Ref

	// Base is the local snapshot matching the remote's newest one. It is nil
	// for a full send.
	Base *snapshot.Ref

	// Remote is the remote's newest snapshot, nil when the remote is empty.
	Remote *snapshot.Ref
}

// Decide computes the replication plan from an ordered local listing and the
// remote's newest snapshot.
func Decide(local []snapshot.Ref, remoteLatest *snapshot.Ref) (Decision, error) {
	if len(local) == 0 {
		return Decision{}, ErrNoLocalSnapshot
	}
	target := local[len(local)-1]

	if remoteLatest == nil {
		return Decision{Mode: ModeFull, Target: target}, nil
	}

	base := snapshot.Find(local, remoteLatest.Identity)
	if base == nil {
		return Decision{Remote: remoteLatest}, fmt.Errorf("%w: remote snapshot %s has no local counterpart",
			ErrDivergedHistory, remoteLatest.RawName)
	}
	if !base.SameContent(*remoteLatest) {
		return Decision{Remote: remoteLatest}, fmt.Errorf("%w: remote snapshot %s differs from local %s (guid %d != %d)",
			ErrDivergedHistory, remoteLatest.RawName, base.RawName, remoteLatest.GUID, base.GUID)
	}

	baseRef := *base
	if baseRef.RawName == target.RawName {
		return Decision{Mode: ModeNone, Target: target, Base: &baseRef, Remote: remoteLatest}, nil
	}
	return Decision{Mode: ModeIncremental, Target: target, Base: &baseRef, Remote: remoteLatest}, nil
}

// ReplicationConfig configures a Replicator.
type ReplicationConfig struct {
	// LocalDataset is the source dataset.
	LocalDataset string

	// RemoteDataset is the receiving dataset on the remote host.
	RemoteDataset string

	// Binary is the zfs executable on both hosts. Default: zfs
	Binary string

	// Raw sends encrypted datasets without decrypting them (zfs send -w).
	Raw bool

	// Intermediate includes snapshots between base and target (zfs send -I).
	Intermediate bool

	// Verify re-lists the remote after a transfer.
	Verify bool

	// FullTimeout bounds a full send. Default: 24h
	FullTimeout time.Duration

	// IncrementalTimeout bounds an incremental send. Default: 6h
	IncrementalTimeout time.Duration
}

// ReplicationResult describes one replication run.
type ReplicationResult struct {
	Decision Decision
	Remote   string
	Verified bool
}

// Detail summarizes the run for the job outcome.
func (r *ReplicationResult) Detail() string {
	d := r.Decision
	switch d.Mode {
	case ModeFull:
		return fmt.Sprintf("full send of %s to %s", d.Target.RawName, r.Remote)
	case ModeIncremental:
		return fmt.Sprintf("incremental send of %s (base %s) to %s", d.Target.RawName, d.Base.Identity.Suffix(), r.Remote)
	case ModeNone:
		return fmt.Sprintf("%s already holds %s", r.Remote, d.Target.Identity.Suffix())
	}
	return ""
}

// Replicator ships local snapshots to one remote dataset.
type Replicator struct {
	runner command.Runner
	local  *snapshot.Catalog
	remote *snapshot.Catalog
	cfg    ReplicationConfig
	logger zerolog.Logger
}

// NewReplicator creates a Replicator. The remote catalog's target is also
// used to run zfs recv.
func NewReplicator(runner command.Runner, local, remote *snapshot.Catalog, cfg ReplicationConfig) *Replicator {
	if cfg.Binary == "" {
		cfg.Binary = "zfs"
	}
	if cfg.FullTimeout <= 0 {
		cfg.FullTimeout = 24 * time.Hour
	}
	if cfg.IncrementalTimeout <= 0 {
		cfg.IncrementalTimeout = 6 * time.Hour
	}
	return &Replicator{
		runner: runner,
		local:  local,
		remote: remote,
		cfg:    cfg,
		logger: logging.With().
			Str("component", "replication").
			Str("remote", remote.Target().String()).
			Logger(),
	}
}

// Task adapts Replicate for a Reporter.
func (r *Replicator) Task() Task {
	return func(ctx context.Context) (string, error) {
		res, err := r.Replicate(ctx)
		if err != nil {
			return "", err
		}
		return res.Detail(), nil
	}
}

// Remote returns "host:dataset" for the replication target.
func (r *Replicator) Remote() string {
	return r.remote.Target().String() + ":" + r.cfg.RemoteDataset
}

// Replicate runs one replication cycle.
func (r *Replicator) Replicate(ctx context.Context) (*ReplicationResult, error) {
	local, err := r.local.ListAll(ctx, r.cfg.LocalDataset)
	if err != nil {
		return nil, fmt.Errorf("listing local snapshots: %w", err)
	}
	if len(local) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoLocalSnapshot, r.cfg.LocalDataset)
	}

	remoteLatest, err := r.remote.LatestAny(ctx, r.cfg.RemoteDataset)
	if err != nil {
		if command.IsTransportFailure(err) {
			return nil, fmt.Errorf("%w: %s: %w", ErrRemoteUnreachable, r.Remote(), err)
		}
		return nil, fmt.Errorf("listing remote snapshots: %w", err)
	}
	if remoteLatest == nil {
		r.logger.Info().Str("dataset", r.cfg.RemoteDataset).Msg("Remote has no snapshots, full send required")
	}

	decision, err := Decide(local, remoteLatest)
	if err != nil {
		return nil, err
	}

	res := &ReplicationResult{Decision: decision, Remote: r.Remote()}
	if decision.Mode == ModeNone {
		r.logger.Info().Str("snapshot", decision.Target.RawName).Msg("Remote is up to date")
		metrics.RecordReplication(string(ModeNone), true)
		return res, nil
	}

	if err := r.send(ctx, decision); err != nil {
		metrics.RecordReplication(string(decision.Mode), false)
		return nil, err
	}

	if r.cfg.Verify {
		verified, err := r.verify(ctx, decision.Target)
		if err != nil {
			metrics.RecordReplication(string(decision.Mode), false)
			return nil, err
		}
		res.Verified = verified
	}

	metrics.RecordReplication(string(decision.Mode), true)
	return res, nil
}

func (r *Replicator) send(ctx context.Context, d Decision) error {
	args := []string{"send"}
	if r.cfg.Raw {
		args = append(args, "-w")
	}
	timeout := r.cfg.FullTimeout
	if d.Mode == ModeIncremental {
		flag := "-i"
		if r.cfg.Intermediate {
			flag = "-I"
		}
		args = append(args, flag, d.Base.RawName)
		timeout = r.cfg.IncrementalTimeout
	}
	args = append(args, d.Target.RawName)

	producer := command.Command{Name: r.cfg.Binary, Args: args}
	consumer := r.remote.Target().Wrap(command.Command{
		Name: r.cfg.Binary,
		Args: []string{"recv", "-F", r.cfg.RemoteDataset},
	})

	logger := r.logger.With().
		Str("mode", string(d.Mode)).
		Str("snapshot", d.Target.RawName).
		Logger()
	if d.Base != nil {
		logger = logger.With().Str("base", d.Base.RawName).Logger()
	}

	logger.Info().Dur("timeout", timeout).Msg("Starting send")
	res, err := r.runner.Pipe(ctx, producer, consumer, timeout)
	if err != nil {
		return fmt.Errorf("%w: %s send of %s: %w", ErrTransferFailed, d.Mode, d.Target.RawName, err)
	}
	logger.Info().Dur("duration", res.Duration).Msg("Send completed")
	return nil
}

// verify reports whether the remote's newest snapshot is the one just sent.
// An unreachable remote is logged and not treated as a failure.
func (r *Replicator) verify(ctx context.Context, shipped snapshot.Ref) (bool, error) {
	latest, err := r.remote.LatestAny(ctx, r.cfg.RemoteDataset)
	if err != nil {
		if command.IsTransportFailure(err) {
			r.logger.Warn().Err(err).Msg("Could not verify remote after send")
			return false, nil
		}
		return false, err
	}
	if latest == nil || !latest.Identity.SamePoint(shipped.Identity) {
		got := "nothing"
		if latest != nil {
			got = latest.RawName
		}
		return false, fmt.Errorf("%w: remote holds %s after sending %s", ErrTransferFailed, got, shipped.RawName)
	}
	r.logger.Debug().Str("snapshot", latest.RawName).Msg("Remote verified")
	return true, nil
}
