// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package backup

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/snapvault/internal/command"
	"github.com/tomtom215/snapvault/internal/snapshot"
)

func newTestReplicator(z *fakeZFS, cfg ReplicationConfig) *Replicator {
	cfg.LocalDataset = localDataset
	cfg.RemoteDataset = remoteDataset
	local := snapshot.NewCatalog(z.runner, command.Local{}, snapshot.CatalogConfig{})
	remote := snapshot.NewCatalog(z.runner, remoteHost, snapshot.CatalogConfig{})
	return NewReplicator(z.runner, local, remote, cfg)
}

func TestReplicate_FullSendToEmptyRemote(t *testing.T) {
	t.Parallel()

	z := newFakeZFS()
	z.remoteMissing = true
	z.addLocal(snapshot.ClassDaily, "2026-01-08", "2026-01-09")
	r := newTestReplicator(z, ReplicationConfig{FullTimeout: 20 * time.Hour})

	res, err := r.Replicate(context.Background())
	if err != nil {
		t.Fatalf("Replicate() error = %v", err)
	}
	if res.Decision.Mode != ModeFull {
		t.Fatalf("Mode = %s, want full", res.Decision.Mode)
	}

	pipes := z.runner.Pipes()
	if len(pipes) != 1 {
		t.Fatalf("issued %d transfers, want 1", len(pipes))
	}
	if !strings.HasPrefix(pipes[0].Line, "zfs send syn/archives@daily-2026-01-09 | ssh ") {
		t.Errorf("transfer = %q", pipes[0].Line)
	}
	if !strings.Contains(pipes[0].Line, "root@vault.example 'zfs recv -F backup/vault'") {
		t.Errorf("receive side = %q", pipes[0].Line)
	}
	if pipes[0].Timeout != 20*time.Hour {
		t.Errorf("full send timeout = %v", pipes[0].Timeout)
	}
	if res.Detail() != "full send of syn/archives@daily-2026-01-09 to root@vault.example:backup/vault" {
		t.Errorf("Detail() = %q", res.Detail())
	}
}

func TestReplicate_IncrementalAgainstRemoteLatest(t *testing.T) {
	t.Parallel()

	z := newFakeZFS()
	z.addLocal(snapshot.ClassDaily, "2026-01-08", "2026-01-09")
	z.addRemote(snapshot.ClassDaily, "2026-01-08")
	r := newTestReplicator(z, ReplicationConfig{IncrementalTimeout: 90 * time.Minute})

	res, err := r.Replicate(context.Background())
	if err != nil {
		t.Fatalf("Replicate() error = %v", err)
	}
	d := res.Decision
	if d.Mode != ModeIncremental {
		t.Fatalf("Mode = %s, want incremental", d.Mode)
	}
	if d.Base.Identity.Label != "2026-01-08" || d.Target.Identity.Label != "2026-01-09" {
		t.Errorf("base %s target %s", d.Base.RawName, d.Target.RawName)
	}

	pipes := z.runner.Pipes()
	if len(pipes) != 1 {
		t.Fatalf("issued %d transfers, want 1", len(pipes))
	}
	if !strings.HasPrefix(pipes[0].Line, "zfs send -i syn/archives@daily-2026-01-08 syn/archives@daily-2026-01-09 | ") {
		t.Errorf("transfer = %q", pipes[0].Line)
	}
	if pipes[0].Timeout != 90*time.Minute {
		t.Errorf("incremental timeout = %v", pipes[0].Timeout)
	}
}

func TestReplicate_DivergedHistoryIssuesNoTransfer(t *testing.T) {
	t.Parallel()

	z := newFakeZFS()
	z.addLocal(snapshot.ClassDaily, "2026-01-07", "2026-01-08", "2026-01-09")
	z.addRemote(snapshot.ClassDaily, "2026-01-03")
	r := newTestReplicator(z, ReplicationConfig{})

	_, err := r.Replicate(context.Background())
	if !errors.Is(err, ErrDivergedHistory) {
		t.Fatalf("Replicate() error = %v, want ErrDivergedHistory", err)
	}
	if n := len(z.runner.Pipes()); n != 0 {
		t.Errorf("issued %d transfers on diverged history", n)
	}
	if strings.Contains(err.Error(), "full") {
		t.Errorf("diverged history must not mention a full send fallback: %v", err)
	}
}

func TestReplicate_GUIDMismatchIsDivergence(t *testing.T) {
	t.Parallel()

	z := newFakeZFS()
	z.addLocal(snapshot.ClassDaily, "2026-01-08", "2026-01-09")
	z.addRemote(snapshot.ClassDaily, "2026-01-08")
	z.guid[remoteDataset+"@daily-2026-01-08"] = 1

	_, err := newTestReplicator(z, ReplicationConfig{}).Replicate(context.Background())
	if !errors.Is(err, ErrDivergedHistory) {
		t.Fatalf("Replicate() error = %v, want ErrDivergedHistory", err)
	}
	if len(z.runner.Pipes()) != 0 {
		t.Error("transfer issued against a base with different content")
	}
}

func TestReplicate_UpToDateIsNoOp(t *testing.T) {
	t.Parallel()

	z := newFakeZFS()
	z.addLocal(snapshot.ClassDaily, "2026-01-08", "2026-01-09")
	z.addRemote(snapshot.ClassDaily, "2026-01-09")

	res, err := newTestReplicator(z, ReplicationConfig{}).Replicate(context.Background())
	if err != nil {
		t.Fatalf("Replicate() error = %v", err)
	}
	if res.Decision.Mode != ModeNone {
		t.Errorf("Mode = %s, want none", res.Decision.Mode)
	}
	if len(z.runner.Pipes()) != 0 {
		t.Error("transfer issued to an up-to-date remote")
	}
}

func TestReplicate_NoLocalSnapshotSkipsRemote(t *testing.T) {
	t.Parallel()

	z := newFakeZFS()
	_, err := newTestReplicator(z, ReplicationConfig{}).Replicate(context.Background())
	if !errors.Is(err, ErrNoLocalSnapshot) {
		t.Fatalf("Replicate() error = %v, want ErrNoLocalSnapshot", err)
	}
	if calls := z.runner.CallsMatching(remoteDataset); len(calls) != 0 {
		t.Errorf("contacted the remote %d times with nothing to send", len(calls))
	}
}

func TestReplicate_UnreachableRemote(t *testing.T) {
	t.Parallel()

	z := newFakeZFS()
	z.remoteDown = true
	z.addLocal(snapshot.ClassDaily, "2026-01-09")

	_, err := newTestReplicator(z, ReplicationConfig{}).Replicate(context.Background())
	if !errors.Is(err, ErrRemoteUnreachable) {
		t.Fatalf("Replicate() error = %v, want ErrRemoteUnreachable", err)
	}
	if len(z.runner.Pipes()) != 0 {
		t.Error("unreachable remote must not trigger a full send")
	}
}

func TestReplicate_TransferFailure(t *testing.T) {
	t.Parallel()

	z := newFakeZFS()
	z.addLocal(snapshot.ClassDaily, "2026-01-08", "2026-01-09")
	z.addRemote(snapshot.ClassDaily, "2026-01-08")
	z.failTransfer = true

	_, err := newTestReplicator(z, ReplicationConfig{}).Replicate(context.Background())
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("Replicate() error = %v, want ErrTransferFailed", err)
	}
	if got := z.remoteNames(); len(got) != 1 {
		t.Errorf("remote changed after a failed transfer: %v", got)
	}
}

func TestReplicate_Verify(t *testing.T) {
	t.Parallel()

	z := newFakeZFS()
	z.addLocal(snapshot.ClassWeekly, "2026-01-04")
	z.addLocal(snapshot.ClassDaily, "2026-01-09")
	z.addRemote(snapshot.ClassWeekly, "2026-01-04")

	res, err := newTestReplicator(z, ReplicationConfig{Verify: true}).Replicate(context.Background())
	if err != nil {
		t.Fatalf("Replicate() error = %v", err)
	}
	if !res.Verified {
		t.Error("Verified = false after a successful send")
	}
	if res.Decision.Base.Identity.Class != snapshot.ClassWeekly {
		t.Errorf("replication should be class-agnostic, base = %s", res.Decision.Base.RawName)
	}
}

func TestReplicate_VerifyDetectsMissingSnapshot(t *testing.T) {
	t.Parallel()

	z := newFakeZFS()
	z.addLocal(snapshot.ClassDaily, "2026-01-08", "2026-01-09")
	z.addRemote(snapshot.ClassDaily, "2026-01-08")
	z.transferIgnored = true

	_, err := newTestReplicator(z, ReplicationConfig{Verify: true}).Replicate(context.Background())
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("Replicate() error = %v, want ErrTransferFailed", err)
	}
}

func TestReplicate_RemoteListingFailureIsNotEmpty(t *testing.T) {
	t.Parallel()

	z := newFakeZFS()
	z.remoteDenied = true
	z.addLocal(snapshot.ClassDaily, "2026-01-09")

	_, err := newTestReplicator(z, ReplicationConfig{}).Replicate(context.Background())
	if !errors.Is(err, snapshot.ErrEnumerationFailed) {
		t.Fatalf("Replicate() error = %v, want ErrEnumerationFailed", err)
	}
	if errors.Is(err, ErrRemoteUnreachable) {
		t.Errorf("reachable remote reported as unreachable: %v", err)
	}
	if len(z.runner.Pipes()) != 0 {
		t.Error("a failed remote listing must not trigger a full send")
	}
}

func TestReplicate_TransferTimeout(t *testing.T) {
	t.Parallel()

	z := newFakeZFS()
	z.addLocal(snapshot.ClassDaily, "2026-01-08", "2026-01-09")
	z.addRemote(snapshot.ClassDaily, "2026-01-08")
	z.timeoutTransfer = true

	_, err := newTestReplicator(z, ReplicationConfig{}).Replicate(context.Background())
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("Replicate() error = %v, want ErrTransferFailed", err)
	}
	if !errors.Is(err, command.ErrTimeout) {
		t.Errorf("Replicate() error = %v, want it to wrap ErrTimeout", err)
	}
	if got := z.remoteNames(); len(got) != 1 {
		t.Errorf("remote changed after a timed out transfer: %v", got)
	}
}

func TestReplicate_VerifyListingFailureFailsRun(t *testing.T) {
	t.Parallel()

	z := newFakeZFS()
	z.addLocal(snapshot.ClassDaily, "2026-01-08", "2026-01-09")
	z.addRemote(snapshot.ClassDaily, "2026-01-08")
	z.denyAfterRecv = true

	_, err := newTestReplicator(z, ReplicationConfig{Verify: true}).Replicate(context.Background())
	if !errors.Is(err, snapshot.ErrEnumerationFailed) {
		t.Fatalf("Replicate() error = %v, want ErrEnumerationFailed", err)
	}
}

func TestReplicate_VerifyToleratesUnreachableRemote(t *testing.T) {
	t.Parallel()

	z := newFakeZFS()
	z.addLocal(snapshot.ClassDaily, "2026-01-08", "2026-01-09")
	z.addRemote(snapshot.ClassDaily, "2026-01-08")
	z.downAfterRecv = true

	res, err := newTestReplicator(z, ReplicationConfig{Verify: true}).Replicate(context.Background())
	if err != nil {
		t.Fatalf("Replicate() error = %v", err)
	}
	if res.Verified {
		t.Error("Verified = true with an unreachable remote")
	}
}

func TestReplicate_SendFlags(t *testing.T) {
	t.Parallel()

	z := newFakeZFS()
	z.addLocal(snapshot.ClassDaily, "2026-01-07", "2026-01-08", "2026-01-09")
	z.addRemote(snapshot.ClassDaily, "2026-01-07")

	_, err := newTestReplicator(z, ReplicationConfig{Raw: true, Intermediate: true}).Replicate(context.Background())
	if err != nil {
		t.Fatalf("Replicate() error = %v", err)
	}
	pipes := z.runner.Pipes()
	if len(pipes) != 1 || !strings.HasPrefix(pipes[0].Line, "zfs send -w -I syn/archives@daily-2026-01-07 syn/archives@daily-2026-01-09") {
		t.Errorf("transfer = %+v", pipes)
	}
}

func TestDecide(t *testing.T) {
	t.Parallel()

	mk := func(class snapshot.Class, label string, guid uint64) snapshot.Ref {
		id := snapshot.Identity{Dataset: localDataset, Class: class, Label: label}
		return snapshot.Ref{Identity: id, RawName: id.Name(), GUID: guid}
	}
	remote := func(class snapshot.Class, label string, guid uint64) *snapshot.Ref {
		ref := mk(class, label, guid)
		ref.Identity.Dataset = remoteDataset
		ref.RawName = ref.Identity.Name()
		return &ref
	}
	local := []snapshot.Ref{
		mk(snapshot.ClassDaily, "2026-01-07", 7),
		mk(snapshot.ClassDaily, "2026-01-08", 8),
		mk(snapshot.ClassDaily, "2026-01-09", 9),
	}

	tests := []struct {
		name     string
		local    []snapshot.Ref
		remote   *snapshot.Ref
		wantMode Mode
		wantBase string
		wantErr  error
	}{
		{name: "empty remote", local: local, wantMode: ModeFull},
		{name: "remote behind", local: local, remote: remote(snapshot.ClassDaily, "2026-01-07", 7), wantMode: ModeIncremental, wantBase: "2026-01-07"},
		{name: "remote current", local: local, remote: remote(snapshot.ClassDaily, "2026-01-09", 9), wantMode: ModeNone, wantBase: "2026-01-09"},
		{name: "remote without guid", local: local, remote: remote(snapshot.ClassDaily, "2026-01-08", 0), wantMode: ModeIncremental, wantBase: "2026-01-08"},
		{name: "base pruned", local: local, remote: remote(snapshot.ClassDaily, "2026-01-03", 3), wantErr: ErrDivergedHistory},
		{name: "class differs", local: local, remote: remote(snapshot.ClassWeekly, "2026-01-08", 8), wantErr: ErrDivergedHistory},
		{name: "guid differs", local: local, remote: remote(snapshot.ClassDaily, "2026-01-08", 80), wantErr: ErrDivergedHistory},
		{name: "no local", remote: remote(snapshot.ClassDaily, "2026-01-08", 8), wantErr: ErrNoLocalSnapshot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			// Repeated calls must agree.
			for i := 0; i < 3; i++ {
				d, err := Decide(tt.local, tt.remote)
				if tt.wantErr != nil {
					if !errors.Is(err, tt.wantErr) {
						t.Fatalf("Decide() error = %v, want %v", err, tt.wantErr)
					}
					continue
				}
				if err != nil {
					t.Fatalf("Decide() error = %v", err)
				}
				if d.Mode != tt.wantMode {
					t.Fatalf("Mode = %s, want %s", d.Mode, tt.wantMode)
				}
				if d.Target.Identity.Label != "2026-01-09" {
					t.Errorf("Target = %s", d.Target.RawName)
				}
				if tt.wantBase == "" && d.Base != nil {
					t.Errorf("Base = %s, want none", d.Base.RawName)
				}
				if tt.wantBase != "" && (d.Base == nil || d.Base.Identity.Label != tt.wantBase) {
					t.Errorf("Base = %v, want %s", d.Base, tt.wantBase)
				}
			}
		})
	}
}
