// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package backup

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/snapvault/internal/command"
	"github.com/tomtom215/snapvault/internal/snapshot"
)

const (
	localDataset  = "syn/archives"
	remoteDataset = "backup/vault"
)

var remoteHost = command.SSH{Host: "vault.example", User: "root"}

// fakeZFS simulates a local and a remote pool on top of a FakeRunner.
type fakeZFS struct {
	mu     sync.Mutex
	runner *command.FakeRunner

	local  []string
	remote []string
	txg    map[string]uint64
	guid   map[string]uint64
	next   uint64

	remoteDown      bool
	remoteMissing   bool
	remoteDenied    bool
	denyAfterRecv   bool
	downAfterRecv   bool
	createIgnored   bool
	failCreate      bool
	failLocalList   bool
	failDestroy     map[string]bool
	failTransfer    bool
	timeoutTransfer bool
	transferIgnored bool
}

func newFakeZFS() *fakeZFS {
	z := &fakeZFS{
		runner:      command.NewFakeRunner(),
		txg:         make(map[string]uint64),
		guid:        make(map[string]uint64),
		next:        100,
		failDestroy: make(map[string]bool),
	}

	z.runner.OnFunc("zfs snapshot", z.handleSnapshot)
	z.runner.OnFunc("zfs destroy", z.handleDestroy)
	z.runner.OnFunc("zfs recv", z.handleRecv)
	z.runner.OnFunc("-d 1 "+localDataset, z.handleLocalList)
	z.runner.OnFunc("-d 1 "+remoteDataset, z.handleRemoteList)
	return z
}

// addLocal creates local snapshots, oldest first.
func (z *fakeZFS) addLocal(class snapshot.Class, labels ...string) {
	z.mu.Lock()
	defer z.mu.Unlock()
	for _, label := range labels {
		z.createLocked(localDataset + "@" + string(class) + "-" + label)
	}
}

// addRemote records a remote snapshot as if it had been received from the
// local snapshot of the same point.
func (z *fakeZFS) addRemote(class snapshot.Class, label string) {
	z.mu.Lock()
	defer z.mu.Unlock()
	suffix := string(class) + "-" + label
	name := remoteDataset + "@" + suffix
	z.remote = append(z.remote, name)
	z.txg[name] = z.bump()
	if g, ok := z.guid[localDataset+"@"+suffix]; ok {
		z.guid[name] = g
	} else {
		z.guid[name] = 900000 + z.next
	}
}

func (z *fakeZFS) localNames() []string {
	z.mu.Lock()
	defer z.mu.Unlock()
	return append([]string(nil), z.local...)
}

func (z *fakeZFS) remoteNames() []string {
	z.mu.Lock()
	defer z.mu.Unlock()
	return append([]string(nil), z.remote...)
}

func (z *fakeZFS) bump() uint64 {
	z.next++
	return z.next
}

func (z *fakeZFS) createLocked(name string) {
	z.local = append(z.local, name)
	z.txg[name] = z.bump()
	z.guid[name] = 500000 + z.next
}

func (z *fakeZFS) listing(names []string) string {
	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s\t%d\t%d\n", name, z.txg[name], z.guid[name])
	}
	return b.String()
}

func (z *fakeZFS) handleLocalList(command.Invocation) (*command.Result, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.failLocalList {
		return nil, &command.ExitError{Command: "zfs list", Code: 1, Stderr: "internal error: out of memory"}
	}
	return &command.Result{Stdout: z.listing(z.local)}, nil
}

func (z *fakeZFS) handleRemoteList(command.Invocation) (*command.Result, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	switch {
	case z.remoteDown:
		return nil, &command.ExitError{Command: "ssh", Code: 255, Stderr: "ssh: connect to host vault.example port 22: Connection refused"}
	case z.remoteMissing:
		return nil, &command.ExitError{Command: "ssh", Code: 1, Stderr: "cannot open 'backup/vault': dataset does not exist"}
	case z.remoteDenied:
		return nil, &command.ExitError{Command: "ssh", Code: 1, Stderr: "cannot open 'backup/vault': permission denied"}
	}
	return &command.Result{Stdout: z.listing(z.remote)}, nil
}

func (z *fakeZFS) handleSnapshot(inv command.Invocation) (*command.Result, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.failCreate {
		return nil, &command.ExitError{Command: inv.Line, Code: 1, Stderr: "cannot create snapshot: out of space"}
	}
	if !z.createIgnored {
		z.createLocked(lastField(inv.Line))
	}
	return &command.Result{}, nil
}

func (z *fakeZFS) handleDestroy(inv command.Invocation) (*command.Result, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	name := lastField(inv.Line)
	if z.failDestroy[name] {
		return nil, &command.ExitError{Command: inv.Line, Code: 1, Stderr: "cannot destroy snapshot: dataset is busy"}
	}
	for i, n := range z.local {
		if n == name {
			z.local = append(z.local[:i], z.local[i+1:]...)
			break
		}
	}
	return &command.Result{}, nil
}

func (z *fakeZFS) handleRecv(inv command.Invocation) (*command.Result, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.failTransfer {
		return nil, &command.ExitError{Command: "ssh", Code: 1, Stderr: "cannot receive incremental stream: destination has been modified"}
	}
	if z.timeoutTransfer {
		return nil, fmt.Errorf("%w after 2h0m0s", command.ErrTimeout)
	}
	if z.denyAfterRecv {
		z.remoteDenied = true
	}
	if z.downAfterRecv {
		z.remoteDown = true
	}
	if z.transferIgnored {
		return &command.Result{Duration: time.Second}, nil
	}

	producer := strings.SplitN(inv.Line, " | ", 2)[0]
	source := lastField(producer)
	suffix := source[strings.IndexByte(source, '@')+1:]
	name := remoteDataset + "@" + suffix
	z.remote = append(z.remote, name)
	z.txg[name] = z.bump()
	z.guid[name] = z.guid[source]
	return &command.Result{Duration: time.Second}, nil
}

func lastField(line string) string {
	fields := strings.Fields(line)
	return strings.Trim(fields[len(fields)-1], "'")
}

type mapSecrets map[string]string

func (m mapSecrets) Get(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}
