// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package command

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// Invocation records one call made against a FakeRunner.
type Invocation struct {
	// Line is the rendered argv; pipes render as "producer | consumer".
	Line    string
	Env     []string
	Timeout time.Duration
	Pipe    bool
}

// FakeHandler produces the outcome for a matched invocation.
type FakeHandler func(inv Invocation) (*Result, error)

type fakeRule struct {
	pattern string
	handler FakeHandler
}

// FakeRunner is a scripted Runner for tests. Rules match when the rendered
// command line contains their pattern; the most recently added matching rule
// wins. Unmatched invocations fail with exit status 127.
type FakeRunner struct {
	mu    sync.Mutex
	rules []fakeRule
	calls []Invocation
}

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{}
}

// On registers a fixed successful stdout for invocations containing pattern.
func (f *FakeRunner) On(pattern, stdout string) *FakeRunner {
	return f.OnFunc(pattern, func(Invocation) (*Result, error) {
		return &Result{Stdout: stdout}, nil
	})
}

// OnError registers a failure for invocations containing pattern.
func (f *FakeRunner) OnError(pattern string, err error) *FakeRunner {
	return f.OnFunc(pattern, func(Invocation) (*Result, error) {
		code, _ := ExitCode(err)
		stderr := ""
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			stderr = exitErr.Stderr
		}
		return &Result{ExitCode: code, Stderr: stderr}, err
	})
}

// OnFunc registers a handler for invocations containing pattern.
func (f *FakeRunner) OnFunc(pattern string, handler FakeHandler) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, fakeRule{pattern: pattern, handler: handler})
	return f
}

// Run implements Runner.
func (f *FakeRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	return f.dispatch(ctx, Invocation{
		Line:    cmd.String(),
		Env:     cmd.Env,
		Timeout: cmd.Timeout,
	})
}

// Pipe implements Runner.
func (f *FakeRunner) Pipe(ctx context.Context, producer, consumer Command, timeout time.Duration) (*Result, error) {
	return f.dispatch(ctx, Invocation{
		Line:    producer.String() + " | " + consumer.String(),
		Timeout: timeout,
		Pipe:    true,
	})
}

func (f *FakeRunner) dispatch(ctx context.Context, inv Invocation) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, inv)
	var handler FakeHandler
	for i := len(f.rules) - 1; i >= 0; i-- {
		if strings.Contains(inv.Line, f.rules[i].pattern) {
			handler = f.rules[i].handler
			break
		}
	}
	f.mu.Unlock()

	if handler == nil {
		err := &ExitError{Command: inv.Line, Code: 127, Stderr: "fake: no rule for command"}
		return &Result{ExitCode: 127, Stderr: err.Stderr}, err
	}

	res, err := handler(inv)
	if res == nil {
		res = &Result{}
	}
	return res, err
}

// Calls returns every invocation in order.
func (f *FakeRunner) Calls() []Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Invocation, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsMatching returns the invocations whose line contains pattern.
func (f *FakeRunner) CallsMatching(pattern string) []Invocation {
	var matched []Invocation
	for _, inv := range f.Calls() {
		if strings.Contains(inv.Line, pattern) {
			matched = append(matched, inv)
		}
	}
	return matched
}

// Pipes returns only the pipe invocations.
func (f *FakeRunner) Pipes() []Invocation {
	var pipes []Invocation
	for _, inv := range f.Calls() {
		if inv.Pipe {
			pipes = append(pipes, inv)
		}
	}
	return pipes
}
