// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package command

import (
	"context"
	"strings"
	"time"
)

// Command describes one external program invocation.
type Command struct {
	// Name is the executable, resolved through PATH.
	Name string

	// Args are passed to the executable without shell interpretation.
	Args []string

	// Env holds extra KEY=VALUE entries appended to the process environment.
	// Values may be credentials and are never rendered by String.
	Env []string

	// Timeout bounds the invocation. Zero means no timeout beyond ctx.
	Timeout time.Duration

	// Label names the command in metrics. Defaults to Name plus the first argument.
	Label string
}

// Argv returns the full argument vector including the executable.
func (c Command) Argv() []string {
	argv := make([]string, 0, len(c.Args)+1)
	argv = append(argv, c.Name)
	return append(argv, c.Args...)
}

// String renders the argv as a shell-quoted line for logs. Env is omitted.
func (c Command) String() string {
	return QuoteArgv(c.Argv())
}

// MetricLabel returns the label used for command metrics.
func (c Command) MetricLabel() string {
	if c.Label != "" {
		return c.Label
	}
	if len(c.Args) > 0 && !strings.HasPrefix(c.Args[0], "-") {
		return c.Name + " " + c.Args[0]
	}
	return c.Name
}

// Result holds the captured outcome of a finished command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Lines splits Stdout into non-empty trimmed lines.
func (r *Result) Lines() []string {
	if r == nil {
		return nil
	}
	raw := strings.Split(r.Stdout, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// Runner executes external commands.
//
// Implementations must be safe for concurrent use: different jobs run their
// commands at the same time.
type Runner interface {
	// Run executes cmd and waits for it to finish.
	// A non-zero exit returns the result and an *ExitError.
	// Exceeding cmd.Timeout kills the process and returns ErrTimeout.
	Run(ctx context.Context, cmd Command) (*Result, error)

	// Pipe streams producer stdout into consumer stdin. Both must exit zero.
	// timeout applies to the pipe as a whole; per-command timeouts are ignored.
	Pipe(ctx context.Context, producer, consumer Command, timeout time.Duration) (*Result, error)
}
