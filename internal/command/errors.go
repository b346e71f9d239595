// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package command

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTimeout is returned when a command exceeds its timeout and is killed.
	ErrTimeout = errors.New("command timed out")

	// ErrNotStarted is returned when the executable could not be launched.
	ErrNotStarted = errors.New("command could not be started")
)

// sshTransportExitCode is the status ssh reserves for its own failures
// (connection refused, authentication, host key).
const sshTransportExitCode = 255

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.Code)
	}
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		msg = msg[:idx]
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.Code, msg)
}

// ExitCode extracts the exit status from err, if it carries one.
func ExitCode(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// StderrContains reports whether err is an *ExitError whose stderr contains substr.
func StderrContains(err error, substr string) bool {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return strings.Contains(exitErr.Stderr, substr)
	}
	return false
}

// IsTransportFailure reports whether err means the remote host could not be
// reached at all: a timeout, a launch failure, or ssh's own exit status.
func IsTransportFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrNotStarted) {
		return true
	}
	code, ok := ExitCode(err)
	return ok && code == sshTransportExitCode
}
