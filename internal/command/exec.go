// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/snapvault/internal/logging"
	"github.com/tomtom215/snapvault/internal/metrics"
)

const (
	// maxStderrBytes caps captured stderr per process.
	maxStderrBytes = 64 * 1024

	// waitDelay bounds how long Wait blocks on inherited pipes after a kill.
	waitDelay = 5 * time.Second
)

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	logger zerolog.Logger
}

// NewExecRunner creates a Runner backed by real processes.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		logger: logging.Component("command"),
	}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	runCtx, cancel := withOptionalTimeout(ctx, cmd.Timeout)
	defer cancel()

	proc := r.build(runCtx, cmd)
	var stdout bytes.Buffer
	stderr := &cappedBuffer{limit: maxStderrBytes}
	proc.Stdout = &stdout
	proc.Stderr = stderr

	r.logger.Debug().Str("command", cmd.String()).Dur("timeout", cmd.Timeout).Msg("Running command")

	start := time.Now()
	runErr := proc.Run()
	res := &Result{
		ExitCode: exitCodeOf(proc, runErr),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	err := classify(runCtx, ctx, cmd, res, runErr)
	r.record(cmd, res, err)
	return res, err
}

// Pipe implements Runner.
func (r *ExecRunner) Pipe(ctx context.Context, producer, consumer Command, timeout time.Duration) (*Result, error) {
	pipeCtx, cancel := withOptionalTimeout(ctx, timeout)
	defer cancel()

	prod := r.build(pipeCtx, producer)
	cons := r.build(pipeCtx, consumer)

	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: create pipe: %w", ErrNotStarted, err)
	}

	prodErrBuf := &cappedBuffer{limit: maxStderrBytes}
	consErrBuf := &cappedBuffer{limit: maxStderrBytes}
	var consOut bytes.Buffer
	prod.Stdout = writer
	prod.Stderr = prodErrBuf
	cons.Stdin = reader
	cons.Stdout = &consOut
	cons.Stderr = consErrBuf

	r.logger.Debug().
		Str("producer", producer.String()).
		Str("consumer", consumer.String()).
		Dur("timeout", timeout).
		Msg("Running pipe")

	start := time.Now()
	if err := cons.Start(); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrNotStarted, consumer.Name, err)
	}
	if err := prod.Start(); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		_ = cons.Process.Kill()
		_ = cons.Wait()
		return nil, fmt.Errorf("%w: %s: %w", ErrNotStarted, producer.Name, err)
	}

	// The children hold their own descriptors; closing ours lets EOF and
	// EPIPE propagate when either side exits.
	_ = reader.Close()
	_ = writer.Close()

	prodErr := prod.Wait()
	consErr := cons.Wait()

	res := &Result{
		ExitCode: exitCodeOf(cons, consErr),
		Stdout:   consOut.String(),
		Stderr:   joinStderr(prodErrBuf.String(), consErrBuf.String()),
		Duration: time.Since(start),
	}
	if res.ExitCode == 0 {
		res.ExitCode = exitCodeOf(prod, prodErr)
	}

	if pipeCtx.Err() != nil && ctx.Err() == nil {
		err = fmt.Errorf("%s | %s: %w after %s", producer.MetricLabel(), consumer.MetricLabel(), ErrTimeout, timeout)
	} else if ctx.Err() != nil {
		err = ctx.Err()
	} else {
		err = errors.Join(
			asExitError(producer, prod, prodErr, prodErrBuf.String()),
			asExitError(consumer, cons, consErr, consErrBuf.String()),
		)
	}

	label := Command{Label: producer.MetricLabel() + " | " + consumer.MetricLabel()}
	r.record(label, res, err)
	return res, err
}

func (r *ExecRunner) build(ctx context.Context, cmd Command) *exec.Cmd {
	proc := exec.CommandContext(ctx, cmd.Name, cmd.Args...) //nolint:gosec // argv is built internally, never from user input
	if len(cmd.Env) > 0 {
		proc.Env = append(os.Environ(), cmd.Env...)
	}
	proc.WaitDelay = waitDelay
	return proc
}

func (r *ExecRunner) record(cmd Command, res *Result, err error) {
	result := metrics.ResultSuccess
	switch {
	case errors.Is(err, ErrTimeout):
		result = metrics.ResultTimeout
	case err != nil:
		result = metrics.ResultFailure
	}
	metrics.RecordCommand(cmd.MetricLabel(), result, res.Duration)

	if err != nil {
		r.logger.Debug().
			Str("command", cmd.MetricLabel()).
			Int("exit_code", res.ExitCode).
			Str("stderr", logging.SanitizeValue(res.Stderr)).
			Dur("duration", res.Duration).
			Err(err).
			Msg("Command failed")
	}
}

// classify converts a process error into the package's error vocabulary.
func classify(runCtx, parent context.Context, cmd Command, res *Result, runErr error) error {
	if runErr == nil {
		return nil
	}
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w after %s", cmd.MetricLabel(), ErrTimeout, cmd.Timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return &ExitError{Command: cmd.MetricLabel(), Code: res.ExitCode, Stderr: res.Stderr}
	}
	return fmt.Errorf("%w: %s: %w", ErrNotStarted, cmd.Name, runErr)
}

func asExitError(cmd Command, proc *exec.Cmd, waitErr error, stderr string) error {
	if waitErr == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return &ExitError{Command: cmd.MetricLabel(), Code: exitCodeOf(proc, waitErr), Stderr: stderr}
	}
	return fmt.Errorf("%s: %w", cmd.MetricLabel(), waitErr)
}

func exitCodeOf(proc *exec.Cmd, err error) int {
	if proc.ProcessState != nil {
		if code := proc.ProcessState.ExitCode(); code >= 0 {
			return code
		}
	}
	if err != nil {
		return -1
	}
	return 0
}

func joinStderr(producer, consumer string) string {
	producer = strings.TrimSpace(producer)
	consumer = strings.TrimSpace(consumer)
	switch {
	case producer == "":
		return consumer
	case consumer == "":
		return producer
	default:
		return producer + "\n" + consumer
	}
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// cappedBuffer keeps the first limit bytes written and discards the rest.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + "\n...(stderr truncated)"
	}
	return b.buf.String()
}
