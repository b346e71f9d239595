// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Format)
	}
	if !cfg.Timestamp {
		t.Error("expected timestamps enabled by default")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// The tests below swap the global logger and must not run in parallel.

func TestInitAttachesServiceFields(t *testing.T) {
	var buf bytes.Buffer
	previous := Logger()
	defer SetLogger(previous)

	Init(Config{Level: "info", Format: "json", Output: &buf, Service: "snapvault", Version: "1.2.0"})
	defer Init(DefaultConfig())

	componentLogger := Component("replication")
	componentLogger.Info().Msg("send completed")

	out := buf.String()
	for _, want := range []string{`"app":"snapvault"`, `"version":"1.2.0"`, `"component":"replication"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s: %s", want, out)
		}
	}
}

func TestCtxAddsRunFields(t *testing.T) {
	var buf bytes.Buffer
	previous := Logger()
	SetLogger(NewTestLogger(&buf))
	defer SetLogger(previous)

	ctx := ContextWithRun(context.Background(), "snapshot_daily")
	Ctx(ctx).Info().Msg("run started")

	out := buf.String()
	if !strings.Contains(out, `"job":"snapshot_daily"`) {
		t.Errorf("missing job field: %s", out)
	}
	runID := RunIDFromContext(ctx)
	if len(runID) != 8 {
		t.Fatalf("run ID = %q, want 8 characters", runID)
	}
	if !strings.Contains(out, runID) {
		t.Errorf("missing run_id %q: %s", runID, out)
	}
}

func TestCtxWithoutValues(t *testing.T) {
	var buf bytes.Buffer
	previous := Logger()
	SetLogger(NewTestLogger(&buf))
	defer SetLogger(previous)

	Ctx(context.Background()).Info().Msg("plain")

	if strings.Contains(buf.String(), "run_id") {
		t.Errorf("unexpected run_id in %s", buf.String())
	}
}

func TestSlogHandlerWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	handler := NewSlogHandlerWithLogger(NewTestLogger(&buf))
	logger := slog.New(handler).WithGroup("supervisor").With("service", "scheduler")

	logger.Warn("service restarted", "attempt", 2)

	out := buf.String()
	for _, want := range []string{`"level":"warn"`, `"supervisor.service":"scheduler"`, `"supervisor.attempt":2`, "service restarted"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestRedact(t *testing.T) {
	t.Parallel()

	if got := Redact(""); got != "" {
		t.Errorf("Redact(\"\") = %q, want empty", got)
	}
	if got := Redact("hunter2"); strings.Contains(got, "hunter2") {
		t.Errorf("Redact leaked the value: %q", got)
	}
}

func TestSanitizeValue(t *testing.T) {
	t.Parallel()

	got := SanitizeValue("cannot open 'pool/ds':\ndataset does not exist\r\n")
	if strings.ContainsAny(got, "\r\n") {
		t.Errorf("SanitizeValue kept control characters: %q", got)
	}
	if !strings.HasPrefix(got, "cannot open") {
		t.Errorf("SanitizeValue = %q", got)
	}

	long := strings.Repeat("x", maxValueLength+10)
	if got := SanitizeValue(long); !strings.HasSuffix(got, "(truncated)") {
		t.Error("expected long values to be truncated")
	}
}
