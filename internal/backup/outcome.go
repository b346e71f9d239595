// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

/*
outcome.go - Job Outcome Reporting

Every job run is executed through Reporter.Run. The reporter:
  - tags the context with the job name and a fresh run ID
  - times the run and recovers panics
  - converts the result into an Outcome
  - logs it, records job metrics, and notifies the alert sinks

Notification happens after the outcome is final, so an alert failure can
never change the reported result of the job.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/snapvault/internal/logging"
	"github.com/tomtom215/snapvault/internal/metrics"
)

// Outcome is the result of one job run. It is emitted once and never stored.
type Outcome struct {
	JobName         string        `json:"job_name"`
	RunID           string        `json:"run_id"`
	Success         bool          `json:"success"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"-"`
	DurationSeconds float64       `json:"duration_seconds"`
	Detail          string        `json:"detail"`
	Error           string        `json:"error,omitempty"`
}

// Title returns the alert title for the outcome.
func (o Outcome) Title() string {
	if o.Success {
		return "Backup Succeeded: " + o.JobName
	}
	return "Backup Failed: " + o.JobName
}

// Notifier receives job outcomes. Implementations must not block for long
// and must absorb their own delivery errors.
type Notifier interface {
	Notify(ctx context.Context, outcome Outcome)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, outcome Outcome)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, outcome Outcome) {
	f(ctx, outcome)
}

// Task is one job body. The returned detail is reported on success and on
// failure alike.
type Task func(ctx context.Context) (detail string, err error)

// Reporter runs tasks and reports their outcomes.
type Reporter struct {
	notifier Notifier
	now      func() time.Time
	logger   zerolog.Logger
}

// NewReporter creates a Reporter. A nil notifier only logs and records metrics.
func NewReporter(notifier Notifier) *Reporter {
	return &Reporter{
		notifier: notifier,
		now:      time.Now,
		logger:   logging.Component("reporter"),
	}
}

// Run executes task under the given job name and returns its outcome.
// It never panics and never returns an error.
func (r *Reporter) Run(ctx context.Context, job string, task Task) Outcome {
	ctx = logging.ContextWithRun(ctx, job)
	started := r.now()

	out := Outcome{
		JobName:   job,
		RunID:     logging.RunIDFromContext(ctx),
		StartedAt: started,
	}

	logging.Ctx(ctx).Info().Msg("Job started")

	detail, err := r.execute(ctx, task)

	out.Duration = r.now().Sub(started)
	out.DurationSeconds = out.Duration.Seconds()
	out.Detail = detail
	out.Success = err == nil
	if err != nil {
		out.Error = err.Error()
	}

	r.log(ctx, out)
	metrics.RecordJobRun(job, out.Success, out.Duration)

	if r.notifier != nil {
		r.notify(ctx, out)
	}
	return out
}

func (r *Reporter) execute(ctx context.Context, task Task) (detail string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
		}
	}()
	return task(ctx)
}

func (r *Reporter) notify(ctx context.Context, out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Ctx(ctx).Error().Interface("panic", rec).Msg("Alert notifier panicked")
		}
	}()
	r.notifier.Notify(ctx, out)
}

func (r *Reporter) log(ctx context.Context, out Outcome) {
	logger := logging.Ctx(ctx)
	if out.Success {
		logger.Info().
			Dur("duration", out.Duration).
			Str("detail", out.Detail).
			Msg("Job completed")
		return
	}
	logger.Error().
		Dur("duration", out.Duration).
		Str("detail", out.Detail).
		Str("error", out.Error).
		Msg("Job failed")
}
