// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values shared by several metrics.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultTimeout = "timeout"
)

// longBuckets spans sub-second listings up to multi-hour transfers.
var longBuckets = []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 1800, 3600, 7200, 14400}

var (
	// Job Metrics
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapvault_job_runs_total",
			Help: "Total number of completed job runs",
		},
		[]string{"job", "result"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapvault_job_duration_seconds",
			Help:    "Duration of job runs in seconds",
			Buckets: longBuckets,
		},
		[]string{"job"},
	)

	JobDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapvault_job_dropped_total",
			Help: "Scheduled firings that did not start a run",
		},
		[]string{"job", "reason"}, // "overlap", "misfire"
	)

	JobRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "snapvault_job_running",
			Help: "Job runs currently in flight",
		},
		[]string{"job"},
	)

	JobNextRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "snapvault_job_next_run_timestamp_seconds",
			Help: "Unix timestamp of the next scheduled firing",
		},
		[]string{"job"},
	)

	// Command Metrics
	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapvault_command_duration_seconds",
			Help:    "Duration of external commands in seconds",
			Buckets: longBuckets,
		},
		[]string{"command", "result"},
	)

	// Snapshot Metrics
	SnapshotsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapvault_snapshots_created_total",
			Help: "Total number of snapshots created",
		},
		[]string{"class"},
	)

	SnapshotsPruned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapvault_snapshots_pruned_total",
			Help: "Total number of retention deletions attempted",
		},
		[]string{"class", "result"},
	)

	// Replication Metrics
	ReplicationSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapvault_replication_sends_total",
			Help: "Replication runs by transfer mode",
		},
		[]string{"mode", "result"},
	)

	// Alert Metrics
	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapvault_alerts_total",
			Help: "Alert deliveries by sink and result",
		},
		[]string{"sink", "result"}, // "sent", "failed", "skipped"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "snapvault_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// HTTP Metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapvault_http_request_duration_seconds",
			Help:    "Status API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// resultLabel maps a success flag to the shared result label.
func resultLabel(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}

// RecordJobRun records a completed job run.
func RecordJobRun(job string, success bool, duration time.Duration) {
	JobRunsTotal.WithLabelValues(job, resultLabel(success)).Inc()
	JobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// RecordJobDropped records a firing that did not start a run.
func RecordJobDropped(job, reason string) {
	JobDroppedTotal.WithLabelValues(job, reason).Inc()
}

// TrackJobRunning adjusts the in-flight gauge for a job.
func TrackJobRunning(job string, inc bool) {
	if inc {
		JobRunning.WithLabelValues(job).Inc()
	} else {
		JobRunning.WithLabelValues(job).Dec()
	}
}

// SetJobNextRun publishes the next firing time for a job.
func SetJobNextRun(job string, next time.Time) {
	if next.IsZero() {
		JobNextRun.WithLabelValues(job).Set(0)
		return
	}
	JobNextRun.WithLabelValues(job).Set(float64(next.Unix()))
}

// RecordCommand records an external command execution.
// result is one of ResultSuccess, ResultFailure or ResultTimeout.
func RecordCommand(command, result string, duration time.Duration) {
	CommandDuration.WithLabelValues(command, result).Observe(duration.Seconds())
}

// RecordSnapshotCreated counts a created snapshot.
func RecordSnapshotCreated(class string) {
	SnapshotsCreated.WithLabelValues(class).Inc()
}

// RecordSnapshotPruned counts a retention deletion attempt.
func RecordSnapshotPruned(class string, success bool) {
	SnapshotsPruned.WithLabelValues(class, resultLabel(success)).Inc()
}

// RecordReplication counts a replication run by mode.
func RecordReplication(mode string, success bool) {
	ReplicationSends.WithLabelValues(mode, resultLabel(success)).Inc()
}

// RecordAlert counts an alert delivery outcome.
func RecordAlert(sink, result string) {
	AlertsTotal.WithLabelValues(sink, result).Inc()
}

// Alert delivery results.
const (
	AlertSent    = "sent"
	AlertFailed  = "failed"
	AlertSkipped = "skipped"
)

// SetCircuitBreakerState publishes a breaker state (0=closed, 1=half-open, 2=open).
func SetCircuitBreakerState(name string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
}

// RecordHTTPRequest records a status API request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}
