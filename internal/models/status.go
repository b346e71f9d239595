// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package models

import "time"

// HealthStatus is served by /health.
//
// Example:
//
//	{
//	  "status": "healthy",
//	  "service": "snapvault",
//	  "version": "1.0.0",
//	  "timestamp": "2026-01-09T12:00:00Z"
//	}
type HealthStatus struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// ServiceStatus is served by /status.
type ServiceStatus struct {
	HealthStatus
	UptimeSeconds float64              `json:"uptime_seconds"`
	Scheduler     SchedulerStatus      `json:"scheduler"`
	Configuration ConfigurationSummary `json:"configuration"`
}

// SchedulerStatus reports whether the scheduler runs and what is next.
type SchedulerStatus struct {
	Running bool        `json:"running"`
	Jobs    []JobStatus `json:"jobs"`
}

// JobStatus describes one registered job. NextRun is nil when the job has
// no upcoming fire time.
type JobStatus struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Schedule string     `json:"schedule"`
	NextRun  *time.Time `json:"next_run"`
	Running  bool       `json:"running"`
}

// ConfigurationSummary echoes non-sensitive configuration.
type ConfigurationSummary struct {
	ZFSDataset        string `json:"zfs_dataset"`
	ReplicationTarget string `json:"replication_target"`
	CloudBucket       string `json:"cloud_bucket"`
	Timezone          string `json:"timezone"`
}

// ServiceInfo is served by /.
type ServiceInfo struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}
