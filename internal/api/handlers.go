// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/snapvault/internal/logging"
	"github.com/tomtom215/snapvault/internal/models"
	"github.com/tomtom215/snapvault/internal/scheduler"
)

// SchedulerView is the part of the scheduler the status surface reads.
type SchedulerView interface {
	Running() bool
	Jobs() []scheduler.JobInfo
}

// HandlerConfig describes what the handlers report.
type HandlerConfig struct {
	Service       string
	Version       string
	Configuration models.ConfigurationSummary
	Scheduler     SchedulerView
}

// Handler serves the status endpoints.
type Handler struct {
	config    HandlerConfig
	startTime time.Time
	now       func() time.Time
}

// NewHandler creates a Handler. Uptime is measured from this call.
func NewHandler(config HandlerConfig) *Handler {
	if config.Service == "" {
		config.Service = "snapvault"
	}
	if config.Version == "" {
		config.Version = "dev"
	}
	return &Handler{
		config:    config,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Root lists the endpoints.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.ServiceInfo{
		Service: h.config.Service,
		Version: h.config.Version,
		Endpoints: map[string]string{
			"health":  "/health",
			"status":  "/status",
			"metrics": "/metrics",
		},
	})
}

// Health reports liveness. It answers as long as the process serves HTTP.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.health())
}

// Status reports health, uptime, scheduled jobs and the configuration summary.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status := models.ServiceStatus{
		HealthStatus:  h.health(),
		UptimeSeconds: h.now().Sub(h.startTime).Seconds(),
		Scheduler:     h.schedulerStatus(),
		Configuration: h.config.Configuration,
	}

	logging.Ctx(r.Context()).Debug().Int("jobs", len(status.Scheduler.Jobs)).Msg("Status requested")
	respondJSON(w, http.StatusOK, status)
}

// NotFound answers unknown paths.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "No such endpoint")
}

// MethodNotAllowed answers non-GET requests.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "GET, HEAD")
	respondError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "The status surface is read-only")
}

func (h *Handler) health() models.HealthStatus {
	return models.HealthStatus{
		Status:    "healthy",
		Service:   h.config.Service,
		Version:   h.config.Version,
		Timestamp: h.now().UTC(),
	}
}

func (h *Handler) schedulerStatus() models.SchedulerStatus {
	out := models.SchedulerStatus{Jobs: []models.JobStatus{}}
	if h.config.Scheduler == nil {
		return out
	}

	out.Running = h.config.Scheduler.Running()
	for _, job := range h.config.Scheduler.Jobs() {
		js := models.JobStatus{
			ID:       job.ID,
			Name:     job.Name,
			Schedule: job.Schedule,
			Running:  job.Running,
		}
		if !job.NextRun.IsZero() {
			next := job.NextRun
			js.NextRun = &next
		}
		out.Jobs = append(out.Jobs, js)
	}
	return out
}
