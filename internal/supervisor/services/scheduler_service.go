// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package services

import (
	"context"
	"fmt"
)

// JobScheduler matches the scheduler's Start/Stop lifecycle.
// Satisfied by *scheduler.Scheduler.
type JobScheduler interface {
	Start(ctx context.Context) error
	Stop() error
}

// SchedulerService runs the backup job scheduler as a supervised service.
type SchedulerService struct {
	scheduler JobScheduler
	name      string
}

// NewSchedulerService wraps scheduler.
func NewSchedulerService(scheduler JobScheduler) *SchedulerService {
	return &SchedulerService{
		scheduler: scheduler,
		name:      "job-scheduler",
	}
}

// Serve implements suture.Service. Stop waits for in-flight jobs up to the
// scheduler's shutdown grace, so the tree's shutdown timeout must exceed it.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("job scheduler start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.scheduler.Stop(); err != nil {
		return fmt.Errorf("job scheduler stop failed: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *SchedulerService) String() string {
	return s.name
}
