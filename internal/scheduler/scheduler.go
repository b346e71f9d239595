// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

/*
scheduler.go - Job Scheduler

The scheduler loop sleeps until the earliest next fire time (capped at
MaxSleep so wall clock jumps are noticed), then evaluates every job:

	due, within grace, idle    -> fire once, advance past now
	due, within grace, running -> drop, advance past now
	due, beyond grace          -> skip, advance past now
	not due                    -> wait

Advancing from now rather than from the missed occurrence is what collapses
any number of missed firings into a single decision.
*/

//nolint:staticcheck // File documentation, not package doc
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/snapvault/internal/logging"
	"github.com/tomtom215/snapvault/internal/metrics"
)

var (
	// ErrDuplicateJob is returned when a job ID is registered twice.
	ErrDuplicateJob = errors.New("job already registered")

	// ErrAlreadyRunning is returned by Start on a running scheduler.
	ErrAlreadyRunning = errors.New("scheduler already running")

	// ErrShutdownTimeout is returned by Stop when runs outlive the grace period.
	ErrShutdownTimeout = errors.New("jobs still running after shutdown grace period")
)

// Job is one scheduled unit of work. Run must handle its own errors.
type Job struct {
	ID       string
	Name     string
	Schedule string
	Run      func(ctx context.Context)
}

// JobInfo is the externally visible state of a job.
type JobInfo struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run"`
	Running  bool      `json:"running"`
}

// Config holds scheduler configuration.
type Config struct {
	// Location is the timezone cron expressions are evaluated in. Default: UTC
	Location *time.Location

	// MisfireGrace is how late a firing may still run. Default: 1h
	MisfireGrace time.Duration

	// ShutdownGrace bounds how long Stop waits for in-flight runs. Default: 30s
	ShutdownGrace time.Duration

	// MaxSleep caps a single wait between evaluations. Default: 1m
	MaxSleep time.Duration

	// Store persists next fire times. Optional.
	Store StateStore
}

type entry struct {
	job     Job
	trigger *Trigger
	next    time.Time
	running atomic.Bool
}

// Scheduler fires registered jobs on their cron schedules.
type Scheduler struct {
	config Config
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries []*entry
	byID    map[string]*entry
	running bool
	baseCtx context.Context
	stopCh  chan struct{}
	doneCh  chan struct{}
	wakeCh  chan struct{}

	inflight sync.WaitGroup
}

// New creates a scheduler.
func New(config Config) *Scheduler {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.MisfireGrace <= 0 {
		config.MisfireGrace = time.Hour
	}
	if config.ShutdownGrace <= 0 {
		config.ShutdownGrace = 30 * time.Second
	}
	if config.MaxSleep <= 0 {
		config.MaxSleep = time.Minute
	}
	return &Scheduler{
		config:  config,
		logger:  logging.Component("scheduler"),
		now:     time.Now,
		byID:    make(map[string]*entry),
		baseCtx: context.Background(),
		wakeCh:  make(chan struct{}, 1),
	}
}

// Add registers a job. Jobs may be added before or after Start.
func (s *Scheduler) Add(job Job) error {
	if job.ID == "" || job.Run == nil {
		return fmt.Errorf("job requires an ID and a Run function")
	}
	trigger, err := ParseTrigger(job.Schedule, s.config.Location)
	if err != nil {
		return fmt.Errorf("job %s: %w", job.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[job.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
	}
	e := &entry{job: job, trigger: trigger}
	e.next = s.initialNext(e, s.now())
	s.entries = append(s.entries, e)
	s.byID[job.ID] = e
	metrics.SetJobNextRun(job.ID, e.next)

	s.logger.Info().
		Str("job", job.ID).
		Str("schedule", trigger.String()).
		Time("next_run", e.next).
		Msg("Job registered")

	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
	return nil
}

// initialNext restores a persisted fire time that is already due, so an
// occurrence missed while the process was down is evaluated on the first
// tick. Otherwise the next occurrence after now is used.
func (s *Scheduler) initialNext(e *entry, now time.Time) time.Time {
	next := e.trigger.Next(now)
	if s.config.Store == nil {
		return next
	}
	stored, ok, err := s.config.Store.LoadNext(e.job.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("job", e.job.ID).Msg("Failed to load trigger state")
		return next
	}
	if ok && !stored.After(now) {
		s.logger.Info().
			Str("job", e.job.ID).
			Time("missed", stored).
			Msg("Restored missed firing from previous run")
		return stored
	}
	if err := s.config.Store.SaveNext(e.job.ID, next); err != nil {
		s.logger.Warn().Err(err).Str("job", e.job.ID).Msg("Failed to save trigger state")
	}
	return next
}

// Start begins the scheduler loop. Job runs inherit values but not
// cancellation from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.baseCtx = context.WithoutCancel(ctx)
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	count := len(s.entries)
	s.mu.Unlock()

	s.logger.Info().
		Int("jobs", count).
		Str("timezone", s.config.Location.String()).
		Dur("misfire_grace", s.config.MisfireGrace).
		Msg("Starting scheduler")

	go s.loop(ctx)
	return nil
}

// Stop stops firing new runs and waits up to ShutdownGrace for in-flight
// runs to finish. Runs that outlive the grace period are left running.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()

	s.logger.Info().Msg("Stopping scheduler...")
	<-doneCh

	finished := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		s.logger.Info().Msg("Scheduler stopped")
		return nil
	case <-time.After(s.config.ShutdownGrace):
		s.logger.Warn().
			Strs("running", s.runningIDs()).
			Dur("grace", s.config.ShutdownGrace).
			Msg("Jobs still running after shutdown grace period")
		return ErrShutdownTimeout
	}
}

// Running reports whether the scheduler loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Jobs returns the registered jobs in registration order.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, JobInfo{
			ID:       e.job.ID,
			Name:     e.job.Name,
			Schedule: e.trigger.String(),
			NextRun:  e.next,
			Running:  e.running.Load(),
		})
	}
	return out
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	for {
		timer := time.NewTimer(s.untilNext(s.now()))
		select {
		case <-timer.C:
			s.tick(s.now())
		case <-s.wakeCh:
			timer.Stop()
		case <-s.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) untilNext(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	wait := s.config.MaxSleep
	for _, e := range s.entries {
		if d := e.next.Sub(now); d < wait {
			wait = d
		}
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}

// tick evaluates every job against now.
func (s *Scheduler) tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		firstDue := e.next
		scheduled := firstDue
		if !now.Before(scheduled) {
			scheduled = latestDue(e.trigger, scheduled, now)
		}
		act := decide(now, scheduled, s.config.MisfireGrace, e.running.Load())
		if act == actionWait {
			continue
		}

		s.advance(e, now)
		logger := s.logger.With().
			Str("job", e.job.ID).
			Time("scheduled", scheduled).
			Time("next_run", e.next).
			Logger()
		if !firstDue.Equal(scheduled) {
			logger = logger.With().Time("first_missed", firstDue).Logger()
		}

		switch act {
		case actionSkipMisfire:
			metrics.RecordJobDropped(e.job.ID, act.String())
			logger.Warn().
				Dur("late", now.Sub(scheduled)).
				Msg("Missed firing beyond grace window, skipping")
		case actionDropOverlap:
			metrics.RecordJobDropped(e.job.ID, act.String())
			logger.Warn().Msg("Previous run still in progress, dropping firing")
		case actionFire:
			if !e.running.CompareAndSwap(false, true) {
				metrics.RecordJobDropped(e.job.ID, actionDropOverlap.String())
				logger.Warn().Msg("Previous run still in progress, dropping firing")
				continue
			}
			if late := now.Sub(scheduled); late > time.Minute {
				logger.Info().Dur("late", late).Msg("Running coalesced firing")
			}
			s.inflight.Add(1)
			go s.execute(e)
		}
	}
}

// advance moves the entry to its first occurrence after now. Caller holds mu.
func (s *Scheduler) advance(e *entry, now time.Time) {
	e.next = e.trigger.Next(now)
	metrics.SetJobNextRun(e.job.ID, e.next)
	if s.config.Store != nil {
		if err := s.config.Store.SaveNext(e.job.ID, e.next); err != nil {
			s.logger.Warn().Err(err).Str("job", e.job.ID).Msg("Failed to save trigger state")
		}
	}
}

func (s *Scheduler) execute(e *entry) {
	defer s.inflight.Done()
	defer e.running.Store(false)

	metrics.TrackJobRunning(e.job.ID, true)
	defer metrics.TrackJobRunning(e.job.ID, false)

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error().
				Str("job", e.job.ID).
				Interface("panic", rec).
				Msg("Job panicked")
		}
	}()

	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	e.job.Run(ctx)
}

func (s *Scheduler) runningIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, e := range s.entries {
		if e.running.Load() {
			ids = append(ids, e.job.ID)
		}
	}
	return ids
}
