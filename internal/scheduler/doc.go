// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

// Package scheduler fires Snapvault jobs on cron schedules.
//
// Each job has one standard five-field cron expression (descriptors such as
// @daily are accepted) evaluated in the service timezone. The firing policy
// per job is:
//
//   - Coalesce: however many occurrences were missed, a due job fires once.
//   - Grace: lateness is measured from the newest missed occurrence. When
//     even that is older than the misfire grace window, the firing is skipped
//     and the job waits for its next occurrence.
//   - Max one instance: a firing while the previous run of the same job is
//     still in progress is dropped, not queued.
//
// Different jobs may run at the same time. Job runs get a context detached
// from the scheduler's cancellation, so stopping the scheduler never aborts
// an in-flight transfer. Stop waits a bounded time for them to finish.
//
// With a StateStore configured, the next fire time of every job survives a
// restart, so an occurrence missed while the process was down still fires
// within the grace window.
package scheduler
