// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is returned for a cron expression that cannot be parsed.
var ErrInvalidSchedule = errors.New("invalid cron expression")

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Trigger computes fire times for one cron expression in a fixed location.
type Trigger struct {
	expr     string
	schedule cron.Schedule
	location *time.Location
}

// ParseTrigger parses a five-field cron expression or descriptor.
// A nil location means UTC.
func ParseTrigger(expr string, location *time.Location) (*Trigger, error) {
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "TZ=") || strings.HasPrefix(expr, "CRON_TZ=") {
		return nil, fmt.Errorf("%w: %q: set the timezone in configuration", ErrInvalidSchedule, expr)
	}
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, expr, err)
	}
	if location == nil {
		location = time.UTC
	}
	return &Trigger{expr: expr, schedule: schedule, location: location}, nil
}

// ValidExpression reports whether expr parses as a schedule.
func ValidExpression(expr string) bool {
	_, err := ParseTrigger(expr, time.UTC)
	return err == nil
}

// Next returns the first fire time strictly after t.
func (t *Trigger) Next(after time.Time) time.Time {
	return t.schedule.Next(after.In(t.location))
}

// String returns the cron expression.
func (t *Trigger) String() string {
	return t.expr
}
