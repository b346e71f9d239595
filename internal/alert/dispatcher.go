// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package alert

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/snapvault/internal/backup"
	"github.com/tomtom215/snapvault/internal/logging"
	"github.com/tomtom215/snapvault/internal/metrics"
)

// Sink delivers one outcome.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Send delivers the outcome or returns why it could not.
	Send(ctx context.Context, outcome backup.Outcome) error
}

// DispatcherConfig controls which outcomes are delivered.
type DispatcherConfig struct {
	OnSuccess bool
	OnFailure bool

	// Timeout bounds each sink delivery. Default: 10s
	Timeout time.Duration
}

// Dispatcher fans outcomes out to sinks. It implements backup.Notifier.
type Dispatcher struct {
	sinks  []Sink
	config DispatcherConfig
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher. Nil sinks are ignored.
func NewDispatcher(config DispatcherConfig, sinks ...Sink) *Dispatcher {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	d := &Dispatcher{
		config: config,
		logger: logging.Component("alert"),
	}
	for _, s := range sinks {
		if s != nil {
			d.sinks = append(d.sinks, s)
		}
	}
	return d
}

// Sinks returns the names of the configured sinks.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}

// Notify implements backup.Notifier. Delivery errors are logged, never returned.
func (d *Dispatcher) Notify(ctx context.Context, outcome backup.Outcome) {
	if (outcome.Success && !d.config.OnSuccess) || (!outcome.Success && !d.config.OnFailure) {
		for _, s := range d.sinks {
			metrics.RecordAlert(s.Name(), metrics.AlertSkipped)
		}
		return
	}

	for _, s := range d.sinks {
		d.deliver(ctx, s, outcome)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, s Sink, outcome backup.Outcome) {
	sendCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	logger := logging.Ctx(ctx).With().Str("component", "alert").Str("sink", s.Name()).Logger()

	defer func() {
		if rec := recover(); rec != nil {
			metrics.RecordAlert(s.Name(), metrics.AlertFailed)
			logger.Error().Interface("panic", rec).Msg("Alert sink panicked")
		}
	}()

	if err := s.Send(sendCtx, outcome); err != nil {
		metrics.RecordAlert(s.Name(), metrics.AlertFailed)
		logger.Warn().Err(err).Msg("Failed to deliver alert")
		return
	}
	metrics.RecordAlert(s.Name(), metrics.AlertSent)
	logger.Debug().Msg("Alert delivered")
}
