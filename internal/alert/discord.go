// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package alert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/snapvault/internal/backup"
	"github.com/tomtom215/snapvault/internal/logging"
	"github.com/tomtom215/snapvault/internal/metrics"
)

// Embed colors.
const (
	ColorSuccess = 0x00FF00
	ColorFailure = 0xFF0000
)

const (
	footerText       = "Snapvault Backup Service"
	maxErrorLength   = 1000
	maxDetailLength  = 1000
	breakerTrips     = 3
	breakerOpenDelay = time.Minute
)

// ErrWebhookStatus is returned when the webhook answers with a non-2xx status.
var ErrWebhookStatus = errors.New("webhook returned error status")

// DiscordWebhookPayload represents the Discord webhook message structure.
type DiscordWebhookPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []DiscordEmbed `json:"embeds,omitempty"`
}

// DiscordEmbed represents a Discord embed object.
type DiscordEmbed struct {
	Title     string              `json:"title,omitempty"`
	Color     int                 `json:"color,omitempty"`
	Timestamp string              `json:"timestamp,omitempty"`
	Footer    *DiscordEmbedFooter `json:"footer,omitempty"`
	Fields    []DiscordEmbedField `json:"fields,omitempty"`
}

// DiscordEmbedFooter represents the footer of a Discord embed.
type DiscordEmbedFooter struct {
	Text string `json:"text,omitempty"`
}

// DiscordEmbedField represents a field in a Discord embed.
type DiscordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// DiscordConfig configures a DiscordSink.
type DiscordConfig struct {
	WebhookURL string
	Username   string

	// Timeout bounds each request. Default: 10s
	Timeout time.Duration

	// RatePerSecond and Burst configure the token bucket. Defaults: 1 and 5
	RatePerSecond float64
	Burst         int
}

// DiscordSink posts outcomes to a Discord webhook.
type DiscordSink struct {
	url      string
	username string
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[struct{}]
}

// NewDiscordSink creates a Discord sink.
func NewDiscordSink(cfg DiscordConfig) *DiscordSink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.Username == "" {
		cfg.Username = "Snapvault"
	}

	name := "discord"
	metrics.SetCircuitBreakerState(name, 0)

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     breakerOpenDelay,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTrips
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state transition")
			metrics.SetCircuitBreakerState(name, stateToFloat(to))
		},
	})

	return &DiscordSink{
		url:      cfg.WebhookURL,
		username: cfg.Username,
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		breaker:  breaker,
	}
}

// Name implements Sink.
func (s *DiscordSink) Name() string {
	return "discord"
}

// Send implements Sink.
func (s *DiscordSink) Send(ctx context.Context, outcome backup.Outcome) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	body, err := json.Marshal(BuildDiscordPayload(outcome, s.username))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.post(ctx, body)
	})
	return err
}

func (s *DiscordSink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg, readErr := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if readErr != nil {
		msg = []byte("(failed to read response)")
	}
	return fmt.Errorf("%w: %d: %s", ErrWebhookStatus, resp.StatusCode, logging.SanitizeValue(string(msg)))
}

// BuildDiscordPayload renders an outcome as a Discord embed.
func BuildDiscordPayload(outcome backup.Outcome, username string) DiscordWebhookPayload {
	color := ColorSuccess
	if !outcome.Success {
		color = ColorFailure
	}

	fields := []DiscordEmbedField{
		{Name: "Job", Value: outcome.JobName, Inline: true},
		{Name: "Duration", Value: fmt.Sprintf("%.1fs", outcome.DurationSeconds), Inline: true},
	}
	if outcome.Error != "" {
		fields = append(fields, DiscordEmbedField{Name: "Error", Value: codeBlock(truncate(outcome.Error, maxErrorLength))})
	}
	if outcome.Detail != "" {
		fields = append(fields, DiscordEmbedField{Name: "Details", Value: truncate(outcome.Detail, maxDetailLength)})
	}

	timestamp := outcome.StartedAt
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	return DiscordWebhookPayload{
		Username: username,
		Embeds: []DiscordEmbed{{
			Title:     outcome.Title(),
			Color:     color,
			Timestamp: timestamp.UTC().Format(time.RFC3339),
			Footer:    &DiscordEmbedFooter{Text: footerText},
			Fields:    fields,
		}},
	}
}

func codeBlock(s string) string {
	return "```\n" + s + "\n```"
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}
