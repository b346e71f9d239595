// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package alert

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/snapvault/internal/backup"
)

type recordingSink struct {
	name string
	err  error
	mu   sync.Mutex
	got  []backup.Outcome
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(_ context.Context, o backup.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, o)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

type panickingSink struct{}

func (panickingSink) Name() string { return "panicky" }
func (panickingSink) Send(context.Context, backup.Outcome) error { panic("sink bug") }

func failure() backup.Outcome {
	return backup.Outcome{
		JobName:         "replication",
		Success:         false,
		DurationSeconds: 12.34,
		Detail:          "incremental send of syn/archives@daily-2026-01-09",
		Error:           "transfer failed: broken pipe",
		StartedAt:       time.Date(2026, 1, 9, 3, 0, 0, 0, time.UTC),
	}
}

func success() backup.Outcome {
	o := failure()
	o.Success = true
	o.Error = ""
	return o
}

func TestDispatcher_FiltersByOutcome(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{name: "rec"}
	d := NewDispatcher(DispatcherConfig{OnSuccess: false, OnFailure: true}, sink)

	d.Notify(context.Background(), success())
	if sink.count() != 0 {
		t.Error("success delivered with on_success disabled")
	}
	d.Notify(context.Background(), failure())
	if sink.count() != 1 {
		t.Errorf("failure delivered %d times, want 1", sink.count())
	}
}

func TestDispatcher_SinkFailuresAreAbsorbed(t *testing.T) {
	t.Parallel()

	broken := &recordingSink{name: "broken", err: errors.New("503")}
	healthy := &recordingSink{name: "healthy"}
	d := NewDispatcher(DispatcherConfig{OnSuccess: true, OnFailure: true}, broken, panickingSink{}, nil, healthy)

	if got := d.Sinks(); len(got) != 3 {
		t.Errorf("Sinks() = %v, nil sinks should be dropped", got)
	}

	d.Notify(context.Background(), failure())
	if healthy.count() != 1 {
		t.Error("a failing sink prevented delivery to the next sink")
	}
}

func TestBuildDiscordPayload(t *testing.T) {
	t.Parallel()

	o := failure()
	o.Error = strings.Repeat("x", 1500)
	payload := BuildDiscordPayload(o, "Snapvault")

	if len(payload.Embeds) != 1 {
		t.Fatalf("embeds = %d", len(payload.Embeds))
	}
	embed := payload.Embeds[0]
	if embed.Title != "Backup Failed: replication" || embed.Color != ColorFailure {
		t.Errorf("title %q color %x", embed.Title, embed.Color)
	}
	if embed.Footer == nil || embed.Footer.Text != "Snapvault Backup Service" {
		t.Errorf("footer = %+v", embed.Footer)
	}
	if embed.Timestamp != "2026-01-09T03:00:00Z" {
		t.Errorf("timestamp = %q", embed.Timestamp)
	}

	fields := map[string]string{}
	for _, f := range embed.Fields {
		fields[f.Name] = f.Value
	}
	if fields["Job"] != "replication" || fields["Duration"] != "12.3s" {
		t.Errorf("fields = %v", fields)
	}
	if n := strings.Count(fields["Error"], "x"); n != 1000 {
		t.Errorf("error field carries %d characters, want 1000", n)
	}
	if fields["Details"] == "" {
		t.Error("missing Details field")
	}

	ok := BuildDiscordPayload(success(), "Snapvault").Embeds[0]
	if ok.Color != ColorSuccess || ok.Title != "Backup Succeeded: replication" {
		t.Errorf("success embed = %+v", ok)
	}
	for _, f := range ok.Fields {
		if f.Name == "Error" {
			t.Error("success embed should not carry an Error field")
		}
	}
}

func TestTruncateCountsCharacters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{in: strings.Repeat("é", 10), n: 5, want: "ééééé"},
		{in: "snapshot", n: 4, want: "snap"},
		{in: "short", n: 10, want: "short"},
		{in: "日本語テキスト", n: 3, want: "日本語"},
		{in: "exact", n: 5, want: "exact"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}

	outcome := failure()
	outcome.Error = strings.Repeat("ü", 1500)
	long := BuildDiscordPayload(outcome, "Snapvault").Embeds[0]
	for _, f := range long.Fields {
		if f.Name == "Error" {
			if n := strings.Count(f.Value, "ü"); n != 1000 {
				t.Errorf("error field carries %d characters, want 1000", n)
			}
		}
	}
}

func TestDiscordSink_Send(t *testing.T) {
	t.Parallel()

	var received DiscordWebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("invalid payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewDiscordSink(DiscordConfig{WebhookURL: srv.URL})
	if err := sink.Send(context.Background(), success()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(received.Embeds) != 1 || received.Embeds[0].Color != ColorSuccess {
		t.Errorf("received %+v", received)
	}
	if received.Username != "Snapvault" {
		t.Errorf("username = %q", received.Username)
	}
}

func TestDiscordSink_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "unknown webhook", http.StatusNotFound)
	}))
	defer srv.Close()

	sink := NewDiscordSink(DiscordConfig{WebhookURL: srv.URL, RatePerSecond: 1000, Burst: 100})
	for i := 0; i < 3; i++ {
		err := sink.Send(context.Background(), failure())
		if !errors.Is(err, ErrWebhookStatus) {
			t.Fatalf("Send() #%d error = %v, want ErrWebhookStatus", i+1, err)
		}
	}

	err := sink.Send(context.Background(), failure())
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Send() after 3 failures error = %v, want open circuit", err)
	}
	if n := hits.Load(); n != 3 {
		t.Errorf("webhook hit %d times, want 3", n)
	}
}

func TestDiscordSink_RateLimited(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewDiscordSink(DiscordConfig{WebhookURL: srv.URL, RatePerSecond: 0.001, Burst: 1})
	if err := sink.Send(context.Background(), success()); err != nil {
		t.Fatalf("first Send() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := sink.Send(ctx, success()); err == nil {
		t.Error("second Send() should exceed the rate limit within the deadline")
	}
}

func startNATSServer(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("create NATS server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		t.Fatal("NATS server not ready within timeout")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

func TestNATSSink_PublishesOutcome(t *testing.T) {
	t.Parallel()

	ns := startNATSServer(t)

	sub, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("connect subscriber: %v", err)
	}
	defer sub.Close()
	messages, err := sub.SubscribeSync(DefaultSubject)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Flush(); err != nil {
		t.Fatal(err)
	}

	sink, err := NewNATSSink(ns.ClientURL(), "")
	if err != nil {
		t.Fatalf("NewNATSSink() error = %v", err)
	}
	defer sink.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sink.Send(ctx, failure()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	msg, err := messages.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatalf("no message received: %v", err)
	}
	var got backup.Outcome
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatalf("invalid outcome JSON: %v", err)
	}
	if got.JobName != "replication" || got.Success || got.Error == "" {
		t.Errorf("received %+v", got)
	}
}
