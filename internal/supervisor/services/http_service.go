// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/snapvault/internal/logging"
)

// ErrServerClosed is returned when the status server stops without the
// supervisor asking it to, so the service is restarted.
var ErrServerClosed = errors.New("status server closed unexpectedly")

// HTTPServer is the subset of *http.Server the service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService supervises the status server.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	logger          zerolog.Logger
}

// NewHTTPServerService wraps server. shutdownTimeout bounds connection
// draining on shutdown. Default: 10s
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		logger:          logging.Component("http_server"),
	}
}

// Serve implements suture.Service. A listener failure is returned so the
// supervisor retries the bind after backoff.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	stopped := make(chan error, 1)
	go func() {
		stopped <- h.server.ListenAndServe()
	}()

	select {
	case err := <-stopped:
		if errors.Is(err, http.ErrServerClosed) || err == nil {
			return ErrServerClosed
		}
		return fmt.Errorf("http server failed: %w", err)

	case <-ctx.Done():
		return h.drain(ctx, stopped)
	}
}

// drain shuts the server down on a fresh deadline; ctx is already done.
func (h *HTTPServerService) drain(ctx context.Context, stopped <-chan error) error {
	h.logger.Debug().Dur("timeout", h.shutdownTimeout).Msg("Draining status server connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()

	if err := h.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	<-stopped
	h.logger.Debug().Msg("Status server stopped")
	return ctx.Err()
}

// String implements fmt.Stringer.
func (h *HTTPServerService) String() string {
	return "http-server"
}
