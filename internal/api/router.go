// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/snapvault/internal/middleware"
)

// RouterConfig configures the middleware stack.
type RouterConfig struct {
	// RateLimit is the number of requests per minute per client IP. Zero disables it.
	RateLimit int

	// RateWindow is the rate limit window. Default: 1m
	RateWindow time.Duration
}

// NewRouter builds the status surface.
func NewRouter(handler *Handler, config RouterConfig) http.Handler {
	if config.RateWindow <= 0 {
		config.RateWindow = time.Minute
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(recoverer)
	if config.RateLimit > 0 {
		r.Use(httprate.Limit(
			config.RateLimit,
			config.RateWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				respondError(w, r, http.StatusTooManyRequests, ErrCodeTooManyRequests, "Too many requests")
			}),
		))
	}
	r.Use(middleware.PrometheusMetrics)
	r.Use(chimiddleware.GetHead)

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	r.Get("/", handler.Root)
	r.Get("/health", handler.Health)
	r.Get("/status", handler.Status)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
