// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

/*
Package middleware provides HTTP middleware for the status surface.

Key Components:

  - Request ID: UUID-based request tracking, propagated into log lines
  - Prometheus Metrics: request latency by method, route pattern and status

Both are chi-compatible (func(http.Handler) http.Handler):

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

PrometheusMetrics labels requests with the chi route pattern ("/status")
instead of the raw path, so unknown paths collapse into one series.
*/
package middleware
