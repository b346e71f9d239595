// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package api

import (
	"net/http"
	"runtime/debug"

	"github.com/tomtom215/snapvault/internal/logging"
)

// recoverer turns a handler panic into a 500 and a structured log line.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity, as net/http does
				panic(rec)
			}
			logging.Ctx(r.Context()).Error().
				Interface("panic", rec).
				Str("path", logging.SanitizeValue(r.URL.Path)).
				Bytes("stack", debug.Stack()).
				Msg("HTTP handler panicked")
			respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}
