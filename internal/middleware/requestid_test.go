// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func serveWithRequestID(t *testing.T, incoming string) (header, captured string) {
	t.Helper()
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	if incoming != "" {
		req.Header.Set(RequestIDHeader, incoming)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Header().Get(RequestIDHeader), captured
}

func TestRequestID_GeneratesNewID(t *testing.T) {
	t.Parallel()

	header, captured := serveWithRequestID(t, "")
	if _, err := uuid.Parse(header); err != nil {
		t.Errorf("Response X-Request-ID is not a valid UUID: %v", err)
	}
	if captured != header {
		t.Errorf("Context ID (%s) doesn't match response header ID (%s)", captured, header)
	}
}

func TestRequestID_PreservesExistingID(t *testing.T) {
	t.Parallel()

	existing := "existing-request-id-12345"
	header, captured := serveWithRequestID(t, existing)
	if header != existing || captured != existing {
		t.Errorf("got header %q context %q, want %q", header, captured, existing)
	}
}

func TestRequestID_RejectsUnsafeIDs(t *testing.T) {
	t.Parallel()

	for _, incoming := range []string{
		"has space",
		"line\nbreak",
		strings.Repeat("a", maxRequestIDLength+1),
	} {
		header, _ := serveWithRequestID(t, incoming)
		if header == incoming {
			t.Errorf("unsafe ID %q was echoed", incoming)
		}
		if _, err := uuid.Parse(header); err != nil {
			t.Errorf("replacement ID %q is not a UUID", header)
		}
	}
}
