// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package models

import "time"

// APIErrorResponse wraps an error for the client.
//
// Example:
//
//	{
//	  "status": "error",
//	  "error": {"code": "NOT_FOUND", "message": "No route for /jobs"},
//	  "request_id": "0b7c...",
//	  "timestamp": "2026-01-09T12:00:00Z"
//	}
type APIErrorResponse struct {
	Status    string    `json:"status"`
	Error     APIError  `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// APIError represents an error response with structured error details.
//
// Common error codes:
//   - NOT_FOUND: no such endpoint
//   - METHOD_NOT_ALLOWED: the endpoint is read-only
//   - RATE_LIMIT_EXCEEDED: too many requests from one address
//   - INTERNAL_ERROR: the handler panicked or failed to encode
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
