// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package logging

import (
	"strings"
	"unicode"
)

// maxValueLength bounds untrusted strings written to logs.
const maxValueLength = 2048

// Redact masks a secret value. Empty values stay empty so that "not set"
// remains distinguishable from "set" in startup logs.
func Redact(value string) string {
	if value == "" {
		return ""
	}
	return "[REDACTED]"
}

// SanitizeValue prepares untrusted text (command stderr, remote snapshot
// names) for logging: control characters other than tab are replaced with
// spaces, surrounding whitespace is trimmed, and the result is truncated.
func SanitizeValue(value string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, value)
	cleaned = strings.TrimSpace(cleaned)
	if len(cleaned) > maxValueLength {
		cleaned = cleaned[:maxValueLength] + "...(truncated)"
	}
	return cleaned
}
