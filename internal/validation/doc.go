// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

// Package validation provides struct validation using go-playground/validator v10.
//
// Features:
//   - Singleton validator instance (thread-safe, caches struct info)
//   - Fields are named by their koanf tag, so an error points at the
//     configuration key ("replication.port") rather than the Go field
//   - Human-readable messages for the common range and enum tags
//
// Example usage:
//
//	type ServerConfig struct {
//	    Port int `koanf:"port" validate:"gte=1,lte=65535"`
//	}
//
//	if err := validation.ValidateStruct(&cfg); err != nil {
//	    for _, fe := range err.Errors() {
//	        fmt.Println(fe.Key(), fe.Error())
//	    }
//	}
package validation
