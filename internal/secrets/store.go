// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package secrets

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/snapvault/internal/logging"
)

// Well-known secret names.
const (
	B2KeyID           = "b2_key_id"
	B2ApplicationKey  = "b2_application_key"
	DiscordAlertToken = "discord_alert_token"
	ReplicationSSHKey = "replication_ssh_key"
)

// Source identifies where a secret was resolved from.
type Source string

// Secret sources.
const (
	SourceNone        Source = ""
	SourceDocker      Source = "docker_secrets"
	SourceLocal       Source = "local_file"
	SourceEnvironment Source = "environment"
	SourceLegacyEnv   Source = "legacy_environment"
)

// legacyEnv maps secret names to variables exported by existing tooling.
var legacyEnv = map[string]string{
	B2KeyID:           "B2_KEY_ID",
	B2ApplicationKey:  "B2_APPLICATION_KEY",
	DiscordAlertToken: "DISCORD_ALERT_TOKEN",
}

// Config configures a Store.
type Config struct {
	// DockerDir is the Docker secrets mount. Default: /run/secrets
	DockerDir string

	// LocalDir is the development fallback directory. Default: ./secrets
	LocalDir string

	// EnvPrefix is prepended to the upper-cased name. Default: VAULT_SECRET_
	EnvPrefix string
}

type entry struct {
	value  string
	source Source
}

// Store resolves and caches secrets. It is safe for concurrent use.
type Store struct {
	cfg    Config
	getenv func(string) (string, bool)
	logger zerolog.Logger

	mu    sync.Mutex
	cache map[string]entry
}

// NewStore creates a Store.
func NewStore(cfg Config) *Store {
	if cfg.DockerDir == "" {
		cfg.DockerDir = "/run/secrets"
	}
	if cfg.LocalDir == "" {
		cfg.LocalDir = "secrets"
	}
	if cfg.EnvPrefix == "" {
		cfg.EnvPrefix = "VAULT_SECRET_"
	}
	return &Store{
		cfg:    cfg,
		getenv: os.LookupEnv,
		logger: logging.Component("secrets"),
		cache:  make(map[string]entry),
	}
}

// Get returns the secret value and whether it was found.
func (s *Store) Get(name string) (string, bool) {
	e := s.resolve(name)
	return e.value, e.source != SourceNone
}

// Source reports where name resolves from, or SourceNone.
func (s *Store) Source(name string) Source {
	return s.resolve(name).source
}

// Reset clears the cache so the next lookup reads the sources again.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]entry)
}

func (s *Store) resolve(name string) entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.cache[name]; ok {
		return e
	}
	e := s.lookup(name)
	s.cache[name] = e

	if e.source == SourceNone {
		s.logger.Debug().Str("secret", name).Msg("Secret not found")
	} else {
		s.logger.Debug().Str("secret", name).Str("source", string(e.source)).Msg("Secret loaded")
	}
	return e
}

func (s *Store) lookup(name string) entry {
	if !validName(name) {
		s.logger.Warn().Str("secret", logging.SanitizeValue(name)).Msg("Rejected invalid secret name")
		return entry{}
	}

	if v, ok := s.readFile(s.cfg.DockerDir, name); ok {
		return entry{value: v, source: SourceDocker}
	}
	if v, ok := s.readFile(s.cfg.LocalDir, name); ok {
		return entry{value: v, source: SourceLocal}
	}
	if v, ok := s.getenv(s.cfg.EnvPrefix + strings.ToUpper(name)); ok && v != "" {
		return entry{value: v, source: SourceEnvironment}
	}
	if legacy, known := legacyEnv[name]; known {
		if v, ok := s.getenv(legacy); ok && v != "" {
			return entry{value: v, source: SourceLegacyEnv}
		}
	}
	return entry{}
}

func (s *Store) readFile(dir, name string) (string, bool) {
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn().Err(err).Str("secret", name).Str("dir", dir).Msg("Failed to read secret file")
		}
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// validName rejects names that could escape the secrets directories.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
