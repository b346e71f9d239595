// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Key prefix for trigger state in BadgerDB
const triggerKeyPrefix = "trigger:"

// StateStore persists the next fire time of each job.
type StateStore interface {
	// LoadNext returns the stored next fire time, and false when none is stored.
	LoadNext(id string) (time.Time, bool, error)

	// SaveNext stores the next fire time.
	SaveNext(id string, next time.Time) error

	Close() error
}

type triggerRecord struct {
	NextRun   time.Time `json:"next_run"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BadgerStore implements StateStore using BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens or creates a store in dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open scheduler state %s: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

// OpenInMemoryBadgerStore opens a store that is discarded on Close.
func OpenInMemoryBadgerStore() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory scheduler state: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// LoadNext implements StateStore.
func (s *BadgerStore) LoadNext(id string) (time.Time, bool, error) {
	var rec triggerRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(triggerKeyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load trigger %s: %w", id, err)
	}
	return rec.NextRun, true, nil
}

// SaveNext implements StateStore.
func (s *BadgerStore) SaveNext(id string, next time.Time) error {
	data, err := json.Marshal(triggerRecord{NextRun: next.UTC(), UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal trigger: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(triggerKeyPrefix+id), data)
	})
}

// Close implements StateStore.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
