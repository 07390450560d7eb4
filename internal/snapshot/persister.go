// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

// Package snapshot persists dataset snapshots to BadgerDB so a restart can
// serve data immediately instead of waiting minutes for the first upstream
// fetch. Persistence is best-effort: a failed save or load is logged and
// counted, never fatal, because the refresh path can always rebuild.
package snapshot

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tcgtools/cardstock/internal/logging"
	"github.com/tcgtools/cardstock/internal/metrics"
)

const keyPrefix = "snapshot:"

// envelope is the stored form of one dataset snapshot. Entries are kept as
// raw JSON so the persister does not need to know the dataset's record type.
type envelope struct {
	FetchedAt time.Time       `json:"fetched_at"`
	Entries   json.RawMessage `json:"entries"`
}

// Persister stores and retrieves dataset snapshots in a BadgerDB instance.
// Safe for concurrent use; Badger transactions provide the isolation.
type Persister struct {
	db *badger.DB
}

// Open opens (or creates) a Badger database at path.
func Open(path string) (*Persister, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db at %s: %w", path, err)
	}
	return &Persister{db: db}, nil
}

// OpenInMemory opens an in-memory Badger database. Used in tests and when
// persistence is enabled without a durable volume.
func OpenInMemory() (*Persister, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory snapshot db: %w", err)
	}
	return &Persister{db: db}, nil
}

// Close closes the underlying database.
func (p *Persister) Close() error {
	return p.db.Close()
}

// Save writes one dataset's snapshot, replacing any previous one. The whole
// snapshot lives under a single key so readers never observe a partial write.
func Save[T any](p *Persister, dataset string, entries map[string]T, fetchedAt time.Time) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		metrics.RecordSnapshotPersist(dataset, err)
		return fmt.Errorf("marshal %s entries: %w", dataset, err)
	}
	data, err := json.Marshal(envelope{FetchedAt: fetchedAt, Entries: raw})
	if err != nil {
		metrics.RecordSnapshotPersist(dataset, err)
		return fmt.Errorf("marshal %s envelope: %w", dataset, err)
	}

	err = p.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+dataset), data)
	})
	if err != nil {
		metrics.RecordSnapshotPersist(dataset, err)
		return fmt.Errorf("persist %s snapshot: %w", dataset, err)
	}

	metrics.RecordSnapshotPersist(dataset, nil)
	logging.Debug().
		Str("dataset", dataset).
		Int("bytes", len(data)).
		Msg("Snapshot persisted")
	return nil
}

// Load reads one dataset's snapshot. ok is false when no snapshot exists,
// which is the normal first-boot case and not an error.
func Load[T any](p *Persister, dataset string) (entries map[string]T, fetchedAt time.Time, ok bool, err error) {
	var env envelope
	err = p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + dataset))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		ok = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		})
	})
	if err != nil {
		metrics.RecordSnapshotLoad(dataset, err, false)
		return nil, time.Time{}, false, fmt.Errorf("load %s snapshot: %w", dataset, err)
	}
	if !ok {
		metrics.RecordSnapshotLoad(dataset, nil, true)
		return nil, time.Time{}, false, nil
	}

	if err := json.Unmarshal(env.Entries, &entries); err != nil {
		metrics.RecordSnapshotLoad(dataset, err, false)
		return nil, time.Time{}, false, fmt.Errorf("decode %s entries: %w", dataset, err)
	}

	metrics.RecordSnapshotLoad(dataset, nil, false)
	logging.Debug().
		Str("dataset", dataset).
		Int("entries", len(entries)).
		Time("fetched_at", env.FetchedAt).
		Msg("Snapshot loaded")
	return entries, env.FetchedAt, true, nil
}

// Delete removes one dataset's snapshot, if present.
func (p *Persister) Delete(dataset string) error {
	return p.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(keyPrefix + dataset))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}
