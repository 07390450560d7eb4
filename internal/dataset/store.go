// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

// Package dataset provides the concurrency-safe snapshot store that backs
// each cached dataset.
//
// A Store holds one immutable snapshot at a time. Publish replaces the whole
// snapshot under the write lock; readers take the read lock only long enough
// to copy the map reference, so lookups during a refresh keep seeing the old
// snapshot until the swap. Published maps are never mutated afterwards,
// which is what makes handing the reference out safe.
package dataset

import (
	"sync"
	"time"

	"github.com/tcgtools/cardstock/internal/metrics"
	"github.com/tcgtools/cardstock/internal/models"
)

// Snapshot is one published generation of a dataset: the entries and the time
// they were fetched from upstream. Entries must be treated as read-only.
type Snapshot[T any] struct {
	Entries   map[string]T
	FetchedAt time.Time
}

// Age returns how old the snapshot is at now.
func (s Snapshot[T]) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}

// Store holds the current snapshot of one dataset plus its refresh state.
// A single mutex guards both so a snapshot read and its staleness verdict
// are always consistent; the two dataset stores in the process share nothing,
// so one dataset refreshing never blocks reads of the other.
type Store[T any] struct {
	name string
	ttl  time.Duration

	mu          sync.RWMutex
	entries     map[string]T
	fetchedAt   time.Time
	hasData     bool
	inProgress  bool
	lastError   string
	lastAttempt time.Time
}

// NewStore creates an empty store for the named dataset with the given TTL.
func NewStore[T any](name string, ttl time.Duration) *Store[T] {
	return &Store[T]{
		name: name,
		ttl:  ttl,
	}
}

// Name returns the dataset name.
func (s *Store[T]) Name() string { return s.name }

// TTL returns the configured time-to-live.
func (s *Store[T]) TTL() time.Duration { return s.ttl }

// Publish atomically replaces the current snapshot. The caller hands over
// ownership of entries and must not modify it afterwards.
func (s *Store[T]) Publish(entries map[string]T, fetchedAt time.Time) {
	s.mu.Lock()
	s.entries = entries
	s.fetchedAt = fetchedAt
	s.hasData = true
	s.lastError = ""
	s.mu.Unlock()

	metrics.DatasetEntries.WithLabelValues(s.name).Set(float64(len(entries)))
	metrics.RefreshLastSuccess.WithLabelValues(s.name).Set(float64(fetchedAt.Unix()))
}

// Read returns the current snapshot. ok is false when no refresh has ever
// succeeded, in which case the snapshot is zero. A stale snapshot is still
// returned with ok true; staleness is the caller's concern via IsStale.
func (s *Store[T]) Read() (snap Snapshot[T], ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasData {
		return Snapshot[T]{}, false
	}
	return Snapshot[T]{Entries: s.entries, FetchedAt: s.fetchedAt}, true
}

// IsStale reports whether the store needs a refresh at now: either no data
// has ever been published, or the snapshot has reached the TTL. The boundary
// is inclusive: age == TTL is already stale.
func (s *Store[T]) IsStale(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.staleLocked(now)
}

func (s *Store[T]) staleLocked(now time.Time) bool {
	if !s.hasData {
		return true
	}
	return now.Sub(s.fetchedAt) >= s.ttl
}

// TryBeginRefresh claims the refresh slot. It returns true when the caller
// now owns the refresh and must finish with EndRefresh, false when another
// refresh is already running. This is the single-flight gate: claim and check
// happen under one lock, so exactly one claimant wins.
func (s *Store[T]) TryBeginRefresh(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inProgress {
		return false
	}
	s.inProgress = true
	s.lastAttempt = now
	return true
}

// TryBeginRefreshIfStale claims the refresh slot only while the data is still
// stale at now. Staleness is rechecked under the same lock as the claim, so a
// publish landing between a caller's staleness check and its claim cancels
// the now-redundant refresh instead of refetching fresh data.
func (s *Store[T]) TryBeginRefreshIfStale(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inProgress || !s.staleLocked(now) {
		return false
	}
	s.inProgress = true
	s.lastAttempt = now
	return true
}

// EndRefresh releases the refresh slot. A non-nil err is recorded for the
// status endpoint; the previous snapshot stays published untouched.
func (s *Store[T]) EndRefresh(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inProgress = false
	if err != nil {
		s.lastError = err.Error()
	}
}

// InProgress reports whether a refresh is currently running.
func (s *Store[T]) InProgress() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inProgress
}

// Status returns a consistent view of the store for the status endpoint.
func (s *Store[T]) Status(now time.Time) models.DatasetStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := models.DatasetStatus{
		Dataset:    s.name,
		TTLSeconds: s.ttl.Seconds(),
		Stale:      s.staleLocked(now),
		InProgress: s.inProgress,
		LastError:  s.lastError,
	}
	if s.hasData {
		st.ItemCount = len(s.entries)
		fetched := s.fetchedAt
		st.LastUpdated = &fetched
		age := now.Sub(s.fetchedAt).Seconds()
		st.AgeSeconds = &age
	}
	return st
}
