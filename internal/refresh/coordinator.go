// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

package refresh

import (
	"context"
	"time"

	"github.com/tcgtools/cardstock/internal/dataset"
	"github.com/tcgtools/cardstock/internal/logging"
	"github.com/tcgtools/cardstock/internal/metrics"
	"github.com/tcgtools/cardstock/internal/models"
	"github.com/tcgtools/cardstock/internal/snapshot"
)

// TransformFunc converts a raw upstream payload into the dataset's entry map.
// Implementations own both parsing and normalization so the coordinator never
// sees upstream shapes.
type TransformFunc[T any] func(raw []byte) (map[string]T, error)

// Coordinator drives refreshes for one dataset. The store's refresh slot
// guarantees single-flight: no matter how many callers notice staleness at
// once, at most one fetch of the (large) upstream document runs at a time.
type Coordinator[T any] struct {
	store     *dataset.Store[T]
	fetcher   Fetcher
	transform TransformFunc[T]
	persister *snapshot.Persister // nil disables persistence
	timeout   time.Duration
}

// NewCoordinator creates a coordinator for the store's dataset. persister may
// be nil when snapshot persistence is disabled.
func NewCoordinator[T any](store *dataset.Store[T], fetcher Fetcher, transform TransformFunc[T], persister *snapshot.Persister, fetchTimeout time.Duration) *Coordinator[T] {
	return &Coordinator[T]{
		store:     store,
		fetcher:   fetcher,
		transform: transform,
		persister: persister,
		timeout:   fetchTimeout,
	}
}

// Store returns the coordinator's dataset store.
func (c *Coordinator[T]) Store() *dataset.Store[T] { return c.store }

// LoadPersisted publishes a previously persisted snapshot, if one exists.
// Called once at startup, before the HTTP server accepts traffic. The loaded
// snapshot may already be stale; that is fine, staleness just means the next
// lookup schedules a refresh while the old data keeps answering.
func (c *Coordinator[T]) LoadPersisted() {
	if c.persister == nil {
		return
	}
	entries, fetchedAt, ok, err := snapshot.Load[T](c.persister, c.store.Name())
	if err != nil {
		logging.Warn().Err(err).Str("dataset", c.store.Name()).Msg("Failed to load persisted snapshot")
		return
	}
	if !ok {
		return
	}
	c.store.Publish(entries, fetchedAt)
	logging.Info().
		Str("dataset", c.store.Name()).
		Int("entries", len(entries)).
		Time("fetched_at", fetchedAt).
		Msg("Persisted snapshot restored")
}

// EnsureFresh checks staleness and, when needed, starts a background refresh.
// It never blocks: if the data is fresh or a refresh is already running it
// returns immediately, and the caller proceeds against the current snapshot.
func (c *Coordinator[T]) EnsureFresh() {
	now := time.Now()
	if !c.store.IsStale(now) {
		return
	}
	// The claim rechecks staleness under the store's lock: a refresh that
	// published between the check above and here makes the claim a no-op.
	if !c.store.TryBeginRefreshIfStale(now) {
		metrics.RefreshSkipped.WithLabelValues(c.store.Name()).Inc()
		return
	}

	// Detached from any request context: the refresh outlives the caller.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		c.run(ctx)
	}()
}

// RefreshNow performs a synchronous forced refresh, bypassing the staleness
// check. If a refresh is already in flight the call reports AlreadyRunning
// instead of starting a second fetch.
func (c *Coordinator[T]) RefreshNow(ctx context.Context) models.RefreshResult {
	name := c.store.Name()
	if !c.store.TryBeginRefresh(time.Now()) {
		metrics.RefreshSkipped.WithLabelValues(name).Inc()
		return models.RefreshResult{
			Dataset:        name,
			AlreadyRunning: true,
		}
	}

	start := time.Now()
	count, err := c.run(ctx)
	result := models.RefreshResult{
		Dataset:    name,
		Success:    err == nil,
		ItemCount:  count,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

// run executes one refresh. The caller must already hold the refresh slot;
// run releases it. On failure the previous snapshot stays published.
func (c *Coordinator[T]) run(ctx context.Context) (int, error) {
	name := c.store.Name()
	start := time.Now()

	logging.Info().Str("dataset", name).Msg("Dataset refresh started")

	raw, err := c.fetcher.Fetch(ctx)
	if err != nil {
		c.store.EndRefresh(err)
		metrics.RecordRefresh(name, time.Since(start), 0, err, "fetch")
		logging.Error().Err(err).Str("dataset", name).Msg("Dataset fetch failed")
		return 0, err
	}

	entries, err := c.transform(raw)
	if err != nil {
		c.store.EndRefresh(err)
		metrics.RecordRefresh(name, time.Since(start), 0, err, "transform")
		logging.Error().Err(err).Str("dataset", name).Msg("Dataset transform failed")
		return 0, err
	}

	fetchedAt := time.Now()
	c.store.Publish(entries, fetchedAt)
	c.store.EndRefresh(nil)
	metrics.RecordRefresh(name, time.Since(start), len(entries), nil, "")

	logging.Info().
		Str("dataset", name).
		Int("entries", len(entries)).
		Dur("duration", time.Since(start)).
		Msg("Dataset refresh complete")

	// Persistence is best-effort; the snapshot is already live in memory.
	if c.persister != nil {
		if err := snapshot.Save(c.persister, name, entries, fetchedAt); err != nil {
			logging.Warn().Err(err).Str("dataset", name).Msg("Failed to persist snapshot")
		}
	}

	return len(entries), nil
}
