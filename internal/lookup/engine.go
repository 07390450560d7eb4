// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

// Package lookup answers catalog and price queries against the current
// dataset snapshots.
//
// Every lookup first nudges the owning coordinator via EnsureFresh, which
// never blocks: a stale snapshot keeps answering while the refresh runs in
// the background. A dataset that has never loaded is the only case a lookup
// cannot answer.
package lookup

import (
	"context"
	"sort"
	"time"

	"github.com/tcgtools/cardstock/internal/metrics"
	"github.com/tcgtools/cardstock/internal/models"
	"github.com/tcgtools/cardstock/internal/normalize"
	"github.com/tcgtools/cardstock/internal/refresh"
)

// Engine resolves lookups against the catalog and price datasets. The two
// datasets are fully independent: a refresh or outage on one never affects
// answers from the other.
type Engine struct {
	catalog *refresh.Coordinator[models.SkuRecord]
	prices  *refresh.Coordinator[models.PriceRecord]
}

// NewEngine creates a lookup engine over the two dataset coordinators.
func NewEngine(catalog *refresh.Coordinator[models.SkuRecord], prices *refresh.Coordinator[models.PriceRecord]) *Engine {
	return &Engine{catalog: catalog, prices: prices}
}

// SnapshotInfo describes the snapshot that answered a lookup, for response
// metadata.
type SnapshotInfo struct {
	OK        bool
	FetchedAt time.Time
	Stale     bool
}

// CatalogInfo returns the catalog snapshot's metadata.
func (e *Engine) CatalogInfo() SnapshotInfo {
	return snapshotInfo(e.catalog)
}

// PricesInfo returns the price snapshot's metadata.
func (e *Engine) PricesInfo() SnapshotInfo {
	return snapshotInfo(e.prices)
}

func snapshotInfo[T any](c *refresh.Coordinator[T]) SnapshotInfo {
	snap, ok := c.Store().Read()
	if !ok {
		return SnapshotInfo{}
	}
	// Staleness is computed from the snapshot in hand, not a second store
	// read, so the flag always describes the snapshot this metadata is about.
	return SnapshotInfo{
		OK:        true,
		FetchedAt: snap.FetchedAt,
		Stale:     snap.Age(time.Now()) >= c.Store().TTL(),
	}
}

// Status reports both datasets' cache state.
func (e *Engine) Status() []models.DatasetStatus {
	now := time.Now()
	return []models.DatasetStatus{
		e.catalog.Store().Status(now),
		e.prices.Store().Status(now),
	}
}

// ForceRefresh runs a synchronous refresh of the named dataset ("catalog" or
// "prices"). ok is false for an unknown dataset name.
func (e *Engine) ForceRefresh(ctx context.Context, name string) (models.RefreshResult, bool) {
	switch name {
	case e.catalog.Store().Name():
		return e.catalog.RefreshNow(ctx), true
	case e.prices.Store().Name():
		return e.prices.RefreshNow(ctx), true
	default:
		return models.RefreshResult{}, false
	}
}

// LookupSku resolves one catalog lookup.
func (e *Engine) LookupSku(uuid string, f models.Filters) models.SkuLookup {
	start := time.Now()
	e.catalog.EnsureFresh()

	snap, ok := e.catalog.Store().Read()
	if !ok {
		metrics.RecordLookup("catalog", string(models.OutcomeUnavailable), time.Since(start))
		return models.SkuLookup{UUID: uuid, Outcome: models.OutcomeUnavailable}
	}
	if e.catalog.Store().IsStale(time.Now()) {
		metrics.StaleServes.WithLabelValues("catalog").Inc()
	}

	rec, found := snap.Entries[uuid]
	if !found {
		metrics.RecordLookup("catalog", string(models.OutcomeNotFound), time.Since(start))
		return models.SkuLookup{UUID: uuid, Outcome: models.OutcomeNotFound}
	}

	result := models.SkuLookup{
		UUID: uuid,
		Card: &models.CardInfo{
			Name:       rec.Name,
			SetCode:    rec.SetCode,
			CardNumber: rec.CardNumber,
			Rarity:     rec.Rarity,
		},
	}

	for _, v := range rec.Variants {
		if !f.MatchesCondition(v.Condition) || !f.MatchesPrinting(v.Printing) {
			continue
		}
		result.Matches = append(result.Matches, models.MatchedSku{
			Condition: v.Condition,
			Printing:  v.Printing,
			Provider:  v.Provider,
			SkuID:     v.SkuID,
		})
	}

	if len(result.Matches) == 0 {
		result.Outcome = models.OutcomeNoMatch
		result.Diagnostics = skuDiagnostics(rec)
	} else {
		result.Outcome = models.OutcomeMatch
	}

	metrics.RecordLookup("catalog", string(result.Outcome), time.Since(start))
	return result
}

// LookupPrice resolves one price lookup.
func (e *Engine) LookupPrice(uuid string, f models.Filters) models.PriceLookup {
	start := time.Now()
	e.prices.EnsureFresh()

	snap, ok := e.prices.Store().Read()
	if !ok {
		metrics.RecordLookup("prices", string(models.OutcomeUnavailable), time.Since(start))
		return models.PriceLookup{UUID: uuid, Outcome: models.OutcomeUnavailable}
	}
	if e.prices.Store().IsStale(time.Now()) {
		metrics.StaleServes.WithLabelValues("prices").Inc()
	}

	rec, found := snap.Entries[uuid]
	if !found {
		metrics.RecordLookup("prices", string(models.OutcomeNotFound), time.Since(start))
		return models.PriceLookup{UUID: uuid, Outcome: models.OutcomeNotFound}
	}

	result := e.matchPrices(uuid, rec, f)
	metrics.RecordLookup("prices", string(result.Outcome), time.Since(start))
	return result
}

// matchPrices navigates provider → kind → printing → condition, reporting
// which segment of the path was missing when nothing matches.
func (e *Engine) matchPrices(uuid string, rec models.PriceRecord, f models.Filters) models.PriceLookup {
	result := models.PriceLookup{UUID: uuid}

	provider := f.Provider
	if provider == "" {
		provider = normalize.TCGPlayer
	}
	kind := f.Kind
	if kind == "" {
		kind = models.Retail
	}

	pp, ok := rec.Paper[provider]
	if !ok {
		result.Outcome = models.OutcomeNoMatch
		result.Diagnostics = &models.Diagnostics{
			AvailableProviders: providerKeys(rec.Paper),
			MissingSegment:     "provider",
		}
		return result
	}

	table := pp.Table(kind)
	if len(table) == 0 {
		result.Outcome = models.OutcomeNoMatch
		result.Diagnostics = &models.Diagnostics{
			AvailableProviders: providerKeys(rec.Paper),
			MissingSegment:     string(kind),
		}
		return result
	}

	for _, printing := range printingKeys(table) {
		if !f.MatchesPrinting(printing) {
			continue
		}
		byCondition := table[printing]
		for _, condition := range conditionKeys(byCondition) {
			if !f.MatchesCondition(condition) {
				continue
			}
			result.Matches = append(result.Matches, models.MatchedPrice{
				Condition: condition,
				Printing:  printing,
				Provider:  provider,
				Kind:      kind,
				Price:     byCondition[condition],
			})
		}
	}

	if len(result.Matches) == 0 {
		result.Outcome = models.OutcomeNoMatch
		result.Diagnostics = priceDiagnostics(table)
	} else {
		result.Outcome = models.OutcomeMatch
	}
	return result
}

// LookupCombined joins the catalog and price lookups for one key. The
// combined outcome follows the catalog side; the price side is null when the
// price dataset has no entry or has never loaded, which is a normal result
// because pricing coverage is a subset of catalog coverage.
func (e *Engine) LookupCombined(uuid string, f models.Filters) models.CombinedLookup {
	sku := e.LookupSku(uuid, f)
	price := e.LookupPrice(uuid, f)

	combined := models.CombinedLookup{
		UUID:    uuid,
		Outcome: sku.Outcome,
		Sku:     &sku,
	}
	if price.Outcome != models.OutcomeNotFound && price.Outcome != models.OutcomeUnavailable {
		combined.Price = &price
	}
	return combined
}

// BulkSku resolves many catalog lookups. Results hold the input order, one
// result per requested key, including repeats.
func (e *Engine) BulkSku(uuids []string, f models.Filters) []models.SkuLookup {
	results := make([]models.SkuLookup, len(uuids))
	for i, uuid := range uuids {
		results[i] = e.LookupSku(uuid, f)
	}
	return results
}

// BulkPrice resolves many price lookups, preserving input order.
func (e *Engine) BulkPrice(uuids []string, f models.Filters) []models.PriceLookup {
	results := make([]models.PriceLookup, len(uuids))
	for i, uuid := range uuids {
		results[i] = e.LookupPrice(uuid, f)
	}
	return results
}

// BulkCombined resolves many combined lookups, preserving input order.
func (e *Engine) BulkCombined(uuids []string, f models.Filters) []models.CombinedLookup {
	results := make([]models.CombinedLookup, len(uuids))
	for i, uuid := range uuids {
		results[i] = e.LookupCombined(uuid, f)
	}
	return results
}

// skuDiagnostics lists the distinct conditions and printings a card's
// variants actually carry, in variant order.
func skuDiagnostics(rec models.SkuRecord) *models.Diagnostics {
	d := &models.Diagnostics{}
	seenC := make(map[normalize.Condition]struct{})
	seenP := make(map[normalize.Printing]struct{})
	for _, v := range rec.Variants {
		if _, dup := seenC[v.Condition]; !dup {
			seenC[v.Condition] = struct{}{}
			d.AvailableConditions = append(d.AvailableConditions, v.Condition)
		}
		if _, dup := seenP[v.Printing]; !dup {
			seenP[v.Printing] = struct{}{}
			d.AvailablePrintings = append(d.AvailablePrintings, v.Printing)
		}
	}
	return d
}

// priceDiagnostics lists what the selected price table actually offers.
func priceDiagnostics(table models.PriceTable) *models.Diagnostics {
	d := &models.Diagnostics{
		AvailablePrintings: printingKeys(table),
	}
	seen := make(map[normalize.Condition]struct{})
	for _, printing := range d.AvailablePrintings {
		for _, condition := range conditionKeys(table[printing]) {
			if _, dup := seen[condition]; !dup {
				seen[condition] = struct{}{}
				d.AvailableConditions = append(d.AvailableConditions, condition)
			}
		}
	}
	return d
}

// Canonical ordering ranks. Map iteration order is randomized, so match and
// diagnostic slices are ordered explicitly: canonical values first, unknown
// passthrough values after, alphabetically.
var printingRank = map[normalize.Printing]int{
	normalize.Normal: 0,
	normalize.Foil:   1,
	normalize.Etched: 2,
}

var conditionRank = map[normalize.Condition]int{
	normalize.NearMint:         0,
	normalize.LightlyPlayed:    1,
	normalize.ModeratelyPlayed: 2,
	normalize.HeavilyPlayed:    3,
	normalize.Damaged:          4,
}

func printingKeys(table models.PriceTable) []normalize.Printing {
	keys := make([]normalize.Printing, 0, len(table))
	for p := range table {
		keys = append(keys, p)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, iOK := printingRank[keys[i]]
		rj, jOK := printingRank[keys[j]]
		switch {
		case iOK && jOK:
			return ri < rj
		case iOK:
			return true
		case jOK:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

func conditionKeys(byCondition map[normalize.Condition]float64) []normalize.Condition {
	keys := make([]normalize.Condition, 0, len(byCondition))
	for c := range byCondition {
		keys = append(keys, c)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, iOK := conditionRank[keys[i]]
		rj, jOK := conditionRank[keys[j]]
		switch {
		case iOK && jOK:
			return ri < rj
		case iOK:
			return true
		case jOK:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

func providerKeys(paper map[normalize.Provider]models.ProviderPrices) []normalize.Provider {
	keys := make([]normalize.Provider, 0, len(paper))
	for p := range paper {
		keys = append(keys, p)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
