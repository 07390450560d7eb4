// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

package lookup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tcgtools/cardstock/internal/dataset"
	"github.com/tcgtools/cardstock/internal/models"
	"github.com/tcgtools/cardstock/internal/normalize"
	"github.com/tcgtools/cardstock/internal/refresh"
)

// neverFetcher fails any fetch attempt. Engine tests publish snapshots
// directly, so a background refresh kicked off by EnsureFresh on a stale
// store just fails quietly and leaves the seeded snapshot alone.
type neverFetcher struct{}

func (neverFetcher) Fetch(ctx context.Context) ([]byte, error) {
	return nil, errors.New("no upstream in lookup tests")
}

func newTestEngine() (*Engine, *dataset.Store[models.SkuRecord], *dataset.Store[models.PriceRecord]) {
	catalogStore := dataset.NewStore[models.SkuRecord]("catalog", time.Hour)
	pricesStore := dataset.NewStore[models.PriceRecord]("prices", time.Hour)

	catalog := refresh.NewCoordinator(catalogStore, neverFetcher{},
		func([]byte) (map[string]models.SkuRecord, error) { return nil, nil }, nil, time.Second)
	prices := refresh.NewCoordinator(pricesStore, neverFetcher{},
		func([]byte) (map[string]models.PriceRecord, error) { return nil, nil }, nil, time.Second)

	return NewEngine(catalog, prices), catalogStore, pricesStore
}

func seedCatalog(store *dataset.Store[models.SkuRecord]) {
	store.Publish(map[string]models.SkuRecord{
		"abc-123": {
			UUID:       "abc-123",
			Name:       "Lightning Bolt",
			SetCode:    "LEA",
			CardNumber: "161",
			Rarity:     "common",
			Finishes:   []normalize.Printing{normalize.Normal},
			Variants: []models.SkuVariant{
				{Condition: normalize.NearMint, Printing: normalize.Normal, Provider: normalize.TCGPlayer, SkuID: "9001"},
				{Condition: normalize.LightlyPlayed, Printing: normalize.Normal, Provider: normalize.TCGPlayer, SkuID: "9002"},
				{Condition: normalize.Damaged, Printing: normalize.Normal, Provider: normalize.TCGPlayer, SkuID: "9003"},
			},
		},
		"def-456": {
			UUID: "def-456",
			Name: "Black Lotus",
			Variants: []models.SkuVariant{
				{Condition: normalize.NearMint, Printing: normalize.Foil, Provider: normalize.TCGPlayer, SkuID: "9100"},
			},
		},
	}, time.Now())
}

func seedPrices(store *dataset.Store[models.PriceRecord]) {
	store.Publish(map[string]models.PriceRecord{
		"abc-123": {
			UUID: "abc-123",
			Paper: map[normalize.Provider]models.ProviderPrices{
				normalize.TCGPlayer: {
					Retail: models.PriceTable{
						normalize.Normal: {
							normalize.NearMint:      1.50,
							normalize.LightlyPlayed: 1.20,
						},
					},
					Buylist: models.PriceTable{
						normalize.Normal: {normalize.NearMint: 0.90},
					},
				},
				normalize.CardKingdom: {
					Retail: models.PriceTable{
						normalize.Normal: {normalize.NearMint: 1.75},
					},
				},
			},
		},
	}, time.Now())
}

func TestLookupSkuMatch(t *testing.T) {
	e, catalog, _ := newTestEngine()
	seedCatalog(catalog)

	result := e.LookupSku("abc-123", models.Filters{
		Conditions: []normalize.Condition{normalize.NearMint},
	})
	if result.Outcome != models.OutcomeMatch {
		t.Fatalf("outcome = %s", result.Outcome)
	}
	if result.Card == nil || result.Card.Name != "Lightning Bolt" {
		t.Errorf("card info missing: %+v", result.Card)
	}
	if len(result.Matches) != 1 || result.Matches[0].SkuID != "9001" {
		t.Errorf("unexpected matches: %+v", result.Matches)
	}
	if result.Diagnostics != nil {
		t.Error("diagnostics should be absent on match")
	}
}

func TestLookupSkuNoFiltersMatchesAll(t *testing.T) {
	e, catalog, _ := newTestEngine()
	seedCatalog(catalog)

	result := e.LookupSku("abc-123", models.Filters{})
	if result.Outcome != models.OutcomeMatch {
		t.Fatalf("outcome = %s", result.Outcome)
	}
	if len(result.Matches) != 3 {
		t.Errorf("expected all 3 variants, got %d", len(result.Matches))
	}
	// Variant order survives filtering.
	if result.Matches[0].SkuID != "9001" || result.Matches[2].SkuID != "9003" {
		t.Errorf("variant order lost: %+v", result.Matches)
	}
}

func TestLookupSkuNotFound(t *testing.T) {
	e, catalog, _ := newTestEngine()
	seedCatalog(catalog)

	result := e.LookupSku("missing-uuid", models.Filters{})
	if result.Outcome != models.OutcomeNotFound {
		t.Errorf("outcome = %s, want not_found", result.Outcome)
	}
	if len(result.Matches) != 0 || result.Card != nil {
		t.Error("not_found must carry no matches or card info")
	}
}

func TestLookupSkuNoMatchDiagnostics(t *testing.T) {
	e, catalog, _ := newTestEngine()
	seedCatalog(catalog)

	// Key exists, but it has no Foil variants: a no_match with diagnostics
	// telling the caller what is actually available, distinct from not_found.
	result := e.LookupSku("abc-123", models.Filters{
		Conditions: []normalize.Condition{normalize.LightlyPlayed},
		Printings:  []normalize.Printing{normalize.Foil},
	})
	if result.Outcome != models.OutcomeNoMatch {
		t.Fatalf("outcome = %s, want no_match", result.Outcome)
	}
	d := result.Diagnostics
	if d == nil {
		t.Fatal("no_match must carry diagnostics")
	}
	if len(d.AvailablePrintings) != 1 || d.AvailablePrintings[0] != normalize.Normal {
		t.Errorf("available printings = %v", d.AvailablePrintings)
	}
	if len(d.AvailableConditions) != 3 {
		t.Errorf("available conditions = %v", d.AvailableConditions)
	}
}

func TestLookupSkuUnavailable(t *testing.T) {
	e, _, _ := newTestEngine()
	result := e.LookupSku("abc-123", models.Filters{})
	if result.Outcome != models.OutcomeUnavailable {
		t.Errorf("outcome = %s, want unavailable for never-loaded dataset", result.Outcome)
	}
}

func TestLookupPriceMatch(t *testing.T) {
	e, _, prices := newTestEngine()
	seedPrices(prices)

	result := e.LookupPrice("abc-123", models.Filters{
		Conditions: []normalize.Condition{normalize.NearMint},
		Printings:  []normalize.Printing{normalize.Normal},
	})
	if result.Outcome != models.OutcomeMatch {
		t.Fatalf("outcome = %s", result.Outcome)
	}
	if len(result.Matches) != 1 {
		t.Fatalf("expected 1 match, got %+v", result.Matches)
	}
	m := result.Matches[0]
	if m.Price != 1.50 || m.Kind != models.Retail || m.Provider != normalize.TCGPlayer {
		t.Errorf("unexpected match: %+v", m)
	}
}

func TestLookupPriceDefaultsProviderAndKind(t *testing.T) {
	e, _, prices := newTestEngine()
	seedPrices(prices)

	result := e.LookupPrice("abc-123", models.Filters{})
	if result.Outcome != models.OutcomeMatch {
		t.Fatalf("outcome = %s", result.Outcome)
	}
	for _, m := range result.Matches {
		if m.Provider != normalize.TCGPlayer || m.Kind != models.Retail {
			t.Errorf("defaults not applied: %+v", m)
		}
	}
	// Deterministic ordering: conditions best-to-worst within a printing.
	if result.Matches[0].Condition != normalize.NearMint {
		t.Errorf("expected nearmint first, got %+v", result.Matches[0])
	}
}

func TestLookupPriceBuylist(t *testing.T) {
	e, _, prices := newTestEngine()
	seedPrices(prices)

	result := e.LookupPrice("abc-123", models.Filters{Kind: models.Buylist})
	if result.Outcome != models.OutcomeMatch {
		t.Fatalf("outcome = %s", result.Outcome)
	}
	if len(result.Matches) != 1 || result.Matches[0].Price != 0.90 {
		t.Errorf("unexpected buylist matches: %+v", result.Matches)
	}
}

func TestLookupPriceMissingProvider(t *testing.T) {
	e, _, prices := newTestEngine()
	seedPrices(prices)

	result := e.LookupPrice("abc-123", models.Filters{Provider: normalize.CardSphere})
	if result.Outcome != models.OutcomeNoMatch {
		t.Fatalf("outcome = %s", result.Outcome)
	}
	d := result.Diagnostics
	if d == nil || d.MissingSegment != "provider" {
		t.Fatalf("expected provider missing segment, got %+v", d)
	}
	if len(d.AvailableProviders) != 2 {
		t.Errorf("available providers = %v", d.AvailableProviders)
	}
}

func TestLookupPriceMissingBuylistSide(t *testing.T) {
	e, _, prices := newTestEngine()
	seedPrices(prices)

	result := e.LookupPrice("abc-123", models.Filters{
		Provider: normalize.CardKingdom,
		Kind:     models.Buylist,
	})
	if result.Outcome != models.OutcomeNoMatch {
		t.Fatalf("outcome = %s", result.Outcome)
	}
	if result.Diagnostics == nil || result.Diagnostics.MissingSegment != "buylist" {
		t.Errorf("expected buylist missing segment, got %+v", result.Diagnostics)
	}
}

func TestLookupPriceNoMatchingCondition(t *testing.T) {
	e, _, prices := newTestEngine()
	seedPrices(prices)

	result := e.LookupPrice("abc-123", models.Filters{
		Conditions: []normalize.Condition{normalize.Damaged},
	})
	if result.Outcome != models.OutcomeNoMatch {
		t.Fatalf("outcome = %s", result.Outcome)
	}
	d := result.Diagnostics
	if d == nil {
		t.Fatal("no_match must carry diagnostics")
	}
	if len(d.AvailableConditions) != 2 || d.AvailableConditions[0] != normalize.NearMint {
		t.Errorf("available conditions = %v", d.AvailableConditions)
	}
}

func TestLookupCombined(t *testing.T) {
	e, catalog, prices := newTestEngine()
	seedCatalog(catalog)
	seedPrices(prices)

	result := e.LookupCombined("abc-123", models.Filters{})
	if result.Outcome != models.OutcomeMatch {
		t.Fatalf("outcome = %s", result.Outcome)
	}
	if result.Sku == nil || len(result.Sku.Matches) != 3 {
		t.Errorf("sku side missing: %+v", result.Sku)
	}
	if result.Price == nil || result.Price.Outcome != models.OutcomeMatch {
		t.Errorf("price side missing: %+v", result.Price)
	}
}

func TestLookupCombinedNullPrice(t *testing.T) {
	e, catalog, prices := newTestEngine()
	seedCatalog(catalog)
	seedPrices(prices)

	// def-456 is in the catalog but not in the price dataset. The combined
	// result still succeeds with a null price side.
	result := e.LookupCombined("def-456", models.Filters{})
	if result.Outcome != models.OutcomeMatch {
		t.Fatalf("outcome = %s", result.Outcome)
	}
	if result.Sku == nil || result.Sku.Outcome != models.OutcomeMatch {
		t.Errorf("sku side should match: %+v", result.Sku)
	}
	if result.Price != nil {
		t.Errorf("price side should be null, got %+v", result.Price)
	}
}

func TestLookupCombinedPriceDatasetDown(t *testing.T) {
	e, catalog, _ := newTestEngine()
	seedCatalog(catalog)

	result := e.LookupCombined("abc-123", models.Filters{})
	if result.Outcome != models.OutcomeMatch {
		t.Fatalf("catalog side must answer independently, outcome = %s", result.Outcome)
	}
	if result.Price != nil {
		t.Error("price side should be null while the price dataset has never loaded")
	}
}

func TestBulkPreservesOrderAndRepeats(t *testing.T) {
	e, catalog, _ := newTestEngine()
	seedCatalog(catalog)

	uuids := []string{"def-456", "missing", "abc-123", "def-456"}
	results := e.BulkSku(uuids, models.Filters{})
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for i, uuid := range uuids {
		if results[i].UUID != uuid {
			t.Errorf("result[%d].UUID = %q, want %q", i, results[i].UUID, uuid)
		}
	}
	if results[1].Outcome != models.OutcomeNotFound {
		t.Errorf("missing key outcome = %s", results[1].Outcome)
	}
	if results[0].Outcome != models.OutcomeMatch || results[3].Outcome != models.OutcomeMatch {
		t.Error("repeated key should resolve both times")
	}
}

func TestSnapshotInfo(t *testing.T) {
	e, catalog, _ := newTestEngine()

	if info := e.CatalogInfo(); info.OK {
		t.Error("never-loaded dataset should report OK=false")
	}

	fetched := time.Now().Add(-2 * time.Hour) // beyond the 1h TTL
	seedCatalogAt(catalog, fetched)
	info := e.CatalogInfo()
	if !info.OK || !info.Stale {
		t.Errorf("expected stale snapshot info, got %+v", info)
	}
	if !info.FetchedAt.Equal(fetched) {
		t.Errorf("fetched_at = %v, want %v", info.FetchedAt, fetched)
	}
}

func seedCatalogAt(store *dataset.Store[models.SkuRecord], fetched time.Time) {
	store.Publish(map[string]models.SkuRecord{
		"abc-123": {UUID: "abc-123", Variants: []models.SkuVariant{
			{Condition: normalize.NearMint, Printing: normalize.Normal, Provider: normalize.TCGPlayer, SkuID: "1"},
		}},
	}, fetched)
}
