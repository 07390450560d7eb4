// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

package models

import "github.com/tcgtools/cardstock/internal/normalize"

// Filters narrows a lookup to specific conditions, printings and a single
// provider. An empty slice means "no restriction" for that axis. Values are
// expected in canonical form; the API layer normalizes request input before
// building a Filters.
type Filters struct {
	Conditions []normalize.Condition `json:"conditions,omitempty"`
	Printings  []normalize.Printing  `json:"printings,omitempty"`
	Provider   normalize.Provider    `json:"provider,omitempty"`
	Kind       PriceKind             `json:"kind,omitempty"`
}

// MatchesCondition reports whether c passes the condition filter.
func (f Filters) MatchesCondition(c normalize.Condition) bool {
	if len(f.Conditions) == 0 {
		return true
	}
	for _, want := range f.Conditions {
		if want == c {
			return true
		}
	}
	return false
}

// MatchesPrinting reports whether p passes the printing filter.
func (f Filters) MatchesPrinting(p normalize.Printing) bool {
	if len(f.Printings) == 0 {
		return true
	}
	for _, want := range f.Printings {
		if want == p {
			return true
		}
	}
	return false
}

// Outcome classifies a lookup result. NotFound (key absent) is distinct from
// NoMatch (key present, filters eliminated every record) and from Unavailable
// (the dataset has never successfully refreshed), so callers can tell a true
// negative from a retry-later situation.
type Outcome string

// Lookup outcomes.
const (
	OutcomeMatch       Outcome = "match"
	OutcomeNoMatch     Outcome = "no_match"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeUnavailable Outcome = "unavailable"
)

// Diagnostics carries the context a caller needs to self-correct after a
// NoMatch: which conditions and printings actually exist for the key, or
// which segment of the price path was missing.
type Diagnostics struct {
	AvailableConditions []normalize.Condition `json:"available_conditions,omitempty"`
	AvailablePrintings  []normalize.Printing  `json:"available_printings,omitempty"`
	AvailableProviders  []normalize.Provider  `json:"available_providers,omitempty"`
	MissingSegment      string                `json:"missing_segment,omitempty"`
}

// MatchedSku is one SKU variant that survived filtering, in canonical
// vocabulary.
type MatchedSku struct {
	Condition normalize.Condition `json:"condition"`
	Printing  normalize.Printing  `json:"printing"`
	Provider  normalize.Provider  `json:"provider"`
	SkuID     string              `json:"sku_id"`
}

// MatchedPrice is one price point that survived filtering.
type MatchedPrice struct {
	Condition normalize.Condition `json:"condition"`
	Printing  normalize.Printing  `json:"printing"`
	Provider  normalize.Provider  `json:"provider"`
	Kind      PriceKind           `json:"kind"`
	Price     float64             `json:"price"`
}

// SkuLookup is the result of a catalog lookup for one key.
type SkuLookup struct {
	UUID        string       `json:"uuid"`
	Outcome     Outcome      `json:"outcome"`
	Card        *CardInfo    `json:"card,omitempty"`
	Matches     []MatchedSku `json:"matches"`
	Diagnostics *Diagnostics `json:"diagnostics,omitempty"`
}

// CardInfo is the card-level identity carried alongside SKU matches.
type CardInfo struct {
	Name       string `json:"name"`
	SetCode    string `json:"set_code"`
	CardNumber string `json:"card_number"`
	Rarity     string `json:"rarity"`
}

// PriceLookup is the result of a price lookup for one key.
type PriceLookup struct {
	UUID        string         `json:"uuid"`
	Outcome     Outcome        `json:"outcome"`
	Matches     []MatchedPrice `json:"matches"`
	Diagnostics *Diagnostics   `json:"diagnostics,omitempty"`
}

// CombinedLookup joins a catalog lookup with an optional price lookup for
// the same key. Price is null when the price dataset has no entry for the
// key; pricing coverage is a strict subset of catalog coverage, so this is a
// normal result rather than an error.
type CombinedLookup struct {
	UUID    string       `json:"uuid"`
	Outcome Outcome      `json:"outcome"`
	Sku     *SkuLookup   `json:"sku,omitempty"`
	Price   *PriceLookup `json:"price"`
}
