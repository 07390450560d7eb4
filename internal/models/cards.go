// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

// Package models defines the domain records cached by Cardstock and the
// response types returned by the lookup engine and API layer.
package models

import (
	"time"

	"github.com/tcgtools/cardstock/internal/normalize"
)

// SkuRecord is one card's entry in the catalog dataset, keyed by the card's
// UUID. Variants preserve the upstream ordering so that bulk responses are
// deterministic.
type SkuRecord struct {
	UUID       string               `json:"uuid"`
	Name       string               `json:"name"`
	SetCode    string               `json:"set_code"`
	CardNumber string               `json:"card_number"`
	Rarity     string               `json:"rarity"`
	Finishes   []normalize.Printing `json:"finishes,omitempty"`
	Variants   []SkuVariant         `json:"variants"`
}

// SkuVariant is one purchasable variant of a card: a (condition, printing,
// provider) triple mapped to the provider's external SKU identifier.
type SkuVariant struct {
	Condition normalize.Condition `json:"condition"`
	Printing  normalize.Printing  `json:"printing"`
	Provider  normalize.Provider  `json:"provider"`
	SkuID     string              `json:"sku_id"`
}

// PriceTable holds prices in the canonical nesting order printing → condition.
// Upstream documents disagree on nesting order; the refresh transforms emit
// this shape so the lookup engine only ever navigates one layout.
type PriceTable map[normalize.Printing]map[normalize.Condition]float64

// ProviderPrices holds one provider's retail and buylist tables. Either side
// may be empty when the provider does not publish it.
type ProviderPrices struct {
	Retail  PriceTable `json:"retail,omitempty"`
	Buylist PriceTable `json:"buylist,omitempty"`
}

// PriceRecord is one card's entry in the price dataset: paper prices per
// provider. Non-paper formats are filtered out during transform.
type PriceRecord struct {
	UUID  string                                `json:"uuid"`
	Paper map[normalize.Provider]ProviderPrices `json:"paper"`
}

// PriceKind selects the retail or buylist side of a provider's prices.
type PriceKind string

// Price kinds.
const (
	Retail  PriceKind = "retail"
	Buylist PriceKind = "buylist"
)

// PriceKindOf maps a free-form kind string onto a PriceKind. Empty input
// defaults to Retail; anything other than "buylist" is treated as retail.
func PriceKindOf(input string) PriceKind {
	if input == string(Buylist) {
		return Buylist
	}
	return Retail
}

// Table returns the price table for the requested kind.
func (p ProviderPrices) Table(kind PriceKind) PriceTable {
	if kind == Buylist {
		return p.Buylist
	}
	return p.Retail
}

// DatasetStatus describes one dataset's cache state for the status endpoint.
type DatasetStatus struct {
	Dataset     string     `json:"dataset"`
	ItemCount   int        `json:"item_count"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	AgeSeconds  *float64   `json:"age_seconds,omitempty"`
	TTLSeconds  float64    `json:"ttl_seconds"`
	Stale       bool       `json:"stale"`
	InProgress  bool       `json:"in_progress"`
	LastError   string     `json:"last_error,omitempty"`
}

// RefreshResult reports the outcome of a forced refresh.
type RefreshResult struct {
	Dataset        string `json:"dataset"`
	Success        bool   `json:"success"`
	AlreadyRunning bool   `json:"already_running,omitempty"`
	ItemCount      int    `json:"item_count,omitempty"`
	DurationMS     int64  `json:"duration_ms,omitempty"`
	Error          string `json:"error,omitempty"`
}
