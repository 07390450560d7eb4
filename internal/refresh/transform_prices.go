// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

package refresh

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tcgtools/cardstock/internal/models"
	"github.com/tcgtools/cardstock/internal/normalize"
)

// mtgjsonDocument is the MTGJSON AllPricesToday envelope. Only the data
// section is decoded; meta is ignored.
type mtgjsonDocument struct {
	Data map[string]mtgjsonCard `json:"data"`
}

// mtgjsonCard holds one card's price listings. Non-paper formats (mtgo,
// arena) are not decoded; pricing here is for physical cards only.
type mtgjsonCard struct {
	Paper map[string]mtgjsonProvider `json:"paper"`
}

// mtgjsonProvider nests condition → printing → price. That order is the
// upstream's; TransformPrices re-nests into the canonical printing →
// condition layout.
type mtgjsonProvider struct {
	Retail  map[string]map[string]float64 `json:"retail"`
	Buylist map[string]map[string]float64 `json:"buylist"`
}

// TransformPrices parses an AllPricesToday document into price records keyed
// by card UUID. Provider, condition and printing names are normalized, and
// the per-provider tables are re-nested from the upstream condition→printing
// order into printing→condition so the lookup engine navigates one layout.
func TransformPrices(raw []byte) (map[string]models.PriceRecord, error) {
	var doc mtgjsonDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse prices document: %w", err)
	}
	if doc.Data == nil {
		return nil, fmt.Errorf("prices document has no data section")
	}

	out := make(map[string]models.PriceRecord, len(doc.Data))
	for uuid, card := range doc.Data {
		if len(card.Paper) == 0 {
			continue
		}
		rec := models.PriceRecord{
			UUID:  uuid,
			Paper: make(map[normalize.Provider]models.ProviderPrices, len(card.Paper)),
		}
		for providerName, listings := range card.Paper {
			provider := normalize.ProviderOf(providerName)
			pp := models.ProviderPrices{
				Retail:  renestTable(listings.Retail),
				Buylist: renestTable(listings.Buylist),
			}
			if pp.Retail == nil && pp.Buylist == nil {
				continue
			}
			rec.Paper[provider] = pp
		}
		if len(rec.Paper) == 0 {
			continue
		}
		out[uuid] = rec
	}
	return out, nil
}

// renestTable converts an upstream condition→printing table into the
// canonical printing→condition PriceTable. Returns nil for an empty input so
// absent sides stay absent.
func renestTable(byCondition map[string]map[string]float64) models.PriceTable {
	if len(byCondition) == 0 {
		return nil
	}
	table := make(models.PriceTable)
	for conditionName, byPrinting := range byCondition {
		condition := normalize.ConditionOf(conditionName)
		for printingName, price := range byPrinting {
			printing := normalize.PrintingOf(printingName)
			if table[printing] == nil {
				table[printing] = make(map[normalize.Condition]float64)
			}
			table[printing][condition] = price
		}
	}
	if len(table) == 0 {
		return nil
	}
	return table
}
