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

// catalogDocument is the SKU catalog envelope: a flat list of products, each
// carrying its purchasable SKU variants.
type catalogDocument struct {
	Results []catalogProduct `json:"results"`
}

type catalogProduct struct {
	UUID    string       `json:"uuid"`
	Name    string       `json:"name"`
	SetCode string       `json:"setCode"`
	Number  string       `json:"number"`
	Rarity  string       `json:"rarity"`
	Skus    []catalogSku `json:"skus"`
}

type catalogSku struct {
	SkuID     json.Number `json:"skuId"`
	Condition string      `json:"condition"`
	Printing  string      `json:"printing"`
}

// TransformCatalog parses a SKU catalog document into records keyed by card
// UUID. Conditions and printings are normalized; variant order within a card
// follows the upstream document so repeated refreshes of the same data yield
// identical records. Products without a UUID or without SKUs are dropped.
func TransformCatalog(raw []byte) (map[string]models.SkuRecord, error) {
	var doc catalogDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog document: %w", err)
	}
	if doc.Results == nil {
		return nil, fmt.Errorf("catalog document has no results section")
	}

	out := make(map[string]models.SkuRecord, len(doc.Results))
	for _, product := range doc.Results {
		if product.UUID == "" || len(product.Skus) == 0 {
			continue
		}

		rec := models.SkuRecord{
			UUID:       product.UUID,
			Name:       product.Name,
			SetCode:    product.SetCode,
			CardNumber: product.Number,
			Rarity:     product.Rarity,
			Variants:   make([]models.SkuVariant, 0, len(product.Skus)),
		}

		seenFinishes := make(map[normalize.Printing]struct{}, 3)
		for _, sku := range product.Skus {
			id := sku.SkuID.String()
			if id == "" {
				continue
			}
			printing := normalize.PrintingOf(sku.Printing)
			rec.Variants = append(rec.Variants, models.SkuVariant{
				Condition: normalize.ConditionOf(sku.Condition),
				Printing:  printing,
				Provider:  normalize.TCGPlayer,
				SkuID:     id,
			})
			if _, dup := seenFinishes[printing]; !dup {
				seenFinishes[printing] = struct{}{}
				rec.Finishes = append(rec.Finishes, printing)
			}
		}
		if len(rec.Variants) == 0 {
			continue
		}
		out[product.UUID] = rec
	}
	return out, nil
}
