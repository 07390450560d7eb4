// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

// Package normalize maps free-form condition, printing and provider strings
// onto the canonical vocabulary used throughout Cardstock.
//
// All functions are pure and safe for concurrent use. Unknown inputs are
// never an error: they pass through as a lowercased token with spaces and
// hyphens stripped, and downstream matching simply yields no result for
// them.
package normalize

import "strings"

// Condition is a canonical card condition.
type Condition string

// Canonical conditions, best to worst.
const (
	NearMint         Condition = "nearmint"
	LightlyPlayed    Condition = "lightlyplayed"
	ModeratelyPlayed Condition = "moderatelyplayed"
	HeavilyPlayed    Condition = "heavilyplayed"
	Damaged          Condition = "damaged"
)

// Printing is a canonical printing/finish tier.
type Printing string

// Canonical printings. Frame styles like showcase and borderless are not a
// distinct price tier upstream, so they alias to Normal.
const (
	Normal Printing = "normal"
	Foil   Printing = "foil"
	Etched Printing = "etched"
)

// Provider is a canonical price provider.
type Provider string

// Canonical providers, matching the MTGJSON paper price sources.
const (
	TCGPlayer   Provider = "tcgplayer"
	CardKingdom Provider = "cardkingdom"
	CardMarket  Provider = "cardmarket"
	CardSphere  Provider = "cardsphere"
)

var conditionAliases = map[string]Condition{
	"nm":               NearMint,
	"nearmint":         NearMint,
	"mint":             NearMint,
	"m":                NearMint,
	"lp":               LightlyPlayed,
	"lightlyplayed":    LightlyPlayed,
	"slightlyplayed":   LightlyPlayed,
	"sp":               LightlyPlayed,
	"excellent":        LightlyPlayed,
	"ex":               LightlyPlayed,
	"mp":               ModeratelyPlayed,
	"moderatelyplayed": ModeratelyPlayed,
	"played":           ModeratelyPlayed,
	"good":             ModeratelyPlayed,
	"gd":               ModeratelyPlayed,
	"hp":               HeavilyPlayed,
	"heavilyplayed":    HeavilyPlayed,
	"poor":             Damaged,
	"damaged":          Damaged,
	"dmg":              Damaged,
}

var printingAliases = map[string]Printing{
	"normal":      Normal,
	"regular":     Normal,
	"nonfoil":     Normal,
	"showcase":    Normal,
	"borderless":  Normal,
	"extendedart": Normal,
	"foil":        Foil,
	"etched":      Etched,
	"etchedfoil":  Etched,
	"foiletched":  Etched,
}

var providerAliases = map[string]Provider{
	"tcgplayer":   TCGPlayer,
	"tcg":         TCGPlayer,
	"cardkingdom": CardKingdom,
	"ck":          CardKingdom,
	"cardmarket":  CardMarket,
	"mkm":         CardMarket,
	"cardsphere":  CardSphere,
}

// fold lowercases the input and strips spaces and hyphens so that
// "Near Mint", "near-mint" and "NEARMINT" all collapse to "nearmint".
func fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	return s
}

// ConditionOf maps a free-form condition string to its canonical form.
// Empty input defaults to NearMint; unrecognized input passes through as the
// folded token.
func ConditionOf(input string) Condition {
	folded := fold(input)
	if folded == "" {
		return NearMint
	}
	if c, ok := conditionAliases[folded]; ok {
		return c
	}
	return Condition(folded)
}

// PrintingOf maps a free-form printing string to its canonical form. Empty
// input defaults to Normal; unrecognized input passes through as the folded
// token.
func PrintingOf(input string) Printing {
	folded := fold(input)
	if folded == "" {
		return Normal
	}
	if p, ok := printingAliases[folded]; ok {
		return p
	}
	return Printing(folded)
}

// ProviderOf maps a free-form provider string to its canonical form. Empty
// input defaults to TCGPlayer; unrecognized input passes through as the
// folded token.
func ProviderOf(input string) Provider {
	folded := fold(input)
	if folded == "" {
		return TCGPlayer
	}
	if p, ok := providerAliases[folded]; ok {
		return p
	}
	return Provider(folded)
}

// Conditions maps a slice of free-form condition strings, dropping duplicates
// after normalization and preserving first-seen order. A nil or empty input
// returns nil, which matchers treat as "no restriction".
func Conditions(inputs []string) []Condition {
	if len(inputs) == 0 {
		return nil
	}
	seen := make(map[Condition]struct{}, len(inputs))
	out := make([]Condition, 0, len(inputs))
	for _, in := range inputs {
		c := ConditionOf(in)
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Printings maps a slice of free-form printing strings, dropping duplicates
// after normalization and preserving first-seen order.
func Printings(inputs []string) []Printing {
	if len(inputs) == 0 {
		return nil
	}
	seen := make(map[Printing]struct{}, len(inputs))
	out := make([]Printing, 0, len(inputs))
	for _, in := range inputs {
		p := PrintingOf(in)
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
