// Package glossary holds the canonical-code reference data and the fuzzy
// normalizer that maps noisy OCR strings onto it. The Glossary is built once
// at startup and never mutated afterwards, so concurrent reads need no
// locking; tests inject fixture glossaries through the constructor.
package glossary

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/docuparse/invoice-pipeline/constants"
	"github.com/docuparse/invoice-pipeline/internal/entity"
)

type Glossary struct {
	entries map[constants.GlossaryCategory][]entity.GlossaryEntry
}

// New builds an immutable Glossary from per-category entries. Entries are
// copied and sorted by canonical code so matching order is reproducible
// regardless of input order.
func New(entries map[constants.GlossaryCategory][]entity.GlossaryEntry) *Glossary {
	m := make(map[constants.GlossaryCategory][]entity.GlossaryEntry, len(entries))
	for cat, list := range entries {
		cp := make([]entity.GlossaryEntry, len(list))
		copy(cp, list)
		sort.Slice(cp, func(i, j int) bool { return cp[i].Canonical < cp[j].Canonical })
		m[cat] = cp
	}
	return &Glossary{entries: m}
}

// LoadFile reads a lexicon JSON file keyed by category name:
//
//	{"currency": [{"canonical": "EUR", "aliases": ["€", "EUROS"]}], ...}
func LoadFile(path string) (*Glossary, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read glossary: %w", err)
	}
	var raw map[string][]entity.GlossaryEntry
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode glossary: %w", err)
	}
	entries := make(map[constants.GlossaryCategory][]entity.GlossaryEntry, len(raw))
	for k, v := range raw {
		if !constants.IsGlossaryCategory(k) {
			return nil, fmt.Errorf("unknown glossary category %q (known: %v)", k, constants.GlossaryCategories())
		}
		entries[constants.GlossaryCategory(k)] = v
	}
	return New(entries), nil
}

// Entries returns the category's entry list; callers must not modify it.
func (g *Glossary) Entries(cat constants.GlossaryCategory) []entity.GlossaryEntry {
	return g.entries[cat]
}

// Default returns the built-in lexicon used when no glossary file is
// configured. Currency aliases cover common symbols and spellings; VAT codes
// cover the French rate set the validator also defaults to.
func Default() *Glossary {
	return New(map[constants.GlossaryCategory][]entity.GlossaryEntry{
		constants.CategoryCurrency: {
			{Canonical: "EUR", Aliases: []string{"€", "EURO", "EUROS", "EUR"}},
			{Canonical: "USD", Aliases: []string{"$", "US$", "DOLLAR", "DOLLARS", "USD"}},
			{Canonical: "GBP", Aliases: []string{"£", "POUND", "POUNDS", "GBP"}},
			{Canonical: "CHF", Aliases: []string{"CHF", "FRANC SUISSE"}},
		},
		constants.CategoryVATCode: {
			{Canonical: "VAT0", Aliases: []string{"TVA 0%", "VAT 0%", "0%", "EXONERE", "EXEMPT"}},
			{Canonical: "VAT2.1", Aliases: []string{"TVA 2,1%", "TVA 2.1%", "2,1%", "2.1%"}},
			{Canonical: "VAT5.5", Aliases: []string{"TVA 5,5%", "TVA 5.5%", "5,5%", "5.5%"}},
			{Canonical: "VAT10", Aliases: []string{"TVA 10%", "VAT 10%", "10%"}},
			{Canonical: "VAT20", Aliases: []string{"TVA 20%", "VAT 20%", "20%", "TVA 20 %"}},
		},
		constants.CategoryProviderName: {},
	})
}
