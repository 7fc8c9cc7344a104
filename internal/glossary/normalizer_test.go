package glossary_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuparse/invoice-pipeline/constants"
	"github.com/docuparse/invoice-pipeline/internal/entity"
	"github.com/docuparse/invoice-pipeline/internal/glossary"
)

func TestNormalizeVATLabels(t *testing.T) {
	n := glossary.NewNormalizer(glossary.Default(), 0.82, nil)

	got := n.Normalize("TVA 20%", constants.CategoryVATCode)
	require.True(t, got.Matched)
	assert.Equal(t, "VAT20", got.Value)
	assert.Equal(t, float64(1), got.Score)

	// case and whitespace folding
	folded := n.Normalize("  tva   20%  ", constants.CategoryVATCode)
	require.True(t, folded.Matched)
	assert.Equal(t, "VAT20", folded.Value)
}

func TestNormalizeCurrency(t *testing.T) {
	n := glossary.NewNormalizer(glossary.Default(), 0.82, nil)

	// ISO codes resolve without touching the alias table
	iso := n.Normalize("usd", constants.CategoryCurrency)
	require.True(t, iso.Matched)
	assert.Equal(t, "USD", iso.Value)

	sym := n.Normalize("€", constants.CategoryCurrency)
	require.True(t, sym.Matched)
	assert.Equal(t, "EUR", sym.Value)

	fuzzy := n.Normalize("EUROS.", constants.CategoryCurrency)
	require.True(t, fuzzy.Matched)
	assert.Equal(t, "EUR", fuzzy.Value)
	assert.Greater(t, fuzzy.Score, 0.82)
}

func TestNormalizeUnmatchedPassthrough(t *testing.T) {
	n := glossary.NewNormalizer(glossary.Default(), 0.82, nil)

	got := n.Normalize("Fournisseur Inconnu SARL", constants.CategoryProviderName)
	assert.False(t, got.Matched)
	assert.Equal(t, "Fournisseur Inconnu SARL", got.Value)
}

func TestNormalizeDeterministicTieBreak(t *testing.T) {
	g := glossary.New(map[constants.GlossaryCategory][]entity.GlossaryEntry{
		constants.CategoryProviderName: {
			{Canonical: "ZEBRA", Aliases: []string{"ACMEX"}},
			{Canonical: "ALPHA", Aliases: []string{"ACMEY"}},
		},
	})
	n := glossary.NewNormalizer(g, 0.7, nil)

	// "ACMEZ" is distance 1 from both aliases; the smaller canonical wins
	for i := 0; i < 5; i++ {
		got := n.Normalize("ACMEZ", constants.CategoryProviderName)
		require.True(t, got.Matched)
		assert.Equal(t, "ALPHA", got.Value)
		assert.Equal(t, 1, got.Distance)
	}
}

func TestNormalizeAccentedScoringUsesRunes(t *testing.T) {
	g := glossary.New(map[constants.GlossaryCategory][]entity.GlossaryEntry{
		constants.CategoryProviderName: {
			{Canonical: "EDF", Aliases: []string{"ÉLECTRICITÉ"}},
		},
	})
	n := glossary.NewNormalizer(g, 0.75, nil)

	// 3 rune edits over 11 runes scores 8/11 ≈ 0.727; the multi-byte accents
	// must not stretch the denominator past the threshold
	miss := n.Normalize("ÉLACTRUCITA", constants.CategoryProviderName)
	assert.False(t, miss.Matched)
	assert.Equal(t, "ÉLACTRUCITA", miss.Value)

	// 1 rune edit over 12 runes scores ≈ 0.917 and matches
	hit := n.Normalize("ÉLECTRICITÉS", constants.CategoryProviderName)
	require.True(t, hit.Matched)
	assert.Equal(t, "EDF", hit.Value)
	assert.Equal(t, 1, hit.Distance)
}

func TestNormalizePerEntryThreshold(t *testing.T) {
	g := glossary.New(map[constants.GlossaryCategory][]entity.GlossaryEntry{
		constants.CategoryProviderName: {
			{Canonical: "STRICT", Aliases: []string{"STRICTCO"}, Threshold: 0.99},
		},
	})
	n := glossary.NewNormalizer(g, 0.5, nil)

	// distance 1 scores ~0.875, below the entry's own threshold
	got := n.Normalize("STRICTCX", constants.CategoryProviderName)
	assert.False(t, got.Matched)
}
