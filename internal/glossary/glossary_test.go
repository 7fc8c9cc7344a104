package glossary_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuparse/invoice-pipeline/constants"
	"github.com/docuparse/invoice-pipeline/internal/glossary"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"currency": [{"canonical": "EUR", "aliases": ["€", "EUROS"]}],
		"provider_name": [{"canonical": "EDF", "aliases": ["ELECTRICITE DE FRANCE", "E.D.F."], "threshold": 0.9}]
	}`), 0o600))

	g, err := glossary.LoadFile(path)
	require.NoError(t, err)

	cur := g.Entries(constants.CategoryCurrency)
	require.Len(t, cur, 1)
	assert.Equal(t, "EUR", cur[0].Canonical)

	prov := g.Entries(constants.CategoryProviderName)
	require.Len(t, prov, 1)
	assert.Equal(t, 0.9, prov[0].Threshold)

	n := glossary.NewNormalizer(g, 0.82, nil)
	exact := n.Normalize("ELECTRICITE DE FRANCE", constants.CategoryProviderName)
	require.True(t, exact.Matched)
	assert.Equal(t, "EDF", exact.Value)
}

func TestLoadFileUnknownCategory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"colour": []}`), 0o600))

	_, err := glossary.LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestEntriesSortedByCanonical(t *testing.T) {
	g := glossary.Default()
	entries := g.Entries(constants.CategoryVATCode)
	require.NotEmpty(t, entries)
	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].Canonical, entries[i].Canonical)
	}
}
