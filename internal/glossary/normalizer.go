package glossary

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Rhymond/go-money"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/docuparse/invoice-pipeline/constants"
)

// NormalizedValue is the outcome of one normalization. When Matched is false
// the original value is carried through unchanged, tagged unmatched.
type NormalizedValue struct {
	Input     string  `json:"input"`
	Value     string  `json:"value"`
	Matched   bool    `json:"matched"`
	Score     float64 `json:"score,omitempty"`
	Distance  int     `json:"distance,omitempty"`
	Canonical string  `json:"canonical,omitempty"`
}

// Normalizer maps raw extracted strings to canonical codes by edit-distance
// similarity against a category's alias set. Deterministic: same input and
// glossary always yield the same output.
type Normalizer struct {
	g         *Glossary
	threshold float64
	logger    *slog.Logger
}

func NewNormalizer(g *Glossary, threshold float64, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if threshold <= 0 || threshold > 1 {
		threshold = 0.82
	}
	return &Normalizer{g: g, threshold: threshold, logger: logger}
}

// Normalize matches raw against the category's aliases. Exact (case/space
// folded) alias hits win outright; otherwise the best fuzzy candidate above
// the threshold is taken. Ties on similarity break toward the smaller edit
// distance, then the lexicographically smallest canonical code.
func (n *Normalizer) Normalize(raw string, cat constants.GlossaryCategory) NormalizedValue {
	out := NormalizedValue{Input: raw, Value: raw}
	folded := fold(raw)
	if folded == "" {
		return out
	}

	// ISO-4217 codes are canonical on their own; no alias table needed.
	if cat == constants.CategoryCurrency {
		if cur := money.GetCurrency(folded); cur != nil {
			out.Value = cur.Code
			out.Canonical = cur.Code
			out.Matched = true
			out.Score = 1
			return out
		}
	}

	var best *candidate

	for _, e := range n.g.Entries(cat) {
		threshold := n.threshold
		if e.Threshold > 0 {
			threshold = e.Threshold
		}
		for _, alias := range e.Aliases {
			fa := fold(alias)
			if fa == "" {
				continue
			}
			if fa == folded {
				out.Value = e.Canonical
				out.Canonical = e.Canonical
				out.Matched = true
				out.Score = 1
				return out
			}
			dist := fuzzy.LevenshteinDistance(folded, fa)
			score := similarity(dist, utf8.RuneCountInString(folded), utf8.RuneCountInString(fa))
			if score < threshold {
				continue
			}
			c := candidate{canonical: e.Canonical, dist: dist, score: score}
			if best == nil || better(c, *best) {
				best = &c
			}
		}
	}

	if best == nil {
		n.logger.Debug("glossary.unmatched", "category", string(cat), "input", raw)
		return out
	}
	out.Value = best.canonical
	out.Canonical = best.canonical
	out.Matched = true
	out.Score = best.score
	out.Distance = best.dist
	return out
}

type candidate struct {
	canonical string
	dist      int
	score     float64
}

func better(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	return a.canonical < b.canonical
}

// similarity scales an edit distance to 0..1 over the longer input. Lengths
// are in runes to match the rune-based distance; byte lengths would inflate
// scores for accented strings.
func similarity(dist, runesA, runesB int) float64 {
	max := runesA
	if runesB > max {
		max = runesB
	}
	if max == 0 {
		return 0
	}
	s := 1 - float64(dist)/float64(max)
	if s < 0 {
		return 0
	}
	return s
}

// fold uppercases and collapses runs of whitespace so "tva  20 %" and
// "TVA 20%" compare equal before edit distance kicks in.
func fold(s string) string {
	fields := strings.Fields(strings.ToUpper(strings.TrimSpace(s)))
	return strings.Join(fields, " ")
}
