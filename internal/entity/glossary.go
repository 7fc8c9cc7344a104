package entity

// GlossaryEntry maps a canonical code to its known alias spellings.
// Threshold, when > 0, overrides the normalizer's global match threshold
// for this entry.
type GlossaryEntry struct {
	Canonical string   `json:"canonical"`
	Aliases   []string `json:"aliases"`
	Threshold float64  `json:"threshold,omitempty"`
}
