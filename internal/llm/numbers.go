package llm

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a monetary or quantity string with locale-aware
// separator detection: "1,234.56" (US), "1.234,56" (European), "1 234,56"
// (French) all parse to the same value. Currency symbols are stripped.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	// strip symbols and spacing (incl. non-breaking spaces used as group separators)
	for _, sym := range []string{"$", "€", "£", "¥", "₹", "R$", "CHF", " ", " ", " "} {
		s = strings.ReplaceAll(s, sym, "")
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.Trim(s, "()")
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		// both present: the rightmost one is the decimal separator
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		// comma only: decimal comma unless it reads as a thousands group
		if isThousandsGrouped(s, ',') {
			s = strings.ReplaceAll(s, ",", "")
		} else if strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			return decimal.Zero, fmt.Errorf("ambiguous separators in %q", s)
		}
	case lastDot >= 0:
		if isThousandsGrouped(s, '.') {
			s = strings.ReplaceAll(s, ".", "")
		} else if strings.Count(s, ".") > 1 {
			return decimal.Zero, fmt.Errorf("ambiguous separators in %q", s)
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// isThousandsGrouped reports whether every sep-delimited group after the
// first has exactly three digits and there is more than one group or the
// trailing group is not two digits (a ",56" tail reads as decimals).
func isThousandsGrouped(s string, sep rune) bool {
	parts := strings.Split(strings.TrimPrefix(s, "-"), string(sep))
	if len(parts) < 2 {
		return false
	}
	tail := parts[len(parts)-1]
	if len(parts) == 2 && len(tail) != 3 {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}
