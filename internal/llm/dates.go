package llm

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	reISODate = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	reSepDate = regexp.MustCompile(`^(\d{1,4})[./-](\d{1,2})[./-](\d{1,4})$`)
)

// ErrAmbiguousDate marks dates where both day/month readings are valid and
// disagree; callers must surface them rather than guess.
type ErrAmbiguousDate struct{ Raw string }

func (e ErrAmbiguousDate) Error() string {
	return fmt.Sprintf("ambiguous day/month ordering in %q", e.Raw)
}

// ParseDate normalizes a date string to a UTC date. ISO 8601 passes through;
// separator dates resolve only when year position and day>12 disambiguate.
func ParseDate(s string) (time.Time, error) {
	if m := reISODate.FindStringSubmatch(s); m != nil {
		return mkDate(atoi(m[1]), atoi(m[2]), atoi(m[3]), s)
	}
	m := reSepDate.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	}
	a, b, c := atoi(m[1]), atoi(m[2]), atoi(m[3])

	switch {
	case len(m[1]) == 4:
		// YYYY sep MM sep DD
		return mkDate(a, b, c, s)
	case len(m[3]) == 4:
		// day-first or month-first with trailing year
		switch {
		case a > 12 && b <= 12:
			return mkDate(c, b, a, s) // DD/MM/YYYY
		case b > 12 && a <= 12:
			return mkDate(c, a, b, s) // MM/DD/YYYY
		case a == b:
			return mkDate(c, a, b, s) // same either way
		default:
			return time.Time{}, ErrAmbiguousDate{Raw: s}
		}
	default:
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	}
}

func mkDate(y, mo, d int, raw string) (time.Time, error) {
	if mo < 1 || mo > 12 || d < 1 || d > 31 {
		return time.Time{}, fmt.Errorf("invalid date %q", raw)
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	// reject normalized overflow like Feb 30
	if t.Day() != d || int(t.Month()) != mo {
		return time.Time{}, fmt.Errorf("invalid date %q", raw)
	}
	return t, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
