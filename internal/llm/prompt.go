package llm

import (
	"fmt"
	"strings"
)

const maxPromptChars = 12000

// BuildSystemPrompt composes the system message with currency defaults and
// strict-but-practical formatting rules.
func BuildSystemPrompt(req ExtractRequest) string {
	defCur := strings.TrimSpace(req.DefaultCurrency)
	if defCur == "" {
		defCur = "EUR"
	}

	parts := []string{
		"You are an invoice parser. Return ONLY JSON that matches the provided JSON Schema.",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"Currency must be a 3-letter ISO 4217 code; default to " + defCur + " if uncertain.",
		"Extract every billed line into 'line_items' in the order it appears; do not merge or invent lines.",
		"All amounts are plain decimals with '.' as the decimal separator and no thousands separators or symbols.",
		"'vat_rate' is the percentage as printed (e.g. '20'); copy the label verbatim if no number is printed.",
		"If subtotal or VAT total are printed, include them; never compute values that are not on the invoice.",
		"Never output null. If a field is not present, omit it.",
	}
	if tz := strings.TrimSpace(req.Timezone); tz != "" {
		parts = append(parts, "If dates are ambiguous, prefer timezone: "+tz+".")
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt concatenates page texts with explicit page-boundary markers
// so the model can attribute fields to pages. Failed pages are marked, never
// silently skipped.
func BuildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	if f := strings.TrimSpace(req.FilenameHint); f != "" {
		b.WriteString("Filename: ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	b.WriteString("\nOCR text by page:\n")
	for _, p := range req.Pages {
		fmt.Fprintf(&b, "\n--- page %d ---\n", p.Index+1)
		if p.Failed {
			b.WriteString("[page could not be read]\n")
			continue
		}
		b.WriteString(p.Text)
		b.WriteString("\n")
		if b.Len() > maxPromptChars {
			b.WriteString("…(truncated)")
			break
		}
	}
	return b.String()
}

// BuildCorrectivePrompt asks for a reissued response after a schema violation.
func BuildCorrectivePrompt(violation string) string {
	return "Your previous response did not match the JSON Schema: " + violation +
		". Return the corrected JSON only, matching the schema exactly."
}
