package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

var reJSONBlock = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSONBlock pulls the first {...} block out of a possibly chatty
// response (markdown fences, prose around the JSON). Returns the input
// unchanged when it already starts with '{'.
func ExtractJSONBlock(content string) (string, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "{") {
		return s, nil
	}
	m := reJSONBlock.FindString(s)
	if m == "" {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return m, nil
}

// NormalizeAndSanitizeJSON
// - Renames known synonym keys (total -> grand_total, tax -> vat_total, ...)
// - Drops null/empty optionals
// - Coerces numeric -> string for money-ish fields, including line items
// - Removes unknown keys (strict additionalProperties = false friendliness)
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			// don't overwrite existing value if already present
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	// 1) rename synonyms to our schema
	renamed("number", "invoice_number")
	renamed("invoice_no", "invoice_number")
	renamed("date", "issue_date")
	renamed("total", "grand_total")
	renamed("montant_total", "grand_total")
	renamed("tax", "vat_total")
	renamed("tax_total", "vat_total")
	renamed("vat", "vat_total")
	renamed("currency", "currency_code")
	renamed("supplier", "supplier_name")
	renamed("vendor_name", "supplier_name")
	renamed("lines", "line_items")
	renamed("items", "line_items")

	// 2) coerce money fields to strings; drop null / "" optionals
	moneyKeys := []string{"subtotal", "vat_total", "grand_total"}
	for _, k := range moneyKeys {
		coerceDecimal(m, k, &dropped)
	}

	// 3) line items: coerce per-line numerics
	if arr, ok := m["line_items"].([]any); ok {
		for _, it := range arr {
			if im, ok := it.(map[string]any); ok {
				for _, k := range []string{"quantity", "unit_price", "line_total"} {
					coerceDecimal(im, k, &dropped)
				}
				if v, ok := im["vat_rate"]; ok {
					switch t := v.(type) {
					case float64:
						im["vat_rate"] = trimFloat(t)
					case nil:
						delete(im, "vat_rate")
					}
				}
			}
		}
	}

	// 4) uppercase the currency code
	if v, ok := m["currency_code"].(string); ok {
		m["currency_code"] = strings.ToUpper(strings.TrimSpace(v))
	}

	// 5) remove unknown keys (everything not in the schema set below)
	allowed := map[string]struct{}{
		"invoice_number": {}, "issue_date": {}, "due_date": {},
		"supplier_name": {}, "supplier_tax_id": {},
		"customer_name": {}, "customer_address": {},
		"line_items": {}, "subtotal": {}, "vat_total": {}, "grand_total": {},
		"currency_code": {}, "confidence": {},
	}
	for k := range m {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	// 6) trim obvious strings
	trimKeys := []string{"invoice_number", "issue_date", "due_date", "supplier_name", "customer_name"}
	for _, k := range trimKeys {
		if v, ok := m[k].(string); ok {
			s := strings.TrimSpace(v)
			if s == "" {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

func coerceDecimal(m map[string]any, k string, dropped *[]string) {
	v, ok := m[k]
	if !ok {
		return
	}
	switch t := v.(type) {
	case float64:
		m[k] = trimFloat(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") {
			delete(m, k)
			*dropped = append(*dropped, k+"(empty)")
		} else {
			m[k] = s
		}
	case nil:
		delete(m, k)
		*dropped = append(*dropped, k+"(null)")
	default:
		delete(m, k)
		*dropped = append(*dropped, k+"(type)")
	}
}

func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", f), "0"), ".")
}
