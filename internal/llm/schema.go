package llm

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We pass it to the model as a structured output constraint and
// also use it locally to validate the response.
func BuildInvoiceJSONSchema() map[string]any {
	lineItem := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"description": map[string]any{"type": "string", "minLength": 1},
			"quantity":    decimalProp(),
			"unit_price":  decimalProp(),
			"vat_rate":    map[string]any{"type": "string"}, // rate or label, normalized later
			"line_total":  decimalProp(),
		},
		"required": []string{"description", "quantity", "unit_price", "line_total"},
	}

	props := map[string]any{
		"invoice_number":   map[string]any{"type": "string", "minLength": 1},
		"issue_date":       map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		"due_date":         map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		"supplier_name":    map[string]any{"type": "string", "minLength": 1},
		"supplier_tax_id":  map[string]any{"type": "string"},
		"customer_name":    map[string]any{"type": "string"},
		"customer_address": map[string]any{"type": "string"},
		"line_items":       map[string]any{"type": "array", "items": lineItem},
		"subtotal":         decimalProp(),
		"vat_total":        decimalProp(),
		"grand_total":      decimalProp(),
		"currency_code":    map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
		"confidence":       map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
	}
	required := []string{"invoice_number", "issue_date", "supplier_name", "line_items", "grand_total", "currency_code"}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func decimalProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^-?\d+(\.\d{1,4})?$`, // allow negatives for discount lines
	}
}
