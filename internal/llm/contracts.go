package llm

import (
	"context"

	"github.com/docuparse/invoice-pipeline/internal/entity"
)

// LineItemFields is one billed line as the model returns it. Numbers travel
// as strings so locale-aware parsing stays on our side of the wire.
type LineItemFields struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	VATRate     string `json:"vat_rate,omitempty"` // "20", "20%", or a label like "TVA 20%"
	LineTotal   string `json:"line_total"`
}

// InvoiceFields is the normalized shape we want from the LLM.
type InvoiceFields struct {
	InvoiceNumber   string           `json:"invoice_number"`
	IssueDate       string           `json:"issue_date"`          // YYYY-MM-DD preferred; raw formats tolerated
	DueDate         string           `json:"due_date,omitempty"`
	SupplierName    string           `json:"supplier_name"`
	SupplierTaxID   string           `json:"supplier_tax_id,omitempty"`
	CustomerName    string           `json:"customer_name,omitempty"`
	CustomerAddress string           `json:"customer_address,omitempty"`
	LineItems       []LineItemFields `json:"line_items"`
	Subtotal        string           `json:"subtotal,omitempty"`  // decimal
	VATTotal        string           `json:"vat_total,omitempty"` // decimal
	GrandTotal      string           `json:"grand_total"`         // decimal
	CurrencyCode    string           `json:"currency_code"`       // ISO 4217
	ModelConfidence float32          `json:"confidence,omitempty"`
}

// ExtractRequest carries the OCR pages plus hints into field extraction.
type ExtractRequest struct {
	Pages           []entity.OcrPage
	FilenameHint    string
	DefaultCurrency string
	Timezone        string
	PrepConfidence  float32
}

// FieldExtractor is the interface our pipeline depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (InvoiceFields, []byte /*rawJSON*/, error)
}
