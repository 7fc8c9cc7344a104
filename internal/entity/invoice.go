package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/docuparse/invoice-pipeline/constants"
)

// Party identifies one side of an invoice. TaxID is filled for the supplier,
// Address for the customer; both stay optional.
type Party struct {
	Name    string `json:"name"`
	TaxID   string `json:"tax_id,omitempty"`
	Address string `json:"address,omitempty"`
}

// LineItem is one billed entry on an invoice.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	VATRate     decimal.Decimal `json:"vat_rate"` // percentage, e.g. 20 for 20%
	LineTotal   decimal.Decimal `json:"line_total"`
}

// InvoiceRecord is the structured result of parsing one document.
// Validation never mutates it; findings live alongside in pipeline.Result.
type InvoiceRecord struct {
	InvoiceNumber string     `json:"invoice_number"`
	IssueDate     time.Time  `json:"issue_date"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	Supplier      Party      `json:"supplier"`
	Customer      Party      `json:"customer"`
	LineItems     []LineItem `json:"line_items"`

	Subtotal     decimal.Decimal `json:"subtotal"`
	VATTotal     decimal.Decimal `json:"vat_total"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
	CurrencyCode string          `json:"currency_code"`

	// SourcePages records which OCR pages fed the extraction (provenance at
	// page granularity; per-field boxes are a UI concern).
	SourcePages []int `json:"source_pages,omitempty"`
}

// ValidationFinding flags one consistency problem on a record. It is data,
// not an error: the pipeline surfaces findings without aborting.
type ValidationFinding struct {
	FieldPath string             `json:"field_path"`
	Severity  constants.Severity `json:"severity"`
	Message   string             `json:"message"`
}
