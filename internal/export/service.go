// Package export serializes parsed invoices for downstream consumption.
// Formatting is structural only: values come from the record as-is, no
// re-validation and no mutation.
package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"github.com/docuparse/invoice-pipeline/constants"
	"github.com/docuparse/invoice-pipeline/internal/common"
	"github.com/docuparse/invoice-pipeline/internal/entity"
)

type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// Export renders the record in the requested format. Unknown formats fail
// with UnsupportedFormat; no partial output is ever returned.
func (s *Service) Export(rec entity.InvoiceRecord, format constants.ExportFormat) ([]byte, error) {
	start := time.Now()

	var (
		out []byte
		err error
	)
	switch format {
	case constants.ExportJSON:
		out, err = s.exportJSON(rec)
	case constants.ExportCSV:
		out, err = s.exportCSV(rec)
	case constants.ExportXLSX:
		out, err = s.exportXLSX(rec)
	default:
		return nil, fmt.Errorf("%w: export format %q", common.ErrUnsupportedFormat, string(format))
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("export.ok",
		"format", string(format),
		"invoice_number", rec.InvoiceNumber,
		"line_items", len(rec.LineItems),
		"bytes", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (s *Service) exportJSON(rec entity.InvoiceRecord) ([]byte, error) {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("json export: %w", err)
	}
	return b, nil
}

// csvRow flattens one invoice line item together with the invoice-level
// fields, which repeat on every row. An invoice with no line items still
// yields one row so the header-level amounts survive the flattening.
type csvRow struct {
	InvoiceNumber string `csv:"invoice_number"`
	IssueDate     string `csv:"issue_date"`
	DueDate       string `csv:"due_date"`
	SupplierName  string `csv:"supplier_name"`
	SupplierTaxID string `csv:"supplier_tax_id"`
	CustomerName  string `csv:"customer_name"`
	LineDesc      string `csv:"line_description"`
	LineQuantity  string `csv:"line_quantity"`
	LineUnitPrice string `csv:"line_unit_price"`
	LineVATRate   string `csv:"line_vat_rate"`
	LineTotal     string `csv:"line_total"`
	Subtotal      string `csv:"subtotal"`
	VATTotal      string `csv:"vat_total"`
	GrandTotal    string `csv:"grand_total"`
	CurrencyCode  string `csv:"currency_code"`
}

func (s *Service) exportCSV(rec entity.InvoiceRecord) ([]byte, error) {
	base := csvRow{
		InvoiceNumber: rec.InvoiceNumber,
		IssueDate:     formatDate(rec.IssueDate),
		SupplierName:  rec.Supplier.Name,
		SupplierTaxID: rec.Supplier.TaxID,
		CustomerName:  rec.Customer.Name,
		Subtotal:      rec.Subtotal.String(),
		VATTotal:      rec.VATTotal.String(),
		GrandTotal:    rec.GrandTotal.String(),
		CurrencyCode:  rec.CurrencyCode,
	}
	if rec.DueDate != nil {
		base.DueDate = formatDate(*rec.DueDate)
	}

	rows := make([]csvRow, 0, len(rec.LineItems))
	for _, li := range rec.LineItems {
		row := base
		row.LineDesc = li.Description
		row.LineQuantity = li.Quantity.String()
		row.LineUnitPrice = li.UnitPrice.String()
		row.LineVATRate = li.VATRate.String()
		row.LineTotal = li.LineTotal.String()
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		rows = append(rows, base)
	}

	b, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return nil, fmt.Errorf("csv export: %w", err)
	}
	return b, nil
}

func (s *Service) exportXLSX(rec entity.InvoiceRecord) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Invoice"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// drop the default sheet so the workbook opens on ours
	if index, _ := f.GetSheetIndex("Sheet1"); index != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{
		"Invoice Number",
		"Issue Date",
		"Due Date",
		"Supplier",
		"Supplier Tax ID",
		"Customer",
		"Description",
		"Quantity",
		"Unit Price",
		"VAT Rate",
		"Line Total",
		"Subtotal",
		"VAT Total",
		"Grand Total",
		"Currency",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	dueDate := ""
	if rec.DueDate != nil {
		dueDate = formatDate(*rec.DueDate)
	}

	row := 2
	writeRow := func(li *entity.LineItem) {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, rec.InvoiceNumber)
		write(2, formatDate(rec.IssueDate))
		write(3, dueDate)
		write(4, rec.Supplier.Name)
		write(5, rec.Supplier.TaxID)
		write(6, rec.Customer.Name)
		if li != nil {
			write(7, li.Description)
			write(8, li.Quantity.String())
			write(9, li.UnitPrice.String())
			write(10, li.VATRate.String())
			write(11, li.LineTotal.String())
		}
		write(12, rec.Subtotal.String())
		write(13, rec.VATTotal.String())
		write(14, rec.GrandTotal.String())
		write(15, rec.CurrencyCode)
		row++
	}

	if len(rec.LineItems) == 0 {
		writeRow(nil)
	}
	for i := range rec.LineItems {
		writeRow(&rec.LineItems[i])
	}

	_ = f.SetColWidth(sheet, "A", "A", 18) // invoice number
	_ = f.SetColWidth(sheet, "B", "C", 12) // dates
	_ = f.SetColWidth(sheet, "D", "F", 26) // parties
	_ = f.SetColWidth(sheet, "G", "G", 40) // description
	_ = f.SetColWidth(sheet, "H", "N", 12) // amounts

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
