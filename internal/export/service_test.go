package export_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/docuparse/invoice-pipeline/constants"
	"github.com/docuparse/invoice-pipeline/internal/common"
	"github.com/docuparse/invoice-pipeline/internal/entity"
	"github.com/docuparse/invoice-pipeline/internal/export"
)

func sampleRecord() entity.InvoiceRecord {
	due := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)
	return entity.InvoiceRecord{
		InvoiceNumber: "F-2024-001",
		IssueDate:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		DueDate:       &due,
		Supplier:      entity.Party{Name: "ACME SARL", TaxID: "FR12345678901"},
		Customer:      entity.Party{Name: "Client SA"},
		LineItems: []entity.LineItem{
			{Description: "Widget", Quantity: dec("2"), UnitPrice: dec("10.00"), VATRate: dec("20"), LineTotal: dec("20.00")},
			{Description: "Gadget", Quantity: dec("1"), UnitPrice: dec("5.00"), VATRate: dec("20"), LineTotal: dec("5.00")},
			{Description: "Service", Quantity: dec("3"), UnitPrice: dec("1.00"), VATRate: dec("10"), LineTotal: dec("3.00")},
		},
		Subtotal:     dec("28.00"),
		VATTotal:     dec("5.30"),
		GrandTotal:   dec("33.30"),
		CurrencyCode: "EUR",
	}
}

func TestExportJSONRoundTrip(t *testing.T) {
	svc := export.NewService(nil)
	out, err := svc.Export(sampleRecord(), constants.ExportJSON)
	require.NoError(t, err)

	var got entity.InvoiceRecord
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "F-2024-001", got.InvoiceNumber)
	assert.Len(t, got.LineItems, 3)
	assert.True(t, got.GrandTotal.Equal(dec("33.30")))
}

func TestExportCSVOneRowPerLineItem(t *testing.T) {
	svc := export.NewService(nil)
	out, err := svc.Export(sampleRecord(), constants.ExportCSV)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 4) // header + 3 line items

	assert.Contains(t, lines[0], "invoice_number")
	assert.Contains(t, lines[0], "line_description")
	for _, ln := range lines[1:] {
		// invoice-level fields repeat on every row
		assert.Contains(t, ln, "F-2024-001")
		assert.Contains(t, ln, "33.3")
	}
	assert.Contains(t, lines[1], "Widget")
	assert.Contains(t, lines[3], "Service")
}

func TestExportCSVNoLineItems(t *testing.T) {
	rec := sampleRecord()
	rec.LineItems = nil

	svc := export.NewService(nil)
	out, err := svc.Export(rec, constants.ExportCSV)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2) // header + one header-level row
	assert.Contains(t, lines[1], "F-2024-001")
}

func TestExportXLSX(t *testing.T) {
	svc := export.NewService(nil)
	out, err := svc.Export(sampleRecord(), constants.ExportXLSX)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue("Invoice", "A2")
	require.NoError(t, err)
	assert.Equal(t, "F-2024-001", v)

	desc, err := f.GetCellValue("Invoice", "G4")
	require.NoError(t, err)
	assert.Equal(t, "Service", desc)
}

func TestExportUnsupportedFormat(t *testing.T) {
	svc := export.NewService(nil)
	_, err := svc.Export(sampleRecord(), constants.ExportFormat("yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrUnsupportedFormat))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
