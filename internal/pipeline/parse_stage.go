package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/docuparse/invoice-pipeline/constants"
	"github.com/docuparse/invoice-pipeline/internal/common"
	"github.com/docuparse/invoice-pipeline/internal/entity"
	"github.com/docuparse/invoice-pipeline/internal/glossary"
	"github.com/docuparse/invoice-pipeline/internal/llm"
	"github.com/docuparse/invoice-pipeline/internal/validate"
)

// ParseConfig holds parse-stage behavior knobs.
type ParseConfig struct {
	DefaultCurrency string // hint passed to the extractor, default "EUR"
	Timezone        string // optional, forwarded as a prompt hint
}

// ParseStage runs field extraction on OCR output, converts the string-typed
// fields into a typed record, normalizes codes through the glossary, and
// attaches validation findings. Findings never abort the stage.
type ParseStage struct {
	Logger     *slog.Logger
	Cfg        ParseConfig
	Extractor  llm.FieldExtractor
	Normalizer *glossary.Normalizer
	Validator  *validate.Validator
}

func NewParseStage(
	logger *slog.Logger,
	cfg ParseConfig,
	fe llm.FieldExtractor,
	norm *glossary.Normalizer,
	val *validate.Validator,
) *ParseStage {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "EUR"
	}
	return &ParseStage{Logger: logger, Cfg: cfg, Extractor: fe, Normalizer: norm, Validator: val}
}

// Run executes the LLM parse stage on an OCR result.
// Precondition: ocrRes has at least one non-failed page.
func (p *ParseStage) Run(ctx context.Context, doc entity.RawDocument, ocrRes entity.OcrResult) (entity.InvoiceRecord, []entity.ValidationFinding, []byte, error) {
	start := time.Now()

	req := llm.ExtractRequest{
		Pages:           ocrRes.Pages,
		FilenameHint:    doc.Filename,
		DefaultCurrency: p.Cfg.DefaultCurrency,
		Timezone:        p.Cfg.Timezone,
		PrepConfidence:  ocrRes.Confidence(),
	}

	p.Logger.Info("parse.stage.start",
		"document_id", doc.ID.String(),
		"pages", len(req.Pages),
		"prep_confidence", req.PrepConfidence,
	)

	fields, raw, err := p.Extractor.ExtractFields(ctx, req)
	if err != nil {
		return entity.InvoiceRecord{}, nil, raw, fmt.Errorf("llm extract: %w", err)
	}

	rec, findings, err := p.toRecord(fields, ocrRes)
	if err != nil {
		return entity.InvoiceRecord{}, nil, raw, err
	}

	findings = append(findings, p.Validator.Validate(rec)...)

	p.Logger.Info("parse.stage.ok",
		"document_id", doc.ID.String(),
		"invoice_number", rec.InvoiceNumber,
		"grand_total", rec.GrandTotal.String(),
		"currency", rec.CurrencyCode,
		"findings", len(findings),
		"status", string(constants.StageParsedOK),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, findings, raw, nil
}

// toRecord converts string-typed model output into the typed record.
// Required fields that will not convert fail the stage with SchemaViolation;
// optional fields degrade to findings so the caller still gets a record.
func (p *ParseStage) toRecord(fields llm.InvoiceFields, ocrRes entity.OcrResult) (entity.InvoiceRecord, []entity.ValidationFinding, error) {
	var findings []entity.ValidationFinding

	rec := entity.InvoiceRecord{
		InvoiceNumber: strings.TrimSpace(fields.InvoiceNumber),
		Supplier: entity.Party{
			Name:  p.normalizeSupplier(fields.SupplierName),
			TaxID: strings.TrimSpace(fields.SupplierTaxID),
		},
		Customer: entity.Party{
			Name:    strings.TrimSpace(fields.CustomerName),
			Address: strings.TrimSpace(fields.CustomerAddress),
		},
	}

	issue, err := llm.ParseDate(fields.IssueDate)
	if err != nil {
		return entity.InvoiceRecord{}, nil, fmt.Errorf("%w: issue_date: %v", common.ErrSchemaViolation, err)
	}
	rec.IssueDate = issue

	if s := strings.TrimSpace(fields.DueDate); s != "" {
		due, err := llm.ParseDate(s)
		if err != nil {
			findings = append(findings, entity.ValidationFinding{
				FieldPath: "due_date",
				Severity:  constants.SeverityWarning,
				Message:   fmt.Sprintf("unparseable due date: %v", err),
			})
		} else {
			rec.DueDate = &due
		}
	}

	grand, err := llm.ParseAmount(fields.GrandTotal)
	if err != nil {
		return entity.InvoiceRecord{}, nil, fmt.Errorf("%w: grand_total: %v", common.ErrSchemaViolation, err)
	}
	rec.GrandTotal = grand

	rec.Subtotal, findings = p.optionalAmount(fields.Subtotal, "subtotal", findings)
	rec.VATTotal, findings = p.optionalAmount(fields.VATTotal, "vat_total", findings)

	cur := p.Normalizer.Normalize(fields.CurrencyCode, constants.CategoryCurrency)
	rec.CurrencyCode = strings.ToUpper(strings.TrimSpace(cur.Value))
	if !cur.Matched && strings.TrimSpace(fields.CurrencyCode) != "" {
		findings = append(findings, entity.ValidationFinding{
			FieldPath: "currency_code",
			Severity:  constants.SeverityWarning,
			Message:   fmt.Sprintf("currency %q did not match a known code", fields.CurrencyCode),
		})
	}

	for i, li := range fields.LineItems {
		item := entity.LineItem{Description: strings.TrimSpace(li.Description)}
		item.Quantity, findings = p.lineAmount(li.Quantity, i, "quantity", findings)
		item.UnitPrice, findings = p.lineAmount(li.UnitPrice, i, "unit_price", findings)
		item.LineTotal, findings = p.lineAmount(li.LineTotal, i, "line_total", findings)
		item.VATRate, findings = p.vatRate(li.VATRate, i, findings)
		rec.LineItems = append(rec.LineItems, item)
	}

	for _, page := range ocrRes.Pages {
		if !page.Failed {
			rec.SourcePages = append(rec.SourcePages, page.Index)
		}
	}
	return rec, findings, nil
}

func (p *ParseStage) optionalAmount(s, path string, findings []entity.ValidationFinding) (decimal.Decimal, []entity.ValidationFinding) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, findings
	}
	d, err := llm.ParseAmount(s)
	if err != nil {
		return decimal.Zero, append(findings, entity.ValidationFinding{
			FieldPath: path,
			Severity:  constants.SeverityWarning,
			Message:   fmt.Sprintf("unparseable amount %q", s),
		})
	}
	return d, findings
}

func (p *ParseStage) lineAmount(s string, idx int, field string, findings []entity.ValidationFinding) (decimal.Decimal, []entity.ValidationFinding) {
	d, err := llm.ParseAmount(s)
	if err != nil {
		return decimal.Zero, append(findings, entity.ValidationFinding{
			FieldPath: fmt.Sprintf("line_items[%d].%s", idx, field),
			Severity:  constants.SeverityError,
			Message:   fmt.Sprintf("unparseable amount %q", s),
		})
	}
	return d, findings
}

var reVATDigits = regexp.MustCompile(`(\d+(?:[.,]\d+)?)`)

// vatRate resolves a rate string that may be numeric ("20", "5.5%") or a
// label ("TVA 20%"). Labels go through the vat_code glossary first; the
// numeric part of the canonical code is the rate.
func (p *ParseStage) vatRate(s string, idx int, findings []entity.ValidationFinding) (decimal.Decimal, []entity.ValidationFinding) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if trimmed == "" {
		return decimal.Zero, findings
	}
	if d, err := llm.ParseAmount(trimmed); err == nil {
		return d, findings
	}

	nv := p.Normalizer.Normalize(s, constants.CategoryVATCode)
	if nv.Matched {
		if m := reVATDigits.FindString(nv.Canonical); m != "" {
			if d, err := llm.ParseAmount(m); err == nil {
				return d, findings
			}
		}
	}
	return decimal.Zero, append(findings, entity.ValidationFinding{
		FieldPath: fmt.Sprintf("line_items[%d].vat_rate", idx),
		Severity:  constants.SeverityWarning,
		Message:   fmt.Sprintf("unrecognized VAT rate %q", s),
	})
}

// normalizeSupplier maps the supplier name through the provider glossary when
// a canonical entry exists; unmatched names pass through untouched.
func (p *ParseStage) normalizeSupplier(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if nv := p.Normalizer.Normalize(name, constants.CategoryProviderName); nv.Matched {
		return nv.Value
	}
	return name
}
