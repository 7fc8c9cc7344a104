// Package validate cross-checks extracted invoice fields for internal
// consistency. Every check is independent and non-short-circuiting: one pass
// produces all applicable findings and never mutates the record.
package validate

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/docuparse/invoice-pipeline/constants"
	"github.com/docuparse/invoice-pipeline/internal/entity"
)

// Config holds the arithmetic tolerance and the plausible VAT rate set.
type Config struct {
	Tolerance     decimal.Decimal
	KnownVATRates []decimal.Decimal
}

// NewConfig parses the string form the env config carries.
func NewConfig(tolerance string, rates []string) (Config, error) {
	tol, err := decimal.NewFromString(tolerance)
	if err != nil {
		return Config{}, fmt.Errorf("parse tolerance %q: %w", tolerance, err)
	}
	cfg := Config{Tolerance: tol}
	for _, r := range rates {
		d, err := decimal.NewFromString(strings.TrimSpace(r))
		if err != nil {
			return Config{}, fmt.Errorf("parse vat rate %q: %w", r, err)
		}
		cfg.KnownVATRates = append(cfg.KnownVATRates, d)
	}
	return cfg, nil
}

type Validator struct {
	cfg    Config
	logger *slog.Logger
}

func NewValidator(cfg Config, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tolerance.IsZero() {
		cfg.Tolerance = decimal.RequireFromString("0.01")
	}
	return &Validator{cfg: cfg, logger: logger}
}

// Validate runs every check and returns the accumulated findings.
func (v *Validator) Validate(rec entity.InvoiceRecord) []entity.ValidationFinding {
	var findings []entity.ValidationFinding

	findings = append(findings, v.checkIdentity(rec)...)
	findings = append(findings, v.checkLineArithmetic(rec)...)
	findings = append(findings, v.checkSubtotal(rec)...)
	findings = append(findings, v.checkGrandTotal(rec)...)
	findings = append(findings, v.checkVATRates(rec)...)
	findings = append(findings, v.checkDates(rec)...)

	if len(findings) > 0 {
		v.logger.Debug("validate.findings", "invoice_number", rec.InvoiceNumber, "count", len(findings))
	}
	return findings
}

func (v *Validator) checkIdentity(rec entity.InvoiceRecord) []entity.ValidationFinding {
	var out []entity.ValidationFinding
	if strings.TrimSpace(rec.InvoiceNumber) == "" {
		out = append(out, finding("invoice_number", constants.SeverityError, "invoice number is required"))
	}
	if strings.TrimSpace(rec.Supplier.Name) == "" {
		out = append(out, finding("supplier.name", constants.SeverityError, "supplier name is required"))
	}
	if rec.IssueDate.IsZero() {
		out = append(out, finding("issue_date", constants.SeverityError, "issue date is required"))
	}
	if strings.TrimSpace(rec.CurrencyCode) == "" {
		out = append(out, finding("currency_code", constants.SeverityError, "currency code is required"))
	}
	if strings.TrimSpace(rec.Customer.Name) == "" {
		out = append(out, finding("customer.name", constants.SeverityWarning, "customer name is empty"))
	}
	return out
}

func (v *Validator) checkLineArithmetic(rec entity.InvoiceRecord) []entity.ValidationFinding {
	var out []entity.ValidationFinding
	for i, li := range rec.LineItems {
		expected := li.Quantity.Mul(li.UnitPrice)
		if expected.Sub(li.LineTotal).Abs().Cmp(v.cfg.Tolerance) > 0 {
			out = append(out, finding(
				fmt.Sprintf("line_items[%d].line_total", i),
				constants.SeverityError,
				fmt.Sprintf("quantity × unit price = %s, line total is %s", expected.String(), li.LineTotal.String()),
			))
		}
	}
	return out
}

func (v *Validator) checkSubtotal(rec entity.InvoiceRecord) []entity.ValidationFinding {
	if len(rec.LineItems) == 0 {
		return nil
	}
	sum := decimal.Zero
	for _, li := range rec.LineItems {
		sum = sum.Add(li.LineTotal)
	}
	if sum.Sub(rec.Subtotal).Abs().Cmp(v.cfg.Tolerance) > 0 {
		return []entity.ValidationFinding{finding(
			"subtotal",
			constants.SeverityError,
			fmt.Sprintf("line items sum to %s, subtotal is %s", sum.String(), rec.Subtotal.String()),
		)}
	}
	return nil
}

func (v *Validator) checkGrandTotal(rec entity.InvoiceRecord) []entity.ValidationFinding {
	expected := rec.Subtotal.Add(rec.VATTotal)
	if expected.Sub(rec.GrandTotal).Abs().Cmp(v.cfg.Tolerance) > 0 {
		return []entity.ValidationFinding{finding(
			"grand_total",
			constants.SeverityError,
			fmt.Sprintf("subtotal + VAT = %s, grand total is %s", expected.String(), rec.GrandTotal.String()),
		)}
	}
	return nil
}

func (v *Validator) checkVATRates(rec entity.InvoiceRecord) []entity.ValidationFinding {
	if len(v.cfg.KnownVATRates) == 0 {
		return nil
	}
	var out []entity.ValidationFinding
	for i, li := range rec.LineItems {
		known := false
		for _, r := range v.cfg.KnownVATRates {
			if r.Equal(li.VATRate) {
				known = true
				break
			}
		}
		if !known {
			out = append(out, finding(
				fmt.Sprintf("line_items[%d].vat_rate", i),
				constants.SeverityWarning,
				fmt.Sprintf("VAT rate %s%% is not in the known rate set", li.VATRate.String()),
			))
		}
	}
	return out
}

func (v *Validator) checkDates(rec entity.InvoiceRecord) []entity.ValidationFinding {
	if rec.DueDate == nil || rec.IssueDate.IsZero() {
		return nil
	}
	if rec.DueDate.Before(rec.IssueDate) {
		return []entity.ValidationFinding{finding(
			"due_date",
			constants.SeverityError,
			fmt.Sprintf("due date %s precedes issue date %s",
				rec.DueDate.Format("2006-01-02"), rec.IssueDate.Format("2006-01-02")),
		)}
	}
	return nil
}

func finding(path string, sev constants.Severity, msg string) entity.ValidationFinding {
	return entity.ValidationFinding{FieldPath: path, Severity: sev, Message: msg}
}
