// Package pipeline coordinates the document stages: OCR text extraction,
// LLM field parsing with glossary normalization, and validation. Stages are
// stateless; everything a caller needs comes back in Result.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/docuparse/invoice-pipeline/constants"
	"github.com/docuparse/invoice-pipeline/internal/entity"
)

// Result is the full outcome for one document.
type Result struct {
	Record   entity.InvoiceRecord       `json:"record"`
	Ocr      entity.OcrResult           `json:"ocr"`
	Findings []entity.ValidationFinding `json:"findings"`
	RawJSON  []byte                     `json:"-"` // model output after sanitization, for audit logs
}

// Processor runs OCR then parse for one document.
type Processor struct {
	Logger *slog.Logger
	OCR    *OCRStage
	Parse  *ParseStage
}

func NewProcessor(logger *slog.Logger, ocr *OCRStage, parse *ParseStage) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, OCR: ocr, Parse: parse}
}

// Process pushes a document through both stages. Cancellation is honored
// between stages so a dead client never pays for an LLM call.
func (p *Processor) Process(ctx context.Context, doc entity.RawDocument) (Result, error) {
	ocrRes, err := p.OCR.Run(ctx, doc)
	if err != nil {
		p.Logger.Error("processor.ocr.failed",
			"document_id", doc.ID.String(),
			"status", string(constants.StageFailed),
			"err", err,
		)
		return Result{Ocr: ocrRes}, err
	}

	if err := ctx.Err(); err != nil {
		return Result{Ocr: ocrRes}, err
	}

	rec, findings, raw, err := p.Parse.Run(ctx, doc, ocrRes)
	if err != nil {
		p.Logger.Error("processor.parse.failed",
			"document_id", doc.ID.String(),
			"status", string(constants.StageFailed),
			"err", err,
		)
		return Result{Ocr: ocrRes, RawJSON: raw}, err
	}

	p.Logger.Info("processor.ok",
		"document_id", doc.ID.String(),
		"invoice_number", rec.InvoiceNumber,
		"findings", len(findings),
	)
	return Result{Record: rec, Ocr: ocrRes, Findings: findings, RawJSON: raw}, nil
}
