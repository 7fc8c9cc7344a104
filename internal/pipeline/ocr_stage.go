package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/docuparse/invoice-pipeline/constants"
	"github.com/docuparse/invoice-pipeline/internal/common"
	"github.com/docuparse/invoice-pipeline/internal/entity"
	"github.com/docuparse/invoice-pipeline/internal/extract"
)

// OCRStage turns a raw document into its ordered page texts. LLM parsing is
// NOT called here.
type OCRStage struct {
	TextExtractor extract.TextExtractor
	Logger        *slog.Logger
}

func NewOCRStage(tx extract.TextExtractor, logger *slog.Logger) *OCRStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRStage{TextExtractor: tx, Logger: logger}
}

// Run extracts text for the document. Partial page failures are carried in
// the result; the stage errors only when nothing usable came out.
func (s *OCRStage) Run(ctx context.Context, doc entity.RawDocument) (entity.OcrResult, error) {
	start := time.Now()
	s.Logger.Info("ocr.stage.start",
		"document_id", doc.ID.String(),
		"filename", doc.Filename,
		"bytes", len(doc.Bytes),
		"status", string(constants.StageRunning),
	)

	res, err := s.TextExtractor.Extract(ctx, doc)
	if err != nil {
		return res, common.WrapError(err, "text extract")
	}

	if failed := res.FailedPages(); len(failed) > 0 {
		s.Logger.Warn("ocr.stage.partial", "document_id", doc.ID.String(), "failed_pages", failed)
	}
	s.Logger.Info("ocr.stage.ok",
		"document_id", doc.ID.String(),
		"method", res.Method,
		"pages", len(res.Pages),
		"confidence", res.Confidence(),
		"status", string(constants.StageOCROK),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
