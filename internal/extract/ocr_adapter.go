package extract

import (
	"context"
	"log/slog"

	"github.com/docuparse/invoice-pipeline/internal/entity"
	"github.com/docuparse/invoice-pipeline/internal/ocr"
)

// OCRAdapter adapts the exec-backed ocr.Extractor to the stage contract so
// the pipeline never depends on the tesseract plumbing directly.
type OCRAdapter struct {
	e *ocr.Extractor
}

func NewOCRAdapter(e *ocr.Extractor, _ *slog.Logger) *OCRAdapter {
	return &OCRAdapter{e: e}
}

func (a *OCRAdapter) Extract(ctx context.Context, doc entity.RawDocument) (entity.OcrResult, error) {
	return a.e.Extract(ctx, doc)
}
