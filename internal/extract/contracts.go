package extract

import (
	"context"

	"github.com/docuparse/invoice-pipeline/internal/entity"
)

// TextExtractor is Stage 1: document -> ordered pages of text.
type TextExtractor interface {
	Extract(ctx context.Context, doc entity.RawDocument) (entity.OcrResult, error)
}
