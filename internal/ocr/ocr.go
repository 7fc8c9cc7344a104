package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/docuparse/invoice-pipeline/constants"
	"github.com/docuparse/invoice-pipeline/internal/common"
	"github.com/docuparse/invoice-pipeline/internal/entity"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "fra+eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit

	// CoverageMinChars is the minimum extractable characters per page for the
	// PDF text layer to be trusted; pages below it fall back to rasterize+OCR.
	CoverageMinChars int

	TessdataDir         string
	EnableTSVConfidence bool

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "fra+eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.CoverageMinChars <= 0 {
		cfg.CoverageMinChars = 32
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner swaps the external-command runner; tests stub it.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// Extract picks a strategy from the document's declared media type, falling
// back to the filename extension when the media type is missing.
func (e *Extractor) Extract(ctx context.Context, doc entity.RawDocument) (entity.OcrResult, error) {
	start := time.Now()

	format := constants.MapMediaTypeToFormat(doc.MediaType)
	if format == "" {
		format = constants.MapExtToFormat(filepath.Ext(doc.Filename))
	}
	e.logger.Debug("starting ocr extraction",
		"document_id", doc.ID, "media_type", doc.MediaType, "format", string(format))

	switch format {
	case constants.PDF:
		res, err := e.extractPDF(ctx, doc)
		res.Duration = time.Since(start)
		return res, err
	case constants.IMAGE:
		res, err := e.extractImage(ctx, doc)
		res.Duration = time.Since(start)
		return res, err
	default:
		e.logger.Error("unsupported media type", "media_type", doc.MediaType, "filename", doc.Filename)
		return entity.OcrResult{}, fmt.Errorf("%w: media type %q", common.ErrUnsupportedFormat, doc.MediaType)
	}
}
