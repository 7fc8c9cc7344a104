// Package app turns loaded configuration into the concrete pipeline. Both
// entrypoints (HTTP server and CLI) share this wiring so the config-to-
// constructor mapping cannot drift between them.
package app

import (
	"log/slog"

	"github.com/docuparse/invoice-pipeline/internal/common"
	"github.com/docuparse/invoice-pipeline/internal/export"
	"github.com/docuparse/invoice-pipeline/internal/extract"
	"github.com/docuparse/invoice-pipeline/internal/glossary"
	"github.com/docuparse/invoice-pipeline/internal/llm/openrouter"
	"github.com/docuparse/invoice-pipeline/internal/ocr"
	"github.com/docuparse/invoice-pipeline/internal/pipeline"
	"github.com/docuparse/invoice-pipeline/internal/validate"
)

// BuildPipeline assembles the processor and the export service from config.
func BuildPipeline(cfg *common.Config, logger *slog.Logger) (*pipeline.Processor, *export.Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ocrx := ocr.NewExtractor(ocr.Config{
		Pdftoppm:            cfg.OCR.Pdftoppm,
		Tesseract:           cfg.OCR.Tesseract,
		TesseractLang:       cfg.OCR.TesseractLang,
		DPI:                 cfg.OCR.DPI,
		MaxPages:            cfg.OCR.MaxPages,
		CoverageMinChars:    cfg.OCR.CoverageMinChars,
		TessdataDir:         cfg.OCR.TessdataDir,
		EnableTSVConfidence: cfg.OCR.EnableTSVConf,
	}, logger)
	textExtractor := extract.NewOCRAdapter(ocrx, logger)

	g := glossary.Default()
	if cfg.Glossary.Path != "" {
		var err error
		if g, err = glossary.LoadFile(cfg.Glossary.Path); err != nil {
			return nil, nil, err
		}
	}
	norm := glossary.NewNormalizer(g, cfg.Glossary.MatchThreshold, logger)

	valCfg, err := validate.NewConfig(cfg.Validation.AmountTolerance, cfg.Validation.KnownVATRates)
	if err != nil {
		return nil, nil, err
	}
	validator := validate.NewValidator(valCfg, logger)

	extractor := openrouter.NewClient(openrouter.Config{
		APIKey:        cfg.LLM.APIKey,
		BaseURL:       cfg.LLM.BaseURL,
		Model:         cfg.LLM.Model,
		FallbackModel: cfg.LLM.FallbackModel,
		Temperature:   cfg.LLM.Temperature,
		Timeout:       cfg.LLM.Timeout,
	}, logger)

	ocrStage := pipeline.NewOCRStage(textExtractor, logger)
	parseStage := pipeline.NewParseStage(logger, pipeline.ParseConfig{}, extractor, norm, validator)
	proc := pipeline.NewProcessor(logger, ocrStage, parseStage)

	return proc, export.NewService(logger), nil
}
