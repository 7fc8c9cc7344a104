package app_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuparse/invoice-pipeline/internal/app"
	"github.com/docuparse/invoice-pipeline/internal/common"
)

func testConfig() *common.Config {
	return &common.Config{
		Server: common.ServerConfig{
			HTTPAddr:      ":0",
			MaxUploadMB:   8,
			BatchWorkers:  2,
			StageDeadline: 30 * time.Second,
		},
		OCR: common.OCRConfig{
			Pdftoppm:         "pdftoppm",
			Tesseract:        "tesseract",
			TesseractLang:    "fra+eng",
			DPI:              300,
			MaxPages:         10,
			CoverageMinChars: 32,
		},
		LLM: common.LLMConfig{
			BaseURL:     "https://openrouter.ai/api/v1",
			APIKey:      "test-key",
			Model:       "test/model",
			Temperature: 0,
			Timeout:     30 * time.Second,
		},
		Glossary: common.GlossaryConfig{MatchThreshold: 0.82},
		Validation: common.ValidateConfig{
			AmountTolerance: "0.01",
			KnownVATRates:   []string{"0", "2.1", "5.5", "10", "20"},
		},
	}
}

func TestBuildPipeline(t *testing.T) {
	proc, exp, err := app.BuildPipeline(testConfig(), nil)
	require.NoError(t, err)
	assert.NotNil(t, proc)
	assert.NotNil(t, exp)
}

func TestBuildPipelineGlossaryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glossary.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"currency": [{"canonical": "EUR", "aliases": ["EURO"]}]}`), 0o644))

	cfg := testConfig()
	cfg.Glossary.Path = path
	proc, _, err := app.BuildPipeline(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, proc)
}

func TestBuildPipelineMissingGlossaryFile(t *testing.T) {
	cfg := testConfig()
	cfg.Glossary.Path = filepath.Join(t.TempDir(), "absent.json")
	_, _, err := app.BuildPipeline(cfg, nil)
	assert.Error(t, err)
}

func TestBuildPipelineBadTolerance(t *testing.T) {
	cfg := testConfig()
	cfg.Validation.AmountTolerance = "not-a-number"
	_, _, err := app.BuildPipeline(cfg, nil)
	assert.Error(t, err)
}
