package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	OCR        OCRConfig
	LLM        LLMConfig
	Glossary   GlossaryConfig
	Validation ValidateConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr      string
	MaxUploadMB   int
	BatchWorkers  int
	StageDeadline time.Duration
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Pdftoppm         string
	Tesseract        string
	TesseractLang    string
	DPI              int
	MaxPages         int
	CoverageMinChars int
	TessdataDir      string
	EnableTSVConf    bool
}

// LLMConfig holds language-model configuration
type LLMConfig struct {
	BaseURL       string
	APIKey        string
	Model         string
	FallbackModel string
	Temperature   float32
	Timeout       time.Duration
}

// GlossaryConfig holds glossary/normalizer configuration
type GlossaryConfig struct {
	Path           string
	MatchThreshold float64
}

// ValidateConfig holds arithmetic validation configuration
type ValidateConfig struct {
	AmountTolerance string // decimal, e.g. "0.01"
	KnownVATRates   []string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
			MaxUploadMB:   getEnvAsInt("MAX_UPLOAD_MB", 20),
			BatchWorkers:  getEnvAsInt("BATCH_WORKERS", 4),
			StageDeadline: getEnvAsDuration("STAGE_DEADLINE", 2*time.Minute),
		},
		OCR: OCRConfig{
			Pdftoppm:         getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:        getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang:    getEnv("TESSERACT_LANG", "fra+eng"),
			DPI:              getEnvAsInt("OCR_DPI", 300),
			MaxPages:         getEnvAsInt("OCR_MAX_PAGES", 0),
			CoverageMinChars: getEnvAsInt("OCR_COVERAGE_MIN_CHARS", 32),
			TessdataDir:      getEnv("TESSDATA_PREFIX", ""),
			EnableTSVConf:    getEnvAsBool("OCR_TSV_CONFIDENCE", true),
		},
		LLM: LLMConfig{
			BaseURL:       getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			APIKey:        getEnv("OPENROUTER_API_KEY", ""),
			Model:         getEnv("MODEL_PRIMARY", "qwen/qwen-2.5-72b-instruct"),
			FallbackModel: getEnv("MODEL_SECONDARY", "mistralai/mistral-small"),
			Temperature:   getEnvAsFloat32("LLM_TEMPERATURE", 0.1),
			Timeout:       getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
		},
		Glossary: GlossaryConfig{
			Path:           getEnv("GLOSSARY_PATH", ""),
			MatchThreshold: getEnvAsFloat64("MATCH_THRESHOLD", 0.82),
		},
		Validation: ValidateConfig{
			AmountTolerance: getEnv("AMOUNT_TOLERANCE", "0.01"),
			KnownVATRates:   getEnvAsList("KNOWN_VAT_RATES", []string{"0", "2.1", "5.5", "10", "20"}),
		},
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENROUTER_API_KEY is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Glossary.MatchThreshold <= 0 || c.Glossary.MatchThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "MATCH_THRESHOLD must be in (0,1]", ErrInvalidInput)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
