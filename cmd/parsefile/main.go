// parsefile runs the full pipeline on one local file and writes the export
// to stdout. Findings and stage logs go to stderr so the output stays pipeable.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/docuparse/invoice-pipeline/constants"
	"github.com/docuparse/invoice-pipeline/internal/app"
	"github.com/docuparse/invoice-pipeline/internal/common"
	"github.com/docuparse/invoice-pipeline/internal/entity"
)

func main() {
	format := flag.String("format", "json", "export format: json | csv | xlsx")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "parsefile [-format json|csv|xlsx] <file>")
		os.Exit(2)
	}
	path := flag.Arg(0)
	if !constants.IsExportFormat(*format) {
		logger.Error("unsupported export format", "format", *format)
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read file", "path", path, "error", err)
		os.Exit(1)
	}
	mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	doc := entity.NewRawDocument(filepath.Base(path), mediaType, data)

	proc, exp, err := app.BuildPipeline(cfg, logger)
	if err != nil {
		logger.Error("build pipeline", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = common.WithDocumentID(ctx, doc.ID.String())

	start := time.Now()
	res, err := proc.Process(ctx, doc)
	if err != nil {
		logger.Error("pipeline failed",
			"document_id", doc.ID.String(), "error", err,
			"duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}

	for _, f := range res.Findings {
		logger.Warn("validation finding",
			"field", f.FieldPath, "severity", string(f.Severity), "message", f.Message)
	}

	out, err := exp.Export(res.Record, constants.ExportFormat(*format))
	if err != nil {
		logger.Error("export failed", "format", *format, "error", err)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stdout, string(out))
}
