package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/docuparse/invoice-pipeline/internal/app"
	"github.com/docuparse/invoice-pipeline/internal/common"
	"github.com/docuparse/invoice-pipeline/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	proc, exp, err := app.BuildPipeline(cfg, logger)
	if err != nil {
		logger.Error("build pipeline", "error", err)
		os.Exit(1)
	}

	srv := server.New(cfg.Server, proc, exp, logger)
	if err := srv.Run(); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}
