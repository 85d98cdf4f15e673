package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/janburzinski/notra/common/logger"
	"github.com/janburzinski/notra/core/config"
	"github.com/janburzinski/notra/core/db"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg, err := config.Load(config.ServiceTypeMigrate)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg)

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	slog.InfoContext(ctx, "applying migrations")
	if err := database.Migrate(ctx); err != nil {
		slog.ErrorContext(ctx, "migration failed", "error", err)
		database.Close()
		os.Exit(1)
	}
	slog.InfoContext(ctx, "migrations applied")
}
