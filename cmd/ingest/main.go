// cmd/ingest/main.go
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"cardwise/internal/config"
	"cardwise/internal/ingest"
	"cardwise/internal/storage/postgres"
)

// Refreshes the card catalogue from the published rate sheet. Run from cron;
// the API picks the new data up when its catalogue cache TTL expires.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.MustLoad()

	pool, err := pgxpool.New(context.Background(), cfg.DBConn)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := postgres.NewStorage(pool)
	if err := ingest.NewIngester(store).Run(context.Background(), cfg.RateSheetURL); err != nil {
		slog.Error("ingest failed", "error", err)
		os.Exit(1)
	}
}
