package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"flowtrack/internal/config"
	"flowtrack/internal/store"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/pflag"
)

func main() {
	dsn := pflag.String("dsn", os.Getenv("DB_DSN"), "Postgres connection string (default $DB_DSN)")
	verbose := pflag.BoolP("verbose", "v", false, "log skipped migrations too")
	pflag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *dsn == "" {
		cfg := config.Load()
		*dsn = cfg.DBDSN
	}
	if *dsn == "" {
		fmt.Fprintln(os.Stderr, "migrate: --dsn or DB_DSN is required")
		os.Exit(2)
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		logger.Error("failed to open database connection", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to ping database", "err", err)
		os.Exit(1)
	}

	n, err := store.Migrate(ctx, db, logger)
	if err != nil {
		logger.Error("migration failed", "err", err)
		os.Exit(1)
	}
	fmt.Printf("Applied %d migration(s)\n", n)
}
