// Command backfill upgrades legacy team documents in place and exits.
// The server runs the same pass at start-up; this command exists for
// operators who want to run it against a database offline.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/playperu/teamquest/internal/config"
	"github.com/playperu/teamquest/internal/database"
	"github.com/playperu/teamquest/internal/migrations"
	"github.com/playperu/teamquest/internal/reconcile"
	"github.com/playperu/teamquest/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "path to the sqlite database")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	db, err := database.Open(ctx, *dbPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	n, err := reconcile.New(logger, cfg.DefaultPIN).Backfill(ctx, store.New(db))
	if err != nil {
		return err
	}
	logger.Info("backfill complete", "path", *dbPath, "teams_changed", n)
	return nil
}
