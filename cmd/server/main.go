package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/playperu/teamquest/internal/config"
	"github.com/playperu/teamquest/internal/database"
	"github.com/playperu/teamquest/internal/handler/health"
	"github.com/playperu/teamquest/internal/migrations"
	"github.com/playperu/teamquest/internal/progress"
	"github.com/playperu/teamquest/internal/reconcile"
	"github.com/playperu/teamquest/internal/server"
	"github.com/playperu/teamquest/internal/store"
	"github.com/playperu/teamquest/internal/timer"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	docs := store.New(db)
	reconciler := reconcile.New(logger, cfg.DefaultPIN)

	// --- Legacy backfill ---
	n, err := reconciler.Backfill(ctx, docs)
	if err != nil {
		return fmt.Errorf("backfilling teams: %w", err)
	}
	logger.Info("legacy backfill finished", "teams_changed", n)

	if cfg.SeedDemo {
		if err := server.SeedDemo(ctx, logger, docs, cfg.DefaultPIN); err != nil {
			return fmt.Errorf("seeding demo data: %w", err)
		}
	}

	engine := progress.New(docs, reconciler, logger)
	sweeper := timer.NewSweeper(docs, engine, logger)

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Store:  docs,
		Engine: engine,
		Checkers: map[string]health.Checker{
			"sqlite": health.CheckerFunc(docs.Ping),
		},
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		return sweeper.Run(gctx, cfg.TimerSweepInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}
