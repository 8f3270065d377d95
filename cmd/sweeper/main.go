// Package main runs the expiry sweeper: a separate process that deletes
// rides and waitlist entries whose expires_at has passed.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pkordes/easy-carpool/internal/config"
	"github.com/pkordes/easy-carpool/internal/logging"
	"github.com/pkordes/easy-carpool/internal/repo"
	"github.com/pkordes/easy-carpool/internal/service"
	"github.com/pkordes/easy-carpool/internal/storecall"
)

func main() {
	once := flag.Bool("once", false, "sweep a single time and exit")
	flag.Parse()

	if err := run(*once); err != nil {
		slog.Error("sweeper exited", "error", err)
		os.Exit(1)
	}
}

func run(once bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	sweeper := service.NewSweeper(repo.NewRideRepo(pool), repo.NewWaitlistRepo(pool), service.Runtime{
		Calls:  storecall.Policy{Timeout: cfg.StoreTimeout, MaxAttempts: cfg.StoreMaxAttempts},
		Logger: logger,
	})

	// Sweep logs its own counts; a failed run is retried on the next tick.
	sweep := func() {
		if _, err := sweeper.Sweep(ctx); err != nil {
			logger.Error("sweep failed", "error", err)
		}
	}

	sweep()
	if once {
		return nil
	}

	logger.Info("sweeper running", "interval", cfg.SweepInterval)
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper stopped")
			return nil
		case <-ticker.C:
			sweep()
		}
	}
}
