// Package main is the entry point for the carpool API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"github.com/pkordes/easy-carpool/api"
	"github.com/pkordes/easy-carpool/internal/config"
	"github.com/pkordes/easy-carpool/internal/handler"
	"github.com/pkordes/easy-carpool/internal/logging"
	"github.com/pkordes/easy-carpool/internal/metrics"
	"github.com/pkordes/easy-carpool/internal/middleware"
	"github.com/pkordes/easy-carpool/internal/realtime"
	"github.com/pkordes/easy-carpool/internal/repo"
	"github.com/pkordes/easy-carpool/internal/service"
	"github.com/pkordes/easy-carpool/internal/storecall"
	"github.com/pkordes/easy-carpool/migrations"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// --- Logger -----------------------------------------------------------
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database ---------------------------------------------------------
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	logger.Info("database connection established")

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()
	applied, err := migrations.Up(ctx, sqlDB)
	if err != nil {
		return err
	}
	logger.Info("migrations applied", "count", applied)

	// --- Services ---------------------------------------------------------
	m := metrics.New("carpool")
	rt := service.Runtime{
		Calls: storecall.Policy{
			Timeout:     cfg.StoreTimeout,
			MaxAttempts: cfg.StoreMaxAttempts,
			OnRetry: func(op string, err error) {
				m.StoreRetry(op, err)
				logger.Warn("retrying store call", "op", op, "error", err)
			},
		},
		Logger:  logger,
		Metrics: m,
	}

	carpoolRepo := repo.NewCarpoolRepo(pool)
	rideRepo := repo.NewRideRepo(pool)
	waitlistRepo := repo.NewWaitlistRepo(pool)
	pointerRepo := repo.NewPointerRepo(pool)

	stores := service.RegistrationStores{Carpools: carpoolRepo, Rides: rideRepo, Waitlist: waitlistRepo}
	registrations := func(participantID string) handler.Registrar {
		return service.NewRegistrationCoordinator(stores, repo.ForParticipant(pointerRepo, participantID), cfg.ExpiryHorizon, rt)
	}

	hub := realtime.NewHub(m)
	listener := realtime.NewListener(pool, hub, logger)

	server := handler.NewServer(handler.Deps{
		Carpools:      service.NewCarpoolService(carpoolRepo, rt),
		Listings:      service.NewListingService(carpoolRepo, rideRepo, waitlistRepo, rt),
		Seats:         service.NewSeatLedger(rideRepo, rt),
		Registrations: registrations,
		Matches:       service.NewMatchService(carpoolRepo, rideRepo, waitlistRepo, rt),
		Changes:       hub,
		Metrics:       m.Handler(),
		OpenAPI:       api.OpenAPI,
		WatchOrigins:  cfg.CORSOrigins,
		Logger:        logger,
	})

	// --- Router -----------------------------------------------------------
	// RequestID must come before the logger so every line carries the id.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))
	r.Mount("/", server.Routes())

	// --- HTTP Server ------------------------------------------------------
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		// Watch sockets outlive Shutdown; deriving from ctx closes them on signal.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := listener.Run(gctx); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
