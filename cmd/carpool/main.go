// Command carpool is the participant-side client. It talks to the store
// directly and remembers, per carpool, which registration is this device's
// in a local SQLite file.
//
//	carpool status   -carpool ID
//	carpool register -carpool ID -kind ride|waitlist [details] [-resume]
//	carpool edit     -carpool ID -kind ride|waitlist [details]
//	carpool cancel   -carpool ID
//	carpool book     -carpool ID -ride ID -name N (-email E | -phone P)
//	carpool matches  -carpool ID [-at RFC3339] [-window 2h]
//	carpool draft    -carpool ID [-clear]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pkordes/easy-carpool/internal/config"
	"github.com/pkordes/easy-carpool/internal/logging"
	"github.com/pkordes/easy-carpool/internal/repo"
	"github.com/pkordes/easy-carpool/internal/service"
	"github.com/pkordes/easy-carpool/internal/storage/sqlite"
	"github.com/pkordes/easy-carpool/internal/storecall"
)

const usage = `usage: carpool <command> -carpool ID [flags]

commands:
  status    show this device's registration in the carpool
  register  offer a ride or join the waitlist
  edit      replace this device's registration
  cancel    delete this device's registration
  book      take a seat on a ride
  matches   list rides and waitlist ranked against your departure
  draft     show or clear the saved draft

run "carpool <command> -h" for the flags of a command.
`

// errUsage means the command line was wrong; the flag set has already
// explained why.
var errUsage = errors.New("usage")

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1], os.Args[2:], os.Stdout)
	stop()

	switch {
	case errors.Is(err, errUsage):
		os.Exit(2)
	case err != nil:
		fmt.Fprintln(os.Stderr, "carpool:", err)
		os.Exit(1)
	}
}

// app is everything a command needs.
type app struct {
	out      io.Writer
	logger   *slog.Logger
	cache    *sqlite.Cache
	coord    *service.RegistrationCoordinator
	ledger   *service.SeatLedger
	matches  *service.MatchService
	carpools repo.CarpoolRepo
}

func run(ctx context.Context, name string, args []string, out io.Writer) error {
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", name, usage)
		return errUsage
	}
	opts, err := cmd.parse(name, args)
	if err != nil {
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// The CLI is read by people, so it logs as text to stderr regardless of LOG_FORMAT.
	logger := logging.New(os.Stderr, cfg.LogLevel, "text")

	cache, err := sqlite.Open(cfg.PointerCachePath)
	if err != nil {
		return err
	}
	defer cache.Close()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	rt := service.Runtime{
		Calls:  storecall.Policy{Timeout: cfg.StoreTimeout, MaxAttempts: cfg.StoreMaxAttempts},
		Logger: logger,
	}
	carpools := repo.NewCarpoolRepo(pool)
	rides := repo.NewRideRepo(pool)
	waitlist := repo.NewWaitlistRepo(pool)

	a := &app{
		out:    out,
		logger: logger,
		cache:  cache,
		coord: service.NewRegistrationCoordinator(
			service.RegistrationStores{Carpools: carpools, Rides: rides, Waitlist: waitlist},
			cache, cfg.ExpiryHorizon, rt),
		ledger:   service.NewSeatLedger(rides, rt),
		matches:  service.NewMatchService(carpools, rides, waitlist, rt),
		carpools: carpools,
	}
	return cmd.run(ctx, a, opts)
}
