package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/easy-carpool/internal/domain"
	"github.com/pkordes/easy-carpool/internal/service"
)

type command struct {
	parse func(name string, args []string) (*options, error)
	run   func(ctx context.Context, a *app, o *options) error
}

var commands = map[string]command{
	"status":   {parse: parseCarpoolOnly, run: runStatus},
	"register": {parse: parseRegister, run: runRegister},
	"edit":     {parse: parseRegistration, run: runEdit},
	"cancel":   {parse: parseCarpoolOnly, run: runCancel},
	"book":     {parse: parseBook, run: runBook},
	"matches":  {parse: parseMatches, run: runMatches},
	"draft":    {parse: parseDraft, run: runDraft},
}

func parseCarpoolOnly(name string, args []string) (*options, error) {
	o := &options{}
	return parseWith(flagSet(name, o), o, args)
}

func parseRegistration(name string, args []string) (*options, error) {
	o := &options{}
	fs := flagSet(name, o)
	o.reg.register(fs)
	return parseWith(fs, o, args)
}

func parseRegister(name string, args []string) (*options, error) {
	o := &options{}
	fs := flagSet(name, o)
	o.reg.register(fs)
	fs.BoolVar(&o.resume, "resume", false, "submit the saved draft instead of flags")
	return parseWith(fs, o, args)
}

func parseBook(name string, args []string) (*options, error) {
	o := &options{}
	fs := flagSet(name, o)
	fs.Var(uuidFlag{&o.rideID}, "ride", "ride id (required)")
	fs.StringVar(&o.name, "name", "", "passenger name")
	fs.StringVar(&o.email, "email", "", "passenger email")
	fs.StringVar(&o.phone, "phone", "", "passenger phone")
	o, err := parseWith(fs, o, args)
	if err == nil && o.rideID == uuid.Nil {
		err = errors.New("-ride is required")
		fmt.Fprintln(fs.Output(), err)
	}
	return o, err
}

func parseMatches(name string, args []string) (*options, error) {
	o := &options{}
	fs := flagSet(name, o)
	fs.Var(timeFlag{&o.at}, "at", "rank against this instant instead of your own departure")
	fs.DurationVar(&o.window, "window", 0, "hide scheduled entries further than this from the reference")
	return parseWith(fs, o, args)
}

func parseDraft(name string, args []string) (*options, error) {
	o := &options{}
	fs := flagSet(name, o)
	fs.BoolVar(&o.clear, "clear", false, "discard the saved draft")
	return parseWith(fs, o, args)
}

// runStatus reports this device's registration. When the store cannot be
// reached it falls back to the last snapshot the cache holds.
func runStatus(ctx context.Context, a *app, o *options) error {
	state, err := a.coord.Enter(ctx, o.carpoolID)
	if err == nil {
		return printJSON(a.out, state)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	snapshot, ok, snapErr := a.cache.Snapshot(ctx, o.carpoolID)
	if snapErr != nil || !ok {
		return err
	}
	a.logger.Warn("store unreachable, showing the last known registration", "error", err)
	return printJSON(a.out, struct {
		service.State
		Offline bool `json:"offline"`
	}{service.State{Status: service.StatusRegistered, Registration: &snapshot}, true})
}

// runRegister submits a new registration. The registration is checkpointed
// as a draft first and the draft is cleared once the store accepts it, so a
// failed submission can be retried with -resume.
func runRegister(ctx context.Context, a *app, o *options) error {
	var (
		reg domain.Registration
		err error
	)
	if o.resume {
		if !o.reg.empty() {
			return errors.New("-resume cannot be combined with registration flags")
		}
		var ok bool
		reg, ok, err = a.cache.LoadDraft(ctx, o.carpoolID)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("no saved draft for this carpool")
		}
	} else {
		reg, err = o.reg.build()
		if err != nil {
			return err
		}
		if err := a.cache.SaveDraft(ctx, o.carpoolID, reg); err != nil {
			a.logger.Warn("saving draft failed", "error", err)
		}
	}

	saved, err := a.coord.Create(ctx, o.carpoolID, reg)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyRegistered) {
			return errors.New(`already registered in this carpool; use "carpool edit" or "carpool cancel"`)
		}
		return fmt.Errorf("%w (draft kept; retry with -resume)", err)
	}
	if err := a.cache.ClearDraft(ctx, o.carpoolID); err != nil {
		a.logger.Warn("clearing draft failed", "error", err)
	}
	return printJSON(a.out, saved)
}

func runEdit(ctx context.Context, a *app, o *options) error {
	reg, err := o.reg.build()
	if err != nil {
		return err
	}
	saved, err := a.coord.Edit(ctx, o.carpoolID, reg)
	if err != nil {
		return err
	}
	return printJSON(a.out, saved)
}

func runCancel(ctx context.Context, a *app, o *options) error {
	err := a.coord.Delete(ctx, o.carpoolID)
	if errors.Is(err, domain.ErrNotFound) {
		return errors.New("this device has no registration in the carpool")
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "registration deleted")
	return nil
}

func runBook(ctx context.Context, a *app, o *options) error {
	booking, err := a.ledger.BookSeat(ctx, o.carpoolID, o.rideID, domain.Passenger{
		Name:    o.name,
		Contact: domain.Contact{Email: o.email, Phone: o.phone},
	})
	if errors.Is(err, domain.ErrNoSeatsAvailable) {
		return errors.New("that ride is full")
	}
	if err != nil {
		return err
	}
	return printJSON(a.out, booking)
}

func runMatches(ctx context.Context, a *app, o *options) error {
	viewer, err := a.coord.Reference(ctx, o.carpoolID)
	if err != nil {
		return err
	}
	view, err := a.matches.View(ctx, service.MatchQuery{
		CarpoolID: o.carpoolID,
		Viewer:    viewer,
		At:        o.at,
		Window:    o.window,
	})
	if err != nil {
		return err
	}
	return printMatches(a.out, view)
}

func runDraft(ctx context.Context, a *app, o *options) error {
	if o.clear {
		return a.cache.ClearDraft(ctx, o.carpoolID)
	}
	draft, ok, err := a.cache.LoadDraft(ctx, o.carpoolID)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(a.out, "no saved draft")
		return nil
	}
	return printJSON(a.out, draft)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printMatches renders a match view as two aligned tables.
func printMatches(w io.Writer, v service.MatchView) error {
	fmt.Fprintf(w, "%s (%s), ordered by %s\n", v.Carpool.Name, v.Carpool.TimeZone, v.Ordering)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nRIDES\tDEPARTS\tSEATS\t")
	for _, m := range v.Rides {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\n",
			m.Ride.DriverName, departs(m.DepartureAt, m.Ride.Departure), m.SeatsAvailable, m.Ride.SeatsTotal, m.Delta)
	}
	fmt.Fprintln(tw, "\nWAITLIST\tDEPARTS\t\t")
	for _, m := range v.Waitlist {
		fmt.Fprintf(tw, "%s\t%s\t\t%s\n", m.Entry.Name, departs(m.DepartureAt, m.Entry.Departure), m.Delta)
	}
	return tw.Flush()
}

func departs(at *time.Time, d domain.DepartureSpec) string {
	if at == nil {
		return fmt.Sprintf("%s %s (unscheduled)", d.Date, d.ReferenceTime())
	}
	return at.Format("Mon Jan 2 15:04 MST")
}
