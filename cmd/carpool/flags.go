package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/easy-carpool/internal/domain"
)

// options holds every flag any command accepts; each command registers
// only the ones it uses.
type options struct {
	carpoolID uuid.UUID
	rideID    uuid.UUID

	reg    registrationFlags
	resume bool
	clear  bool

	name  string
	email string
	phone string

	at     *time.Time
	window time.Duration
}

// registrationFlags describe a ride offer or waitlist entry.
type registrationFlags struct {
	kind        string
	name        string
	email       string
	phone       string
	date        string
	time        string
	from        string
	to          string
	seats       int
	luggage     string
	notes       string
	canDrive    bool
	preferDrive bool
}

func (f *registrationFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.kind, "kind", "", "ride or waitlist")
	fs.StringVar(&f.name, "name", "", "your name")
	fs.StringVar(&f.email, "email", "", "contact email")
	fs.StringVar(&f.phone, "phone", "", "contact phone")
	fs.StringVar(&f.date, "date", "", "departure day, YYYY-MM-DD")
	fs.StringVar(&f.time, "time", "", "fixed departure time, HH:MM")
	fs.StringVar(&f.from, "from", "", "start of a flexible departure window, HH:MM")
	fs.StringVar(&f.to, "to", "", "end of a flexible departure window, HH:MM")
	fs.IntVar(&f.seats, "seats", 0, "seats offered (rides)")
	fs.StringVar(&f.luggage, "luggage", "", "small, medium or large (rides)")
	fs.StringVar(&f.notes, "notes", "", "anything else riders should know")
	fs.BoolVar(&f.canDrive, "can-drive", false, "willing to drive")
	fs.BoolVar(&f.preferDrive, "prefer-drive", false, "prefer to drive (rides)")
}

// empty reports whether no registration detail was given.
func (f registrationFlags) empty() bool {
	return f == registrationFlags{}
}

// build turns the flags into a registration. A window given with -from/-to
// makes the departure flexible.
func (f registrationFlags) build() (domain.Registration, error) {
	kind, err := domain.ParseRegistrationKind(f.kind)
	if err != nil {
		return domain.Registration{}, err
	}
	contact := domain.Contact{Email: strings.TrimSpace(f.email), Phone: strings.TrimSpace(f.phone)}
	departure := domain.DepartureSpec{Date: strings.TrimSpace(f.date)}
	if f.from != "" || f.to != "" {
		departure.IsFlexible = true
		departure.RangeStart = strings.TrimSpace(f.from)
		departure.RangeEnd = strings.TrimSpace(f.to)
	}
	departure.FixedTime = strings.TrimSpace(f.time)

	var reg domain.Registration
	switch kind {
	case domain.KindRide:
		luggage, err := domain.ParseLuggageSpace(f.luggage)
		if err != nil {
			return domain.Registration{}, err
		}
		reg = domain.RideRegistration(domain.RideOffer{
			DriverName:    strings.TrimSpace(f.name),
			Contact:       contact,
			Departure:     departure,
			SeatsTotal:    f.seats,
			LuggageSpace:  luggage,
			PreferToDrive: f.preferDrive,
			CanDrive:      f.canDrive,
			Notes:         f.notes,
		})
	case domain.KindWaitlist:
		reg = domain.WaitlistRegistration(domain.WaitlistEntry{
			Name:      strings.TrimSpace(f.name),
			Contact:   contact,
			Departure: departure,
			CanDrive:  f.canDrive,
			Notes:     f.notes,
		})
	}
	if err := reg.Validate(); err != nil {
		return domain.Registration{}, err
	}
	return reg, nil
}

// uuidFlag parses a UUID flag value.
type uuidFlag struct{ id *uuid.UUID }

func (u uuidFlag) String() string {
	if u.id == nil || *u.id == uuid.Nil {
		return ""
	}
	return u.id.String()
}

func (u uuidFlag) Set(s string) error {
	id, err := uuid.Parse(s)
	if err != nil {
		return errors.New("must be a UUID")
	}
	*u.id = id
	return nil
}

// timeFlag parses an RFC 3339 instant.
type timeFlag struct{ at **time.Time }

func (t timeFlag) String() string {
	if t.at == nil || *t.at == nil {
		return ""
	}
	return (*t.at).Format(time.RFC3339)
}

func (t timeFlag) Set(s string) error {
	at, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return errors.New("must be an RFC 3339 timestamp")
	}
	*t.at = &at
	return nil
}

// flagSet builds the flag set shared by every command: each one needs -carpool.
func flagSet(name string, o *options) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Var(uuidFlag{&o.carpoolID}, "carpool", "carpool id (required)")
	return fs
}

// parseWith parses args into o and checks the flags every command requires.
func parseWith(fs *flag.FlagSet, o *options, args []string) (*options, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		err := fmt.Errorf("unexpected argument %q", fs.Arg(0))
		fmt.Fprintln(fs.Output(), err)
		return nil, err
	}
	if o.carpoolID == uuid.Nil {
		err := errors.New("-carpool is required")
		fmt.Fprintln(fs.Output(), err)
		fs.Usage()
		return nil, err
	}
	return o, nil
}
