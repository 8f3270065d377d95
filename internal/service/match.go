package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pkordes/easy-carpool/internal/domain"
	"github.com/pkordes/easy-carpool/internal/ranking"
	"github.com/pkordes/easy-carpool/internal/repo"
	"github.com/pkordes/easy-carpool/internal/schedule"
	"github.com/pkordes/easy-carpool/internal/storecall"
)

// Orderings reported in MatchView.Ordering.
const (
	OrderProximity     = "proximity"
	OrderChronological = "chronological"
)

// MatchQuery selects how a carpool's registrations are ranked.
type MatchQuery struct {
	CarpoolID uuid.UUID
	// Viewer is the participant's own registration. It is excluded from the
	// lists and, when resolved, is the reference everyone is ranked against.
	Viewer Viewer
	// At overrides the viewer's reference instant.
	At *time.Time
	// Window drops resolved registrations further than this from the
	// reference. Zero disables it.
	Window time.Duration
}

// RideMatch is one ride in a match view.
type RideMatch struct {
	Ride           domain.RideOffer `json:"ride"`
	SeatsAvailable int              `json:"seats_available"`
	DepartureAt    *time.Time       `json:"departure_at,omitempty"`
	Delta          string           `json:"delta,omitempty"`
}

// WaitlistMatch is one waitlist entry in a match view.
type WaitlistMatch struct {
	Entry       domain.WaitlistEntry `json:"entry"`
	DepartureAt *time.Time           `json:"departure_at,omitempty"`
	Delta       string               `json:"delta,omitempty"`
}

// MatchView is a carpool's upcoming registrations ranked for one viewer.
type MatchView struct {
	Carpool   domain.Carpool       `json:"carpool"`
	Reference *time.Time           `json:"reference,omitempty"`
	Ordering  string               `json:"ordering"`
	Own       *domain.Registration `json:"own,omitempty"`
	Rides     []RideMatch          `json:"rides"`
	Waitlist  []WaitlistMatch      `json:"waitlist"`
}

// MatchService builds ranked views of a carpool's rides and waitlist.
// It holds no cache; every call re-reads the store and re-ranks.
type MatchService struct {
	carpools repo.CarpoolRepo
	rides    repo.RideRepo
	waitlist repo.WaitlistRepo
	rt       Runtime
}

// NewMatchService constructs a MatchService over the given repos.
func NewMatchService(carpools repo.CarpoolRepo, rides repo.RideRepo, waitlist repo.WaitlistRepo, rt Runtime) *MatchService {
	return &MatchService{carpools: carpools, rides: rides, waitlist: waitlist, rt: rt}
}

// View loads the carpool, its rides and its waitlist concurrently, drops
// registrations dated before today in the carpool's zone, and ranks the rest.
func (s *MatchService) View(ctx context.Context, q MatchQuery) (MatchView, error) {
	var (
		carpool domain.Carpool
		rides   []domain.RideOffer
		entries []domain.WaitlistEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		carpool, err = storecall.Get(gctx, s.rt.Calls, "carpools.get", func(ctx context.Context) (domain.Carpool, error) {
			return s.carpools.GetByID(ctx, q.CarpoolID)
		})
		return err
	})
	g.Go(func() (err error) {
		rides, err = storecall.Get(gctx, s.rt.Calls, "rides.list", func(ctx context.Context) ([]domain.RideOffer, error) {
			return s.rides.ListByCarpool(ctx, q.CarpoolID)
		})
		return err
	})
	g.Go(func() (err error) {
		entries, err = storecall.Get(gctx, s.rt.Calls, "waitlist.list", func(ctx context.Context) ([]domain.WaitlistEntry, error) {
			return s.waitlist.ListByCarpool(ctx, q.CarpoolID)
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return MatchView{}, fmt.Errorf("service.MatchService.View: %w", err)
	}

	started := time.Now()
	defer func() { s.rt.Metrics.ObserveRank(time.Since(started).Seconds()) }()

	view := MatchView{
		Carpool:  carpool,
		Ordering: OrderChronological,
		Own:      q.Viewer.Registration,
		Rides:    []RideMatch{},
		Waitlist: []WaitlistMatch{},
	}

	ref, hasRef := q.Viewer.At, q.Viewer.Resolved
	if q.At != nil {
		ref, hasRef = *q.At, true
	}
	if hasRef {
		view.Reference = &ref
		view.Ordering = OrderProximity
	}

	own := uuid.Nil
	if q.Viewer.Registration != nil {
		own = q.Viewer.Registration.ID()
	}

	b := board{
		timeZone: carpool.TimeZone,
		ref:      ref,
		hasRef:   hasRef,
		window:   q.Window,
		own:      own,
	}
	b.today, b.hasToday = schedule.Today(carpool.TimeZone, s.rt.now())

	rideIdx := make(map[string]domain.RideOffer, len(rides))
	rideSpecs := make([]listed, 0, len(rides))
	for _, r := range rides {
		rideIdx[r.ID.String()] = r
		rideSpecs = append(rideSpecs, listed{id: r.ID, departure: r.Departure})
	}
	for _, p := range b.order(rideSpecs) {
		r := rideIdx[p.id]
		view.Rides = append(view.Rides, RideMatch{
			Ride:           r,
			SeatsAvailable: r.SeatsAvailable(),
			DepartureAt:    p.at,
			Delta:          p.delta,
		})
	}

	entryIdx := make(map[string]domain.WaitlistEntry, len(entries))
	entrySpecs := make([]listed, 0, len(entries))
	for _, e := range entries {
		entryIdx[e.ID.String()] = e
		entrySpecs = append(entrySpecs, listed{id: e.ID, departure: e.Departure})
	}
	for _, p := range b.order(entrySpecs) {
		view.Waitlist = append(view.Waitlist, WaitlistMatch{
			Entry:       entryIdx[p.id],
			DepartureAt: p.at,
			Delta:       p.delta,
		})
	}

	return view, nil
}

type listed struct {
	id        uuid.UUID
	departure domain.DepartureSpec
}

type placed struct {
	id    string
	at    *time.Time
	delta string
}

// board holds what is fixed for one View call.
type board struct {
	timeZone string
	today    time.Time
	hasToday bool
	ref      time.Time
	hasRef   bool
	window   time.Duration
	own      uuid.UUID
}

// order filters and ranks one list of registrations.
func (b board) order(items []listed) []placed {
	dated := make([]ranking.Dated, 0, len(items))
	for _, it := range items {
		if it.id == b.own {
			continue
		}
		day, ok := schedule.ParseDate(it.departure.Date)
		dated = append(dated, ranking.Dated{ID: it.id.String(), Day: day, HasDate: ok})
	}

	var keep map[string]bool
	if b.hasToday {
		keep = ranking.Upcoming(b.today, dated)
	} else {
		keep = make(map[string]bool, len(dated))
		for _, d := range dated {
			keep[d.ID] = true
		}
	}

	candidates := make([]ranking.Candidate, 0, len(keep))
	for _, it := range items {
		id := it.id.String()
		if !keep[id] {
			continue
		}
		at, ok := schedule.Resolve(it.departure, b.timeZone)
		candidates = append(candidates, ranking.Candidate{ID: id, At: at, Resolved: ok})
	}

	var ordered []string
	if b.hasRef {
		ordered = ranking.Rank(b.ref, ranking.WithinWindow(b.ref, candidates, b.window))
	} else {
		ordered = ranking.Chronological(candidates)
	}

	byID := make(map[string]ranking.Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	out := make([]placed, 0, len(ordered))
	for _, id := range ordered {
		c := byID[id]
		p := placed{id: id}
		if c.Resolved {
			at := c.At
			p.at = &at
			if b.hasRef {
				p.delta = ranking.DescribeDelta(c.At.Sub(b.ref))
			}
		}
		out = append(out, p)
	}
	return out
}
