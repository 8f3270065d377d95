// Package realtime fans store change notifications out to open watchers.
// Postgres triggers NOTIFY on every registration change; a Listener turns
// those into Changes on a Hub, and each websocket watcher recomputes its
// view when its carpool changes.
package realtime

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/pkordes/easy-carpool/internal/metrics"
)

// Channel is the Postgres NOTIFY channel the change triggers publish on.
const Channel = "carpool_changes"

// Collections named in a Change.
const (
	CollectionRides    = "rides"
	CollectionWaitlist = "waitlist"
)

// Change says that something in one of a carpool's collections changed.
// It carries no row data: receivers re-read what they need.
type Change struct {
	CarpoolID  uuid.UUID `json:"carpool_id"`
	Collection string    `json:"collection"`
}

// ParseChange decodes a NOTIFY payload of the form "<carpool id>:<collection>".
func ParseChange(payload string) (Change, error) {
	id, collection, ok := strings.Cut(payload, ":")
	if !ok {
		return Change{}, fmt.Errorf("realtime.ParseChange: malformed payload %q", payload)
	}
	carpoolID, err := uuid.Parse(id)
	if err != nil {
		return Change{}, fmt.Errorf("realtime.ParseChange: carpool id: %w", err)
	}
	switch collection {
	case CollectionRides, CollectionWaitlist:
	default:
		return Change{}, fmt.Errorf("realtime.ParseChange: unknown collection %q", collection)
	}
	return Change{CarpoolID: carpoolID, Collection: collection}, nil
}

// Hub routes Changes to the subscribers of each carpool.
// Publish never blocks: a subscriber that has not drained its previous
// signal simply keeps that one, since every signal means "recompute".
type Hub struct {
	mu      sync.Mutex
	subs    map[uuid.UUID]map[*Subscription]struct{}
	metrics *metrics.Metrics
}

// NewHub returns an empty Hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{subs: make(map[uuid.UUID]map[*Subscription]struct{}), metrics: m}
}

// Subscription receives the Changes of one carpool until Close is called.
type Subscription struct {
	// C is closed by Close.
	C <-chan Change

	ch        chan Change
	hub       *Hub
	carpoolID uuid.UUID
	once      sync.Once
}

// Subscribe registers interest in carpoolID.
func (h *Hub) Subscribe(carpoolID uuid.UUID) *Subscription {
	ch := make(chan Change, 1)
	s := &Subscription{C: ch, ch: ch, hub: h, carpoolID: carpoolID}

	h.mu.Lock()
	set, ok := h.subs[carpoolID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[carpoolID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()

	h.metrics.WatchOpened()
	return s
}

// Close unsubscribes and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		if set, ok := h.subs[s.carpoolID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(h.subs, s.carpoolID)
			}
		}
		close(s.ch)
		h.mu.Unlock()
		h.metrics.WatchClosed()
	})
}

// Publish delivers c to every subscriber of c.CarpoolID and returns how
// many received a new signal.
func (h *Hub) Publish(c Change) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for s := range h.subs[c.CarpoolID] {
		select {
		case s.ch <- c:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers reports how many subscriptions carpoolID has.
func (h *Hub) Subscribers(carpoolID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[carpoolID])
}
