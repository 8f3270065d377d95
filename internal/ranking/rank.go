// Package ranking orders registrations by how close their departure is to a
// reference instant. Every function here is pure: callers re-run the ranking
// whenever the candidate set or the reference changes.
package ranking

import (
	"slices"
	"time"
)

// Candidate is one registration to be ranked.
// Resolved is false for registrations whose departure could not be resolved;
// At is ignored in that case.
type Candidate struct {
	ID       string
	At       time.Time
	Resolved bool
}

// Rank returns candidate ids ordered by proximity to reference:
//   - smaller |At - reference| first;
//   - on equal distance, a candidate at or after reference precedes one before it;
//   - unresolved candidates come last, in input order.
func Rank(reference time.Time, candidates []Candidate) []string {
	sorted := slices.Clone(candidates)
	slices.SortStableFunc(sorted, func(a, b Candidate) int {
		if c := compareResolved(a, b); c != 0 || !a.Resolved {
			return c
		}
		da, db := a.At.Sub(reference), b.At.Sub(reference)
		if c := compareDuration(abs(da), abs(db)); c != 0 {
			return c
		}
		// Equal distance: the later (non-negative) delta wins.
		switch {
		case da >= 0 && db < 0:
			return -1
		case da < 0 && db >= 0:
			return 1
		}
		return 0
	})
	return ids(sorted)
}

// Chronological orders candidates by departure ascending with unresolved
// candidates last. It is the ordering used when the viewer has no reference.
func Chronological(candidates []Candidate) []string {
	sorted := slices.Clone(candidates)
	slices.SortStableFunc(sorted, func(a, b Candidate) int {
		if c := compareResolved(a, b); c != 0 || !a.Resolved {
			return c
		}
		return a.At.Compare(b.At)
	})
	return ids(sorted)
}

// WithinWindow keeps resolved candidates departing no more than window away
// from reference, plus every unresolved candidate. A non-positive window
// disables the filter.
func WithinWindow(reference time.Time, candidates []Candidate, window time.Duration) []Candidate {
	if window <= 0 {
		return candidates
	}
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.Resolved || abs(c.At.Sub(reference)) <= window {
			out = append(out, c)
		}
	}
	return out
}

// compareResolved sorts resolved candidates before unresolved ones.
func compareResolved(a, b Candidate) int {
	switch {
	case a.Resolved && !b.Resolved:
		return -1
	case !a.Resolved && b.Resolved:
		return 1
	}
	return 0
}

func compareDuration(a, b time.Duration) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func ids(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}
