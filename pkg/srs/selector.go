package srs

import (
	"cmp"
	"errors"
	"math/rand/v2"
	"slices"
	"time"
)

// ErrEmptyCandidateSet is returned when there is nothing to select from,
// typically because an upstream filter matched no records.
var ErrEmptyCandidateSet = errors.New("empty candidate set")

// Keyed is implemented by anything the selector can schedule.
type Keyed interface {
	Key() int
}

// Selector picks the next record to present.
type Selector struct {
	intn func(n int) int
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithRand makes the selector draw from r instead of the global source.
// A *rand.Rand is not safe for concurrent use; callers sharing one must serialise.
func WithRand(r *rand.Rand) SelectorOption {
	return func(s *Selector) {
		s.intn = r.IntN
	}
}

// NewSelector creates a Selector drawing from the global random source.
func NewSelector(opts ...SelectorOption) *Selector {
	s := &Selector{intn: rand.IntN}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectNext chooses one of candidates.
//
// A candidate is due when the time since its last review is at least its
// interval; candidates without a state are always due. When some are due, one
// of them is drawn uniformly. When none are due, the candidates are ordered by
// last review (oldest first) and the draw is made across that whole list, not
// only its head.
func SelectNext[T Keyed](s *Selector, candidates []T, states StateMap, now time.Time) (T, error) {
	var zero T
	if len(candidates) == 0 {
		return zero, ErrEmptyCandidateSet
	}

	due := Due(candidates, states, now)
	if len(due) > 0 {
		return due[s.intn(len(due))], nil
	}

	fallback := ByLastReview(candidates, states)
	return fallback[s.intn(len(fallback))], nil
}

// Due returns the due subset of candidates in their original order.
func Due[T Keyed](candidates []T, states StateMap, now time.Time) []T {
	var due []T
	for _, c := range candidates {
		if states.Lookup(c.Key()).IsDue(now) {
			due = append(due, c)
		}
	}
	return due
}

// ByLastReview returns a copy of candidates sorted by ascending last review.
// Never-reviewed candidates sort first; ties keep their input order.
func ByLastReview[T Keyed](candidates []T, states StateMap) []T {
	sorted := slices.Clone(candidates)
	slices.SortStableFunc(sorted, func(a, b T) int {
		return cmp.Compare(
			EpochSeconds(states.Lookup(a.Key()).LastReview),
			EpochSeconds(states.Lookup(b.Key()).LastReview),
		)
	})
	return sorted
}
