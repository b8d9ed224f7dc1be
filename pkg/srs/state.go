// Package srs implements the spaced-repetition core: an interval model that
// turns a self-reported outcome into the next review interval, and a selector
// that picks the next record to present from a candidate set.
//
// Both are pure functions of their inputs. Persistence and serialisation of
// per-learner access are the caller's job.
package srs

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultInterval is the interval (in days) assumed for a record that has
// never been rated. It is also the floor for "hard" ratings.
const DefaultInterval = 0.5

// secondsPerDay converts interval days to elapsed seconds.
const secondsPerDay = 86400

// Outcome is the learner's self-reported difficulty for a record.
type Outcome string

const (
	OutcomeHard   Outcome = "hard"
	OutcomeMedium Outcome = "medium"
	OutcomeEasy   Outcome = "easy"
)

// Outcomes lists the valid outcomes from hardest to easiest.
var Outcomes = []Outcome{OutcomeHard, OutcomeMedium, OutcomeEasy}

// ErrInvalidOutcome is returned by ParseOutcome for values outside the enumeration.
var ErrInvalidOutcome = errors.New("invalid outcome")

// Valid reports whether o is one of hard, medium or easy.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeHard, OutcomeMedium, OutcomeEasy:
		return true
	}
	return false
}

// ParseOutcome validates a boundary value (form field, CLI argument, JSON).
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(strings.ToLower(strings.TrimSpace(s)))
	if !o.Valid() {
		return "", fmt.Errorf("%w %q (want hard, medium or easy)", ErrInvalidOutcome, s)
	}
	return o, nil
}

// State is the scheduling metadata kept for one record of one learner.
//
// State is not a wire type: stores persist it as epoch seconds through
// model.ReviewEntry.
type State struct {
	Interval   float64   `json:"interval_days"`
	LastReview time.Time `json:"last_review_at"` // zero means never reviewed
}

// NewState returns the implicit state of a record that was never rated.
func NewState() State {
	return State{Interval: DefaultInterval}
}

// Reviewed reports whether the record has been rated at least once.
func (s State) Reviewed() bool {
	return !s.LastReview.IsZero()
}

// IsDue reports whether the elapsed time since the last review meets or
// exceeds the interval. Never-reviewed states are always due.
func (s State) IsDue(now time.Time) bool {
	if !s.Reviewed() {
		return true
	}
	return EpochSeconds(now)-EpochSeconds(s.LastReview) >= s.Interval*secondsPerDay
}

// NextReview returns the point in time at which the state becomes due.
func (s State) NextReview() time.Time {
	base := s.LastReview
	if base.IsZero() {
		base = time.Unix(0, 0)
	}
	return base.Add(time.Duration(s.Interval * secondsPerDay * float64(time.Second)))
}

// StateMap holds the states of one learner keyed by record ID.
// Absent entries mean "never reviewed".
type StateMap map[int]State

// Lookup returns the stored state for id, or the implicit default.
func (m StateMap) Lookup(id int) State {
	if st, ok := m[id]; ok {
		return st
	}
	return State{Interval: DefaultInterval}
}

// Review applies an outcome to the state of id, stores the result and returns it.
func (m StateMap) Review(id int, o Outcome, now time.Time) State {
	st := Apply(m[id], o, now)
	m[id] = st
	return st
}

// EpochSeconds converts t to fractional Unix seconds; the zero time maps to 0.
func EpochSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// FromEpochSeconds is the inverse of EpochSeconds. Zero (or negative) maps
// back to the zero time.
func FromEpochSeconds(sec float64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	whole := int64(sec)
	frac := sec - float64(whole)
	return time.Unix(whole, int64(frac*1e9)).UTC()
}
