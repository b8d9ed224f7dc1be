package srs

import (
	"math"
	"time"
)

// Interval multipliers per outcome.
const (
	hardFactor   = 0.5
	mediumFactor = 1.5
	easyFactor   = 2.5
)

// NextInterval returns the interval that follows current after outcome o.
//
//	hard   -> max(current*0.5, 0.5)
//	medium -> current*1.5
//	easy   -> current*2.5
//
// There is no upper bound. An outcome outside the enumeration leaves the
// interval unchanged; validate with ParseOutcome before calling.
func NextInterval(current float64, o Outcome) float64 {
	switch o {
	case OutcomeHard:
		return math.Max(current*hardFactor, DefaultInterval)
	case OutcomeMedium:
		return current * mediumFactor
	case OutcomeEasy:
		return current * easyFactor
	}
	return current
}

// Compute is the two-valued form of the interval model: the new interval and
// the review timestamp, which is always now.
func Compute(current float64, o Outcome, now time.Time) (float64, time.Time) {
	return NextInterval(current, o), now
}

// Apply returns the state after rating prev with o at now. A prev without a
// positive interval is treated as never reviewed and starts from DefaultInterval.
func Apply(prev State, o Outcome, now time.Time) State {
	current := prev.Interval
	if current <= 0 {
		current = DefaultInterval
	}
	interval, reviewedAt := Compute(current, o, now)
	return State{Interval: interval, LastReview: reviewedAt}
}
