package model

import (
	"fmt"
	"time"

	"github.com/me/drill/pkg/srs"
)

// Progress is everything stored about one learner: the last rating and the
// number of code runs per record, and the scheduling state per record.
type Progress struct {
	Ratings  map[int]srs.Outcome `json:"ratings"`
	Attempts map[int]int         `json:"attempts"`
	Reviews  srs.StateMap        `json:"reviews"`
}

// NewProgress returns an empty progress document.
func NewProgress() *Progress {
	return &Progress{
		Ratings:  map[int]srs.Outcome{},
		Attempts: map[int]int{},
		Reviews:  srs.StateMap{},
	}
}

// Merge copies every entry of other into p, replacing existing keys.
// Keys absent from other are kept.
func (p *Progress) Merge(other *Progress) {
	if other == nil {
		return
	}
	for id, o := range other.Ratings {
		p.Ratings[id] = o
	}
	for id, n := range other.Attempts {
		p.Attempts[id] = n
	}
	for id, st := range other.Reviews {
		p.Reviews[id] = st
	}
}

// ReviewEntry is the persisted form of a schedule state.
type ReviewEntry struct {
	Interval   float64 `json:"interval"`    // days
	LastReview float64 `json:"last_review"` // Unix epoch seconds, 0 = never
}

// Snapshot is the export/import document for a learner's progress.
// Record IDs are JSON object keys; "12" and 12 name the same record.
type Snapshot struct {
	Ratings    map[int]srs.Outcome `json:"ratings"`
	Attempts   map[int]int         `json:"attempts"`
	ReviewData map[int]ReviewEntry `json:"review_data"`
	Timestamp  float64             `json:"timestamp"`
}

// Snapshot converts p to its export form stamped with now.
func (p *Progress) Snapshot(now time.Time) *Snapshot {
	s := &Snapshot{
		Ratings:    make(map[int]srs.Outcome, len(p.Ratings)),
		Attempts:   make(map[int]int, len(p.Attempts)),
		ReviewData: make(map[int]ReviewEntry, len(p.Reviews)),
		Timestamp:  srs.EpochSeconds(now),
	}
	for id, o := range p.Ratings {
		s.Ratings[id] = o
	}
	for id, n := range p.Attempts {
		s.Attempts[id] = n
	}
	for id, st := range p.Reviews {
		s.ReviewData[id] = ReviewEntry{Interval: st.Interval, LastReview: srs.EpochSeconds(st.LastReview)}
	}
	return s
}

// Progress validates the snapshot and converts it back.
func (s *Snapshot) Progress() (*Progress, error) {
	p := NewProgress()
	for id, o := range s.Ratings {
		if !o.Valid() {
			return nil, NewValidationError("invalid snapshot",
				FieldError{Field: fmt.Sprintf("ratings.%d", id), Message: fmt.Sprintf("unknown outcome %q", o)})
		}
		p.Ratings[id] = o
	}
	for id, n := range s.Attempts {
		if n < 0 {
			return nil, NewValidationError("invalid snapshot",
				FieldError{Field: fmt.Sprintf("attempts.%d", id), Message: "must not be negative"})
		}
		p.Attempts[id] = n
	}
	for id, e := range s.ReviewData {
		if e.Interval <= 0 {
			return nil, NewValidationError("invalid snapshot",
				FieldError{Field: fmt.Sprintf("review_data.%d.interval", id), Message: "must be positive"})
		}
		p.Reviews[id] = srs.State{Interval: e.Interval, LastReview: srs.FromEpochSeconds(e.LastReview)}
	}
	return p, nil
}
