package model

import (
	"time"

	"github.com/me/drill/pkg/srs"
)

// Stats summarises a learner's progress over the loaded record set.
type Stats struct {
	Learner       string              `json:"learner"`
	TotalRecords  int                 `json:"total_records"`
	Rated         int                 `json:"rated"`
	DueNow        int                 `json:"due_now"`
	ReviewedToday int                 `json:"reviewed_today"`
	ByOutcome     map[srs.Outcome]int `json:"by_outcome"`
	TotalAttempts int                 `json:"total_attempts"`
	StreakDays    int                 `json:"streak_days"`
	Rows          []StatRow           `json:"rows,omitempty"`
}

// StatRow is the per-record line of the statistics table. Only records the
// learner has rated or run appear.
type StatRow struct {
	ID         int         `json:"id"`
	Category   string      `json:"category,omitempty"`
	Rating     srs.Outcome `json:"rating,omitempty"`
	Attempts   int         `json:"attempts"`
	Interval   float64     `json:"interval"`
	LastReview time.Time   `json:"last_review"`
	NextReview time.Time   `json:"next_review"`
	Due        bool        `json:"due"`
}
