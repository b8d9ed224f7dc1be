package practice

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/me/drill/pkg/model"
	"github.com/me/drill/pkg/srs"
)

const dayLayout = "2006-01-02"

// Stats summarises learner's progress over the loaded records.
func (s *Service) Stats(ctx context.Context, learner string) (*model.Stats, error) {
	p, err := s.progress.LoadProgress(ctx, learner)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	now := s.now()

	st := &model.Stats{
		Learner:      learner,
		TotalRecords: s.records.Len(),
		ByOutcome:    make(map[srs.Outcome]int, len(srs.Outcomes)),
	}
	for _, o := range srs.Outcomes {
		st.ByOutcome[o] = 0
	}

	reviewDays := make(map[string]bool)
	today := now.Format(dayLayout)

	for _, rec := range s.records.All() {
		state := p.Reviews.Lookup(rec.ID)
		if state.IsDue(now) {
			st.DueNow++
		}
		rating, rated := p.Ratings[rec.ID]
		attempts := p.Attempts[rec.ID]
		st.TotalAttempts += attempts
		if rated {
			st.Rated++
			st.ByOutcome[rating]++
		}
		if state.Reviewed() {
			day := state.LastReview.In(now.Location()).Format(dayLayout)
			reviewDays[day] = true
			if day == today {
				st.ReviewedToday++
			}
		}
		if !rated && attempts == 0 && !state.Reviewed() {
			continue
		}

		row := model.StatRow{
			ID:       rec.ID,
			Category: rec.Category,
			Rating:   rating,
			Attempts: attempts,
			Interval: state.Interval,
			Due:      state.IsDue(now),
		}
		if state.Reviewed() {
			row.LastReview = state.LastReview
			row.NextReview = state.NextReview()
		}
		st.Rows = append(st.Rows, row)
	}
	sort.Slice(st.Rows, func(i, j int) bool { return st.Rows[i].ID < st.Rows[j].ID })

	st.StreakDays = calculateStreak(reviewDays, now)
	return st, nil
}

// calculateStreak counts consecutive days with reviews ending today or
// yesterday. Only the most recent review of each record is stored, so a
// day whose reviews were all superseded later does not count.
func calculateStreak(reviewDays map[string]bool, today time.Time) int {
	day := today
	if !reviewDays[day.Format(dayLayout)] {
		day = day.AddDate(0, 0, -1)
		if !reviewDays[day.Format(dayLayout)] {
			return 0
		}
	}

	streak := 0
	for reviewDays[day.Format(dayLayout)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}
