package practice

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/me/drill/internal/logging"
	"github.com/me/drill/internal/records"
	"github.com/me/drill/internal/runner"
	"github.com/me/drill/internal/store"
	"github.com/me/drill/pkg/model"
	"github.com/me/drill/pkg/srs"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func sampleRecords() []model.Record {
	return []model.Record{
		{ID: 1, Category: "Lists", Prompt: "xs", Language: model.LanguageJavaScript,
			Checks: model.Checks{Variables: []model.VariableCheck{{Name: "xs", Expected: []any{1.0, 2.0}}}}},
		{ID: 2, Category: "Lists", Prompt: "ys", Language: model.LanguageJavaScript},
		{ID: 3, Category: "Dicts", Prompt: "d", Language: "cobol"},
	}
}

func newTestService(t *testing.T, ps store.ProgressStore) (*Service, *clock) {
	t.Helper()
	set, err := records.NewSet(sampleRecords())
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	if ps == nil {
		st, err := store.NewSQLiteStore(":memory:", logging.Discard())
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		if err := st.Migrate(context.Background()); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		t.Cleanup(func() { st.Close() })
		ps = st
	}
	reg := runner.NewRegistry(logging.Discard())
	reg.Register(runner.NewJSRunner(time.Second, logging.Discard()))

	c := &clock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	svc := New(set, ps, reg, logging.Discard(),
		WithClock(c.Now),
		WithSelector(srs.NewSelector(srs.WithRand(rand.New(rand.NewPCG(7, 11))))),
		WithSessionTTL(time.Hour),
	)
	return svc, c
}

func TestStartSession(t *testing.T) {
	svc, c := newTestService(t, nil)
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "ada", "Lists")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if sess.ID == "" || sess.Learner != "ada" || sess.Category != "Lists" {
		t.Errorf("session = %+v", sess)
	}
	if !sess.ExpiresAt.Equal(c.Now().Add(time.Hour)) {
		t.Errorf("expires = %v", sess.ExpiresAt)
	}

	got, err := svc.Session(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if got.Learner != "ada" {
		t.Errorf("learner = %q", got.Learner)
	}

	if _, err := svc.StartSession(ctx, "ada", "Nope"); err == nil {
		t.Error("expected error for unknown category")
	}
	if _, err := svc.StartSession(ctx, "a/b", ""); err == nil {
		t.Error("expected error for invalid learner")
	}

	c.Advance(2 * time.Hour)
	if _, err := svc.Session(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expired session error = %v, want ErrSessionNotFound", err)
	}
}

func TestStartSession_FileStore(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir(), logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	svc, _ := newTestService(t, fs)
	if _, err := svc.StartSession(context.Background(), "ada", ""); !errors.Is(err, store.ErrSessionsUnsupported) {
		t.Errorf("error = %v, want ErrSessionsUnsupported", err)
	}
}

func TestNext_RespectsFilter(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	sess, err := svc.StartSession(ctx, "ada", "Lists")
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 20; i++ {
		rec, err := svc.Next(ctx, sess, records.Filter{})
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if rec.Category != "Lists" {
			t.Fatalf("got record %d from %q", rec.ID, rec.Category)
		}
		if sess.CurrentID != rec.ID {
			t.Errorf("current = %d, want %d", sess.CurrentID, rec.ID)
		}
	}

	stored, err := svc.Session(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.CurrentID != sess.CurrentID {
		t.Errorf("stored current = %d, want %d", stored.CurrentID, sess.CurrentID)
	}

	rec, err := svc.Next(ctx, sess, records.Filter{ID: 3, Category: "Dicts"})
	if err != nil {
		t.Fatalf("pinned Next: %v", err)
	}
	if rec.ID != 3 {
		t.Errorf("pinned = %d", rec.ID)
	}
}

func TestNext_EmptyCandidates(t *testing.T) {
	svc, _ := newTestService(t, nil)
	sess := LocalSession("ada", "")

	_, err := svc.Next(context.Background(), sess, records.Filter{ID: 99})
	if !errors.Is(err, srs.ErrEmptyCandidateSet) {
		t.Errorf("error = %v, want ErrEmptyCandidateSet", err)
	}
}

func TestNext_PrefersDue(t *testing.T) {
	svc, c := newTestService(t, nil)
	ctx := context.Background()
	sess := LocalSession("ada", "Lists")

	// Record 1 reviewed now, so only record 2 is due.
	if _, err := svc.Rate(ctx, sess, 1, srs.OutcomeEasy); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	for i := 0; i < 10; i++ {
		rec, err := svc.Next(ctx, sess, records.Filter{})
		if err != nil {
			t.Fatal(err)
		}
		if rec.ID != 2 {
			t.Fatalf("Next = %d, want the due record 2", rec.ID)
		}
	}

	// Once both are reviewed and nothing is due, either may come back.
	if _, err := svc.Rate(ctx, sess, 2, srs.OutcomeEasy); err != nil {
		t.Fatal(err)
	}
	c.Advance(time.Minute)
	seen := map[int]bool{}
	for i := 0; i < 50; i++ {
		rec, err := svc.Next(ctx, sess, records.Filter{})
		if err != nil {
			t.Fatal(err)
		}
		seen[rec.ID] = true
	}
	if !seen[1] || !seen[2] {
		t.Errorf("fallback draws = %v, want both records", seen)
	}
}

func TestRate(t *testing.T) {
	svc, c := newTestService(t, nil)
	ctx := context.Background()
	sess := LocalSession("ada", "")

	if _, err := svc.Rate(ctx, sess, 0, srs.OutcomeEasy); !errors.Is(err, ErrNoCurrentRecord) {
		t.Errorf("error = %v, want ErrNoCurrentRecord", err)
	}
	if _, err := svc.Rate(ctx, sess, 1, srs.Outcome("meh")); !errors.Is(err, srs.ErrInvalidOutcome) {
		t.Errorf("error = %v, want ErrInvalidOutcome", err)
	}
	if _, err := svc.Rate(ctx, sess, 42, srs.OutcomeEasy); !errors.Is(err, records.ErrNotFound) {
		t.Errorf("error = %v, want records.ErrNotFound", err)
	}

	st, err := svc.Rate(ctx, sess, 1, srs.OutcomeEasy)
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if st.Interval != 1.25 || !st.LastReview.Equal(c.Now()) {
		t.Errorf("state = %+v", st)
	}

	c.Advance(2 * 24 * time.Hour)
	sess.CurrentID = 1
	st, err = svc.Rate(ctx, sess, 0, srs.OutcomeMedium)
	if err != nil {
		t.Fatalf("Rate current: %v", err)
	}
	if st.Interval != 1.875 {
		t.Errorf("interval = %v, want 1.875", st.Interval)
	}
}

func TestCheck(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	sess := LocalSession("ada", "")

	rep, err := svc.Check(ctx, sess, 1, "let xs = [1, 2];")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !rep.Passed || rep.Attempts != 1 || rep.RecordID != 1 {
		t.Errorf("report = %+v", rep)
	}

	rep, err = svc.Check(ctx, sess, 1, "let xs = [2, 1];")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if rep.Passed || rep.Attempts != 2 {
		t.Errorf("report = %+v", rep)
	}

	if _, err := svc.Check(ctx, sess, 3, "x"); !errors.Is(err, runner.ErrUnsupportedLanguage) {
		t.Errorf("error = %v, want ErrUnsupportedLanguage", err)
	}
}

func TestExportImport(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	sess := LocalSession("ada", "")

	if _, err := svc.Rate(ctx, sess, 1, srs.OutcomeHard); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Check(ctx, sess, 2, "1"); err != nil {
		t.Fatal(err)
	}

	snap, err := svc.Export(ctx, "ada")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if snap.Ratings[1] != srs.OutcomeHard || snap.Attempts[2] != 1 || snap.ReviewData[1].Interval != 0.5 {
		t.Errorf("snapshot = %+v", snap)
	}

	if _, err := svc.Import(ctx, "grace", snap); err != nil {
		t.Fatalf("Import: %v", err)
	}
	back, err := svc.Export(ctx, "grace")
	if err != nil {
		t.Fatal(err)
	}
	if back.Ratings[1] != srs.OutcomeHard || back.Attempts[2] != 1 {
		t.Errorf("imported = %+v", back)
	}

	bad := &model.Snapshot{Ratings: map[int]srs.Outcome{1: "meh"}}
	if _, err := svc.Import(ctx, "grace", bad); err == nil {
		t.Error("expected validation error")
	}
}

func TestStats(t *testing.T) {
	svc, c := newTestService(t, nil)
	ctx := context.Background()
	sess := LocalSession("ada", "")

	// Yesterday and today.
	if _, err := svc.Rate(ctx, sess, 1, srs.OutcomeEasy); err != nil {
		t.Fatal(err)
	}
	c.Advance(24 * time.Hour)
	if _, err := svc.Rate(ctx, sess, 2, srs.OutcomeHard); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Check(ctx, sess, 1, "let xs = [1, 2];"); err != nil {
		t.Fatal(err)
	}

	st, err := svc.Stats(ctx, "ada")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalRecords != 3 || st.Rated != 2 {
		t.Errorf("totals = %+v", st)
	}
	if st.ByOutcome[srs.OutcomeEasy] != 1 || st.ByOutcome[srs.OutcomeHard] != 1 || st.ByOutcome[srs.OutcomeMedium] != 0 {
		t.Errorf("by outcome = %v", st.ByOutcome)
	}
	// Record 3 was never reviewed; record 1 (1.25 days) is not due after one day.
	if st.DueNow != 1 {
		t.Errorf("due = %d, want 1", st.DueNow)
	}
	if st.ReviewedToday != 1 || st.TotalAttempts != 1 || st.StreakDays != 2 {
		t.Errorf("stats = %+v", st)
	}
	if len(st.Rows) != 2 || st.Rows[0].ID != 1 || st.Rows[0].Attempts != 1 {
		t.Errorf("rows = %+v", st.Rows)
	}
}

func TestCalculateStreak(t *testing.T) {
	today := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		days     map[string]bool
		expected int
	}{
		{"no reviews", map[string]bool{}, 0},
		{"today only", map[string]bool{"2024-01-15": true}, 1},
		{"yesterday only", map[string]bool{"2024-01-14": true}, 1},
		{"three days", map[string]bool{"2024-01-15": true, "2024-01-14": true, "2024-01-13": true}, 3},
		{"broken", map[string]bool{"2024-01-15": true, "2024-01-13": true}, 1},
		{"old only", map[string]bool{"2024-01-10": true}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calculateStreak(tt.days, today); got != tt.expected {
				t.Errorf("calculateStreak = %d, want %d", got, tt.expected)
			}
		})
	}
}
