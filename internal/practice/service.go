// Package practice runs learner sessions: choosing the next record, recording
// ratings, verifying code and summarising progress.
package practice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/me/drill/internal/records"
	"github.com/me/drill/internal/runner"
	"github.com/me/drill/internal/store"
	"github.com/me/drill/pkg/model"
	"github.com/me/drill/pkg/srs"
)

// ErrSessionNotFound is returned for unknown or expired sessions.
var ErrSessionNotFound = errors.New("session not found")

// ErrNoCurrentRecord is returned when an operation needs the session's
// current record and none has been drawn yet.
var ErrNoCurrentRecord = errors.New("no current record")

// DefaultSessionTTL is used when no TTL option is given.
const DefaultSessionTTL = 24 * time.Hour

// Service coordinates records, the progress store, the selector and runners.
type Service struct {
	records  *records.Set
	progress store.ProgressStore
	sessions store.SessionStore // nil when the backend has none
	runners  *runner.Registry
	logger   *slog.Logger

	selMu    sync.Mutex
	selector *srs.Selector
	now      func() time.Time
	ttl      time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithSelector replaces the default selector, e.g. with a seeded one.
func WithSelector(sel *srs.Selector) Option {
	return func(s *Service) { s.selector = sel }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSessionTTL sets how long a learner session lives without activity.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// New creates a Service. Sessions are enabled when ps also implements
// store.SessionStore.
func New(recs *records.Set, ps store.ProgressStore, runners *runner.Registry, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		records:  recs,
		progress: ps,
		runners:  runners,
		logger:   logger.With("component", "practice"),
		selector: srs.NewSelector(),
		now:      time.Now,
		ttl:      DefaultSessionTTL,
	}
	if ss, err := store.Sessions(ps); err == nil {
		s.sessions = ss
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Records returns the record set.
func (s *Service) Records() *records.Set { return s.records }

// Languages lists the languages code can be checked in.
func (s *Service) Languages() []string { return s.runners.Languages() }

// SessionsEnabled reports whether the progress store also keeps sessions.
func (s *Service) SessionsEnabled() bool { return s.sessions != nil }

// --- Sessions ---

// StartSession opens a session for learner, optionally limited to category.
func (s *Service) StartSession(ctx context.Context, learner, category string) (*model.LearnerSession, error) {
	if s.sessions == nil {
		return nil, store.ErrSessionsUnsupported
	}
	if err := model.ValidateLearner(learner); err != nil {
		return nil, err
	}
	if err := s.checkCategory(category); err != nil {
		return nil, err
	}

	now := s.now()
	sess := &model.LearnerSession{
		ID:        "ls_" + uuid.New().String(),
		Learner:   learner,
		Category:  category,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.logger.Info("session started", "session_id", sess.ID, "learner", learner, "category", category)
	return sess, nil
}

// Session returns a live session by ID.
func (s *Service) Session(ctx context.Context, id string) (*model.LearnerSession, error) {
	if s.sessions == nil {
		return nil, store.ErrSessionsUnsupported
	}
	sess, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.ExpiresAt.Before(s.now()) {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// EndSession deletes a session.
func (s *Service) EndSession(ctx context.Context, id string) error {
	if s.sessions == nil {
		return store.ErrSessionsUnsupported
	}
	return s.sessions.DeleteSession(ctx, id)
}

// touch persists session changes and slides its expiry. Transient sessions
// (no ID) are not stored.
func (s *Service) touch(ctx context.Context, sess *model.LearnerSession) error {
	if sess.ID == "" || s.sessions == nil {
		return nil
	}
	sess.ExpiresAt = s.now().Add(s.ttl)
	return s.sessions.UpdateSession(ctx, sess)
}

// LocalSession returns a transient session for single-user front ends
// such as the terminal loop. It is never persisted.
func LocalSession(learner, category string) *model.LearnerSession {
	return &model.LearnerSession{Learner: learner, Category: category}
}

func (s *Service) checkCategory(category string) error {
	if category == "" {
		return nil
	}
	for _, c := range s.records.Categories() {
		if c == category {
			return nil
		}
	}
	return model.NewValidationError("unknown category",
		model.FieldError{Field: "category", Message: fmt.Sprintf("no records in category %q", category)})
}

// --- Selection and review ---

// Next draws the next record for the session and makes it current. An empty
// filter category falls back to the session's category. When nothing
// matches the filter the error wraps srs.ErrEmptyCandidateSet.
func (s *Service) Next(ctx context.Context, sess *model.LearnerSession, f records.Filter) (model.Record, error) {
	if f.Category == "" {
		f.Category = sess.Category
	}
	p, err := s.progress.LoadProgress(ctx, sess.Learner)
	if err != nil {
		return model.Record{}, fmt.Errorf("load progress: %w", err)
	}

	candidates := s.records.Filter(f)
	s.selMu.Lock()
	rec, err := srs.SelectNext(s.selector, candidates, p.Reviews, s.now())
	s.selMu.Unlock()
	if err != nil {
		return model.Record{}, fmt.Errorf("select next (category %q, id %d): %w", f.Category, f.ID, err)
	}

	sess.CurrentID = rec.ID
	if err := s.touch(ctx, sess); err != nil {
		return model.Record{}, fmt.Errorf("update session: %w", err)
	}
	s.logger.Debug("next record", "learner", sess.Learner, "record_id", rec.ID, "candidates", len(candidates))
	return rec, nil
}

// resolve returns the record for id, or the session's current record when id is 0.
func (s *Service) resolve(sess *model.LearnerSession, id int) (model.Record, error) {
	if id == 0 {
		if !sess.HasCurrent() {
			return model.Record{}, ErrNoCurrentRecord
		}
		id = sess.CurrentID
	}
	return s.records.Get(id)
}

// Rate applies outcome to a record (the current one when id is 0) and
// persists the rating with the new schedule state.
func (s *Service) Rate(ctx context.Context, sess *model.LearnerSession, id int, outcome srs.Outcome) (srs.State, error) {
	if !outcome.Valid() {
		return srs.State{}, fmt.Errorf("%w: %q", srs.ErrInvalidOutcome, outcome)
	}
	rec, err := s.resolve(sess, id)
	if err != nil {
		return srs.State{}, err
	}

	p, err := s.progress.LoadProgress(ctx, sess.Learner)
	if err != nil {
		return srs.State{}, fmt.Errorf("load progress: %w", err)
	}
	st := p.Reviews.Review(rec.ID, outcome, s.now())
	if err := s.progress.SaveReview(ctx, sess.Learner, rec.ID, outcome, st); err != nil {
		return srs.State{}, fmt.Errorf("save review: %w", err)
	}
	if err := s.touch(ctx, sess); err != nil {
		return srs.State{}, fmt.Errorf("update session: %w", err)
	}

	s.logger.Info("record rated",
		"learner", sess.Learner,
		"record_id", rec.ID,
		"outcome", outcome,
		"interval", st.Interval,
	)
	return st, nil
}

// CheckReport is the outcome of a code check.
type CheckReport struct {
	RecordID int `json:"record_id"`
	Attempts int `json:"attempts"`
	*runner.Result
}

// Check counts an attempt and runs code against the record's checks.
func (s *Service) Check(ctx context.Context, sess *model.LearnerSession, id int, code string) (*CheckReport, error) {
	rec, err := s.resolve(sess, id)
	if err != nil {
		return nil, err
	}
	run, err := s.runners.Get(rec.Lang())
	if err != nil {
		return nil, err
	}

	attempts, err := s.progress.IncrementAttempts(ctx, sess.Learner, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("count attempt: %w", err)
	}
	res, err := run.Run(ctx, code, rec.Checks)
	if err != nil {
		return nil, fmt.Errorf("run code: %w", err)
	}

	s.logger.Info("code checked",
		"learner", sess.Learner,
		"record_id", rec.ID,
		"passed", res.Passed,
		"attempts", attempts,
		"duration", res.Duration,
	)
	return &CheckReport{RecordID: rec.ID, Attempts: attempts, Result: res}, nil
}

// Due lists the records matching f that are due for learner, in file order.
func (s *Service) Due(ctx context.Context, learner string, f records.Filter) ([]model.Record, *model.Progress, error) {
	p, err := s.progress.LoadProgress(ctx, learner)
	if err != nil {
		return nil, nil, fmt.Errorf("load progress: %w", err)
	}
	return srs.Due(s.records.Filter(f), p.Reviews, s.now()), p, nil
}

// --- Export / import ---

// Export returns the learner's progress as a snapshot.
func (s *Service) Export(ctx context.Context, learner string) (*model.Snapshot, error) {
	p, err := s.progress.LoadProgress(ctx, learner)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	return p.Snapshot(s.now()), nil
}

// Import merges a snapshot into the learner's progress. Entries in the
// snapshot replace stored ones; everything else is kept.
func (s *Service) Import(ctx context.Context, learner string, snap *model.Snapshot) (*model.Progress, error) {
	if err := model.ValidateLearner(learner); err != nil {
		return nil, err
	}
	p, err := snap.Progress()
	if err != nil {
		return nil, err
	}
	if err := s.progress.MergeProgress(ctx, learner, p); err != nil {
		return nil, fmt.Errorf("merge progress: %w", err)
	}
	s.logger.Info("progress imported",
		"learner", learner,
		"ratings", len(p.Ratings),
		"attempts", len(p.Attempts),
		"reviews", len(p.Reviews),
	)
	return p, nil
}
