package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/drill/pkg/model"
	"github.com/me/drill/pkg/srs"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// Every connection to :memory: is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store", "backend", BackendSQLite),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Progress operations ---

func (s *SQLiteStore) LoadProgress(ctx context.Context, learner string) (*model.Progress, error) {
	s.logger.Debug("sql", "op", "select", "table", "progress", "learner", learner)

	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, rating, attempts, interval_days, last_review
		 FROM progress WHERE learner = ?`, learner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProgress(rows)
}

// scanProgress folds progress rows into a Progress. Shared with PostgresStore.
func scanProgress(rows *sql.Rows) (*model.Progress, error) {
	p := model.NewProgress()
	for rows.Next() {
		var id int
		var rating sql.NullString
		var attempts sql.NullInt64
		var interval, lastReview sql.NullFloat64
		if err := rows.Scan(&id, &rating, &attempts, &interval, &lastReview); err != nil {
			return nil, err
		}
		if rating.Valid {
			p.Ratings[id] = srs.Outcome(rating.String)
		}
		if attempts.Valid {
			p.Attempts[id] = int(attempts.Int64)
		}
		if interval.Valid {
			p.Reviews[id] = srs.State{
				Interval:   interval.Float64,
				LastReview: srs.FromEpochSeconds(lastReview.Float64),
			}
		}
	}
	return p, rows.Err()
}

func (s *SQLiteStore) SaveReview(ctx context.Context, learner string, id int, outcome srs.Outcome, st srs.State) error {
	s.logger.Debug("sql", "op", "upsert", "table", "progress", "learner", learner, "record_id", id)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO progress (learner, record_id, rating, interval_days, last_review, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (learner, record_id) DO UPDATE SET
			rating = excluded.rating,
			interval_days = excluded.interval_days,
			last_review = excluded.last_review,
			updated_at = excluded.updated_at`,
		learner, id, string(outcome), st.Interval, srs.EpochSeconds(st.LastReview),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) IncrementAttempts(ctx context.Context, learner string, id int) (int, error) {
	s.logger.Debug("sql", "op", "increment", "table", "progress", "learner", learner, "record_id", id)

	var n int
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO progress (learner, record_id, attempts, updated_at)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT (learner, record_id) DO UPDATE SET
			attempts = COALESCE(progress.attempts, 0) + 1,
			updated_at = excluded.updated_at
		 RETURNING attempts`,
		learner, id, time.Now().UTC().Format(time.RFC3339Nano),
	).Scan(&n)
	return n, err
}

func (s *SQLiteStore) MergeProgress(ctx context.Context, learner string, p *model.Progress) error {
	s.logger.Debug("sql", "op", "merge", "table", "progress", "learner", learner)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for id, o := range p.Ratings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO progress (learner, record_id, rating, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (learner, record_id) DO UPDATE SET rating = excluded.rating, updated_at = excluded.updated_at`,
			learner, id, string(o), now); err != nil {
			return fmt.Errorf("merge rating %d: %w", id, err)
		}
	}
	for id, n := range p.Attempts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO progress (learner, record_id, attempts, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (learner, record_id) DO UPDATE SET attempts = excluded.attempts, updated_at = excluded.updated_at`,
			learner, id, n, now); err != nil {
			return fmt.Errorf("merge attempts %d: %w", id, err)
		}
	}
	for id, st := range p.Reviews {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO progress (learner, record_id, interval_days, last_review, updated_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (learner, record_id) DO UPDATE SET
				interval_days = excluded.interval_days,
				last_review = excluded.last_review,
				updated_at = excluded.updated_at`,
			learner, id, st.Interval, srs.EpochSeconds(st.LastReview), now); err != nil {
			return fmt.Errorf("merge review %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// --- Session operations ---

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *model.LearnerSession) error {
	s.logger.Debug("sql", "op", "insert", "table", "sessions", "id", sess.ID)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, learner, current_id, category, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Learner, sess.CurrentID, sess.Category,
		sess.CreatedAt.Unix(), sess.ExpiresAt.Unix(),
	)
	return err
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.LearnerSession, error) {
	s.logger.Debug("sql", "op", "select", "table", "sessions", "id", id)

	var sess model.LearnerSession
	var createdAt, expiresAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, learner, current_id, category, created_at, expires_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.Learner, &sess.CurrentID, &sess.Category, &createdAt, &expiresAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.ExpiresAt = time.Unix(expiresAt, 0)
	return &sess, nil
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, sess *model.LearnerSession) error {
	s.logger.Debug("sql", "op", "update", "table", "sessions", "id", sess.ID)

	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET current_id = ?, category = ?, expires_at = ? WHERE id = ?`,
		sess.CurrentID, sess.Category, sess.ExpiresAt.Unix(), sess.ID,
	)
	if err != nil {
		return err
	}
	return expectOneRow(result, "session", sess.ID)
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "sessions", "id", id)

	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	s.logger.Debug("sql", "op", "delete_expired", "table", "sessions")

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ?`, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func expectOneRow(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s not found", kind, id)
	}
	return nil
}
