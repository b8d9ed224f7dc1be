package store

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/me/drill/pkg/model"
	"github.com/me/drill/pkg/srs"
)

// PostgresStore implements Store on PostgreSQL, for a progress database
// shared by several devices.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore connects to dsn and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return &PostgresStore{
		db:     db,
		logger: logger.With("component", "store", "backend", BackendPostgres),
	}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	for _, stmt := range postgresSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to migrate")
		}
	}
	return nil
}

// --- Progress operations ---

func (s *PostgresStore) LoadProgress(ctx context.Context, learner string) (*model.Progress, error) {
	s.logger.Debug("sql", "op", "select", "table", "progress", "learner", learner)

	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, rating, attempts, interval_days, last_review
		 FROM progress WHERE learner = $1`, learner)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load progress")
	}
	defer rows.Close()

	p, err := scanProgress(rows)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan progress")
	}
	return p, nil
}

func (s *PostgresStore) SaveReview(ctx context.Context, learner string, id int, outcome srs.Outcome, st srs.State) error {
	s.logger.Debug("sql", "op", "upsert", "table", "progress", "learner", learner, "record_id", id)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO progress (learner, record_id, rating, interval_days, last_review, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (learner, record_id) DO UPDATE SET
			rating = EXCLUDED.rating,
			interval_days = EXCLUDED.interval_days,
			last_review = EXCLUDED.last_review,
			updated_at = EXCLUDED.updated_at`,
		learner, id, string(outcome), st.Interval, srs.EpochSeconds(st.LastReview),
	)
	return errors.Wrapf(err, "failed to save review %d", id)
}

func (s *PostgresStore) IncrementAttempts(ctx context.Context, learner string, id int) (int, error) {
	s.logger.Debug("sql", "op", "increment", "table", "progress", "learner", learner, "record_id", id)

	var n int
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO progress (learner, record_id, attempts, updated_at)
		 VALUES ($1, $2, 1, NOW())
		 ON CONFLICT (learner, record_id) DO UPDATE SET
			attempts = COALESCE(progress.attempts, 0) + 1,
			updated_at = EXCLUDED.updated_at
		 RETURNING attempts`,
		learner, id,
	).Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to increment attempts %d", id)
	}
	return n, nil
}

func (s *PostgresStore) MergeProgress(ctx context.Context, learner string, p *model.Progress) error {
	s.logger.Debug("sql", "op", "merge", "table", "progress", "learner", learner)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for id, o := range p.Ratings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO progress (learner, record_id, rating, updated_at) VALUES ($1, $2, $3, NOW())
			 ON CONFLICT (learner, record_id) DO UPDATE SET rating = EXCLUDED.rating, updated_at = EXCLUDED.updated_at`,
			learner, id, string(o)); err != nil {
			return errors.Wrapf(err, "failed to merge rating %d", id)
		}
	}
	for id, n := range p.Attempts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO progress (learner, record_id, attempts, updated_at) VALUES ($1, $2, $3, NOW())
			 ON CONFLICT (learner, record_id) DO UPDATE SET attempts = EXCLUDED.attempts, updated_at = EXCLUDED.updated_at`,
			learner, id, n); err != nil {
			return errors.Wrapf(err, "failed to merge attempts %d", id)
		}
	}
	for id, st := range p.Reviews {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO progress (learner, record_id, interval_days, last_review, updated_at) VALUES ($1, $2, $3, $4, NOW())
			 ON CONFLICT (learner, record_id) DO UPDATE SET
				interval_days = EXCLUDED.interval_days,
				last_review = EXCLUDED.last_review,
				updated_at = EXCLUDED.updated_at`,
			learner, id, st.Interval, srs.EpochSeconds(st.LastReview)); err != nil {
			return errors.Wrapf(err, "failed to merge review %d", id)
		}
	}
	return errors.Wrap(tx.Commit(), "failed to commit merge")
}

// --- Session operations ---

func (s *PostgresStore) CreateSession(ctx context.Context, sess *model.LearnerSession) error {
	s.logger.Debug("sql", "op", "insert", "table", "sessions", "id", sess.ID)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, learner, current_id, category, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sess.ID, sess.Learner, sess.CurrentID, sess.Category,
		sess.CreatedAt.Unix(), sess.ExpiresAt.Unix(),
	)
	return errors.Wrap(err, "failed to create session")
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*model.LearnerSession, error) {
	s.logger.Debug("sql", "op", "select", "table", "sessions", "id", id)

	var sess model.LearnerSession
	var createdAt, expiresAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, learner, current_id, category, created_at, expires_at
		 FROM sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &sess.Learner, &sess.CurrentID, &sess.Category, &createdAt, &expiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get session")
	}

	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.ExpiresAt = time.Unix(expiresAt, 0)
	return &sess, nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, sess *model.LearnerSession) error {
	s.logger.Debug("sql", "op", "update", "table", "sessions", "id", sess.ID)

	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET current_id = $1, category = $2, expires_at = $3 WHERE id = $4`,
		sess.CurrentID, sess.Category, sess.ExpiresAt.Unix(), sess.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update session")
	}
	return expectOneRow(result, "session", sess.ID)
}

func (s *PostgresStore) DeleteSession(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "sessions", "id", id)

	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return errors.Wrap(err, "failed to delete session")
}

func (s *PostgresStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	s.logger.Debug("sql", "op", "delete_expired", "table", "sessions")

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < $1`, time.Now().Unix())
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete expired sessions")
	}
	return result.RowsAffected()
}
