package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/me/drill/pkg/model"
	"github.com/me/drill/pkg/srs"
)

// ErrSessionsUnsupported is returned when a backend cannot hold learner sessions.
var ErrSessionsUnsupported = errors.New("store backend does not support sessions")

// ProgressStore persists per-learner progress. Writes are last-writer-wins
// per record.
type ProgressStore interface {
	// LoadProgress returns the learner's progress; an unknown learner has an
	// empty, non-nil Progress.
	LoadProgress(ctx context.Context, learner string) (*model.Progress, error)

	// SaveReview records a rating and the schedule state it produced.
	SaveReview(ctx context.Context, learner string, id int, outcome srs.Outcome, st srs.State) error

	// IncrementAttempts bumps the code-run counter and returns the new value.
	IncrementAttempts(ctx context.Context, learner string, id int) (int, error)

	// MergeProgress overwrites every entry present in p; others are kept.
	MergeProgress(ctx context.Context, learner string, p *model.Progress) error

	Close() error
}

// SessionStore persists learner sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, sess *model.LearnerSession) error
	// GetSession returns nil, nil when the session does not exist.
	GetSession(ctx context.Context, id string) (*model.LearnerSession, error)
	UpdateSession(ctx context.Context, sess *model.LearnerSession) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// Store is a backend holding both progress and sessions.
type Store interface {
	ProgressStore
	SessionStore
	Migrate(ctx context.Context) error
}

// Backend names accepted by Open.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendFile     = "file"
)

// Open connects to the named backend and prepares its schema.
// dsn is a file path (sqlite), a connection string (postgres), an address
// (redis) or a directory (file).
func Open(ctx context.Context, backend, dsn string, logger *slog.Logger) (ProgressStore, error) {
	switch backend {
	case BackendSQLite, "":
		st, err := NewSQLiteStore(dsn, logger)
		if err != nil {
			return nil, err
		}
		return migrated(ctx, st)
	case BackendPostgres:
		st, err := NewPostgresStore(ctx, dsn, logger)
		if err != nil {
			return nil, err
		}
		return migrated(ctx, st)
	case BackendRedis:
		st, err := NewRedisStore(ctx, RedisOptions{Addr: dsn}, logger)
		if err != nil {
			return nil, err
		}
		return migrated(ctx, st)
	case BackendFile:
		return NewFileStore(dsn, logger)
	}
	return nil, fmt.Errorf("unknown store backend %q", backend)
}

func migrated(ctx context.Context, st Store) (ProgressStore, error) {
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return st, nil
}

// Sessions returns ps as a SessionStore, or ErrSessionsUnsupported.
func Sessions(ps ProgressStore) (SessionStore, error) {
	ss, ok := ps.(SessionStore)
	if !ok {
		return nil, ErrSessionsUnsupported
	}
	return ss, nil
}
