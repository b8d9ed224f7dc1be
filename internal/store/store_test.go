package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/drill/internal/logging"
	"github.com/me/drill/pkg/model"
	"github.com/me/drill/pkg/srs"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(":memory:", logging.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// uniqueLearner keeps tests against shared remote backends apart.
func uniqueLearner(t *testing.T) string {
	return fmt.Sprintf("t-%s", uuid.NewString()[:8])
}

// runProgressSuite exercises the ProgressStore contract.
func runProgressSuite(t *testing.T, ps ProgressStore) {
	ctx := context.Background()
	reviewed := time.Unix(1_700_000_000, 0).UTC()

	t.Run("empty learner", func(t *testing.T) {
		p, err := ps.LoadProgress(ctx, uniqueLearner(t))
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Empty(t, p.Ratings)
		assert.Empty(t, p.Attempts)
		assert.Empty(t, p.Reviews)
	})

	t.Run("save review", func(t *testing.T) {
		learner := uniqueLearner(t)
		require.NoError(t, ps.SaveReview(ctx, learner, 7, srs.OutcomeEasy, srs.State{Interval: 1.25, LastReview: reviewed}))
		require.NoError(t, ps.SaveReview(ctx, learner, 7, srs.OutcomeHard, srs.State{Interval: 0.625, LastReview: reviewed.Add(time.Hour)}))

		p, err := ps.LoadProgress(ctx, learner)
		require.NoError(t, err)
		assert.Equal(t, srs.OutcomeHard, p.Ratings[7])
		assert.InDelta(t, 0.625, p.Reviews[7].Interval, 1e-9)
		assert.WithinDuration(t, reviewed.Add(time.Hour), p.Reviews[7].LastReview, time.Millisecond)
		assert.NotContains(t, p.Attempts, 7)
	})

	t.Run("increment attempts", func(t *testing.T) {
		learner := uniqueLearner(t)
		for want := 1; want <= 3; want++ {
			n, err := ps.IncrementAttempts(ctx, learner, 4)
			require.NoError(t, err)
			assert.Equal(t, want, n)
		}
		require.NoError(t, ps.SaveReview(ctx, learner, 4, srs.OutcomeMedium, srs.State{Interval: 0.75, LastReview: reviewed}))

		p, err := ps.LoadProgress(ctx, learner)
		require.NoError(t, err)
		assert.Equal(t, 3, p.Attempts[4], "review must not reset attempts")
		assert.Equal(t, srs.OutcomeMedium, p.Ratings[4])
	})

	t.Run("merge replaces per key", func(t *testing.T) {
		learner := uniqueLearner(t)
		require.NoError(t, ps.SaveReview(ctx, learner, 1, srs.OutcomeEasy, srs.State{Interval: 2.5, LastReview: reviewed}))
		require.NoError(t, ps.SaveReview(ctx, learner, 2, srs.OutcomeEasy, srs.State{Interval: 2.5, LastReview: reviewed}))
		_, err := ps.IncrementAttempts(ctx, learner, 2)
		require.NoError(t, err)

		incoming := model.NewProgress()
		incoming.Ratings[2] = srs.OutcomeHard
		incoming.Reviews[2] = srs.State{Interval: 0.5, LastReview: reviewed.Add(24 * time.Hour)}
		incoming.Attempts[3] = 9
		require.NoError(t, ps.MergeProgress(ctx, learner, incoming))

		p, err := ps.LoadProgress(ctx, learner)
		require.NoError(t, err)
		assert.Equal(t, srs.OutcomeEasy, p.Ratings[1], "untouched key kept")
		assert.Equal(t, srs.OutcomeHard, p.Ratings[2])
		assert.InDelta(t, 0.5, p.Reviews[2].Interval, 1e-9)
		assert.Equal(t, 1, p.Attempts[2])
		assert.Equal(t, 9, p.Attempts[3])
		assert.NotContains(t, p.Reviews, 3)
	})

	t.Run("learners are isolated", func(t *testing.T) {
		a, b := uniqueLearner(t), uniqueLearner(t)
		require.NoError(t, ps.SaveReview(ctx, a, 1, srs.OutcomeEasy, srs.State{Interval: 1.25, LastReview: reviewed}))
		p, err := ps.LoadProgress(ctx, b)
		require.NoError(t, err)
		assert.Empty(t, p.Ratings)
	})
}

// runSessionSuite exercises the SessionStore contract.
func runSessionSuite(t *testing.T, ss SessionStore) {
	ctx := context.Background()

	t.Run("create get update delete", func(t *testing.T) {
		now := time.Now().Truncate(time.Second)
		sess := &model.LearnerSession{
			ID:        "ls_" + uuid.NewString(),
			Learner:   "ada",
			Category:  "Lists",
			CreatedAt: now,
			ExpiresAt: now.Add(time.Hour),
		}
		require.NoError(t, ss.CreateSession(ctx, sess))

		got, err := ss.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "ada", got.Learner)
		assert.Equal(t, "Lists", got.Category)
		assert.False(t, got.HasCurrent())
		assert.True(t, got.ExpiresAt.Equal(sess.ExpiresAt))

		got.CurrentID = 12
		got.Category = ""
		require.NoError(t, ss.UpdateSession(ctx, got))
		again, err := ss.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, 12, again.CurrentID)
		assert.Empty(t, again.Category)

		require.NoError(t, ss.DeleteSession(ctx, sess.ID))
		gone, err := ss.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		assert.Nil(t, gone)
	})

	t.Run("missing", func(t *testing.T) {
		got, err := ss.GetSession(ctx, "ls_missing")
		require.NoError(t, err)
		assert.Nil(t, got)

		err = ss.UpdateSession(ctx, &model.LearnerSession{ID: "ls_missing", ExpiresAt: time.Now().Add(time.Hour)})
		assert.Error(t, err)
	})
}

func TestSQLiteStore(t *testing.T) {
	st := testStore(t)
	runProgressSuite(t, st)
	runSessionSuite(t, st)
}

func TestSQLiteStore_DeleteExpiredSessions(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now()

	expired := &model.LearnerSession{ID: "ls_old", Learner: "ada", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	live := &model.LearnerSession{ID: "ls_new", Learner: "ada", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, st.CreateSession(ctx, expired))
	require.NoError(t, st.CreateSession(ctx, live))

	n, err := st.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := st.GetSession(ctx, "ls_new")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestSQLiteStore_MigrateIdempotent(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLiteStore_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drill.db")
	ctx := context.Background()

	ps, err := Open(ctx, BackendSQLite, path, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, ps.SaveReview(ctx, "ada", 3, srs.OutcomeMedium, srs.State{Interval: 0.75, LastReview: time.Now()}))
	require.NoError(t, ps.Close())

	ps, err = Open(ctx, BackendSQLite, path, logging.Discard())
	require.NoError(t, err)
	defer ps.Close()
	p, err := ps.LoadProgress(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, srs.OutcomeMedium, p.Ratings[3])
}

func TestFileStore(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), logging.Discard())
	require.NoError(t, err)
	runProgressSuite(t, fs)
}

func TestFileStore_SnapshotFormat(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, logging.Discard())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fs.SaveReview(ctx, "ada", 12, srs.OutcomeEasy, srs.State{Interval: 1.25, LastReview: time.Unix(1_700_000_000, 0)}))

	data, err := os.ReadFile(filepath.Join(dir, "ada.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"review_data"`)
	assert.Contains(t, string(data), `"12"`)
	assert.Contains(t, string(data), `"last_review": 1700000000`)
}

func TestFileStore_RejectsBadLearner(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), logging.Discard())
	require.NoError(t, err)
	_, err = fs.LoadProgress(context.Background(), "../etc/passwd")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	ps, err := Open(ctx, BackendFile, t.TempDir(), logging.Discard())
	require.NoError(t, err)
	_, err = Sessions(ps)
	assert.ErrorIs(t, err, ErrSessionsUnsupported)

	ps, err = Open(ctx, BackendSQLite, ":memory:", logging.Discard())
	require.NoError(t, err)
	defer ps.Close()
	_, err = Sessions(ps)
	assert.NoError(t, err)

	_, err = Open(ctx, "mongo", "", logging.Discard())
	assert.Error(t, err)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("DRILL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DRILL_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	st, err := NewPostgresStore(ctx, dsn, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(ctx))

	runProgressSuite(t, st)
	runSessionSuite(t, st)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("DRILL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DRILL_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	st, err := NewRedisStore(ctx, RedisOptions{Addr: addr, Prefix: "drilltest"}, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	runProgressSuite(t, st)
	runSessionSuite(t, st)
}
