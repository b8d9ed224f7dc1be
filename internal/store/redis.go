package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/me/drill/pkg/model"
	"github.com/me/drill/pkg/srs"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string // host:port or a redis:// URL
	Password string
	DB       int
	Prefix   string // key prefix, default "drill"
}

// RedisStore implements Store on Redis. Progress lives in three hashes per
// learner keyed by record ID; sessions are JSON strings that expire on
// their own.
type RedisStore struct {
	rdb    *goredis.Client
	prefix string
	logger *slog.Logger
}

// reviewEntry is the stored form of a schedule state.
type reviewEntry struct {
	Interval   float64 `json:"interval"`
	LastReview float64 `json:"last_review"`
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, opts RedisOptions, logger *slog.Logger) (*RedisStore, error) {
	var ropts *goredis.Options
	if strings.HasPrefix(opts.Addr, "redis://") || strings.HasPrefix(opts.Addr, "rediss://") {
		parsed, err := goredis.ParseURL(opts.Addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		ropts = parsed
	} else {
		ropts = &goredis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}
	}
	ropts.DialTimeout = 5 * time.Second

	rdb := goredis.NewClient(ropts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "drill"
	}
	return &RedisStore{
		rdb:    rdb,
		prefix: prefix,
		logger: logger.With("component", "store", "backend", BackendRedis),
	}, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Migrate is a no-op; Redis needs no schema.
func (s *RedisStore) Migrate(context.Context) error { return nil }

func (s *RedisStore) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

// --- Progress operations ---

func (s *RedisStore) LoadProgress(ctx context.Context, learner string) (*model.Progress, error) {
	s.logger.Debug("redis", "op", "hgetall", "learner", learner)

	var ratings, attempts, reviews *goredis.MapStringStringCmd
	_, err := s.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		ratings = pipe.HGetAll(ctx, s.key("ratings", learner))
		attempts = pipe.HGetAll(ctx, s.key("attempts", learner))
		reviews = pipe.HGetAll(ctx, s.key("reviews", learner))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	p := model.NewProgress()
	for field, v := range ratings.Val() {
		id, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		p.Ratings[id] = srs.Outcome(v)
	}
	for field, v := range attempts.Val() {
		id, err1 := strconv.Atoi(field)
		n, err2 := strconv.Atoi(v)
		if err1 != nil || err2 != nil {
			continue
		}
		p.Attempts[id] = n
	}
	for field, v := range reviews.Val() {
		id, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		var e reviewEntry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, fmt.Errorf("decode review %d: %w", id, err)
		}
		p.Reviews[id] = srs.State{Interval: e.Interval, LastReview: srs.FromEpochSeconds(e.LastReview)}
	}
	return p, nil
}

func encodeReview(st srs.State) (string, error) {
	data, err := json.Marshal(reviewEntry{Interval: st.Interval, LastReview: srs.EpochSeconds(st.LastReview)})
	return string(data), err
}

func (s *RedisStore) SaveReview(ctx context.Context, learner string, id int, outcome srs.Outcome, st srs.State) error {
	s.logger.Debug("redis", "op", "hset", "learner", learner, "record_id", id)

	entry, err := encodeReview(st)
	if err != nil {
		return err
	}
	field := strconv.Itoa(id)
	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, s.key("ratings", learner), field, string(outcome))
		pipe.HSet(ctx, s.key("reviews", learner), field, entry)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save review %d: %w", id, err)
	}
	return nil
}

func (s *RedisStore) IncrementAttempts(ctx context.Context, learner string, id int) (int, error) {
	s.logger.Debug("redis", "op", "hincrby", "learner", learner, "record_id", id)

	n, err := s.rdb.HIncrBy(ctx, s.key("attempts", learner), strconv.Itoa(id), 1).Result()
	if err != nil {
		return 0, fmt.Errorf("increment attempts %d: %w", id, err)
	}
	return int(n), nil
}

func (s *RedisStore) MergeProgress(ctx context.Context, learner string, p *model.Progress) error {
	s.logger.Debug("redis", "op", "merge", "learner", learner)

	reviews := make(map[string]any, len(p.Reviews))
	for id, st := range p.Reviews {
		entry, err := encodeReview(st)
		if err != nil {
			return err
		}
		reviews[strconv.Itoa(id)] = entry
	}
	ratings := make(map[string]any, len(p.Ratings))
	for id, o := range p.Ratings {
		ratings[strconv.Itoa(id)] = string(o)
	}
	attempts := make(map[string]any, len(p.Attempts))
	for id, n := range p.Attempts {
		attempts[strconv.Itoa(id)] = n
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		if len(ratings) > 0 {
			pipe.HSet(ctx, s.key("ratings", learner), ratings)
		}
		if len(attempts) > 0 {
			pipe.HSet(ctx, s.key("attempts", learner), attempts)
		}
		if len(reviews) > 0 {
			pipe.HSet(ctx, s.key("reviews", learner), reviews)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("merge progress: %w", err)
	}
	return nil
}

// --- Session operations ---

func (s *RedisStore) sessionTTL(sess *model.LearnerSession) time.Duration {
	ttl := time.Until(sess.ExpiresAt)
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (s *RedisStore) CreateSession(ctx context.Context, sess *model.LearnerSession) error {
	s.logger.Debug("redis", "op", "set", "session", sess.ID)

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, s.key("session", sess.ID), data, s.sessionTTL(sess)).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session %s already exists", sess.ID)
	}
	return nil
}

func (s *RedisStore) GetSession(ctx context.Context, id string) (*model.LearnerSession, error) {
	s.logger.Debug("redis", "op", "get", "session", id)

	data, err := s.rdb.Get(ctx, s.key("session", id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var sess model.LearnerSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) UpdateSession(ctx context.Context, sess *model.LearnerSession) error {
	s.logger.Debug("redis", "op", "set_xx", "session", sess.ID)

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	err = s.rdb.SetArgs(ctx, s.key("session", sess.ID), data, goredis.SetArgs{
		Mode: "XX",
		TTL:  s.sessionTTL(sess),
	}).Err()
	if errors.Is(err, goredis.Nil) {
		return fmt.Errorf("session %s not found", sess.ID)
	}
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, id string) error {
	s.logger.Debug("redis", "op", "del", "session", id)
	return s.rdb.Del(ctx, s.key("session", id)).Err()
}

// DeleteExpiredSessions returns 0; Redis expires session keys itself.
func (s *RedisStore) DeleteExpiredSessions(context.Context) (int64, error) {
	return 0, nil
}
