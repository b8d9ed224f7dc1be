// Package sweeper periodically removes expired learner sessions.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/me/drill/internal/store"
)

// Config holds sweeper configuration.
type Config struct {
	Interval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Interval: 10 * time.Minute}
}

// Loop is a polling loop that deletes expired sessions.
type Loop struct {
	sessions store.SessionStore
	config   Config
	logger   *slog.Logger
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewLoop creates a new sweeper loop.
func NewLoop(ss store.SessionStore, cfg Config, logger *slog.Logger) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Loop{
		sessions: ss,
		config:   cfg,
		logger:   logger.With("component", "sweeper"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the loop. Blocks until ctx is cancelled or Stop is called.
func (l *Loop) Start(ctx context.Context) error {
	defer close(l.doneCh)
	l.logger.Info("sweeper started", "interval", l.config.Interval)
	ticker := time.NewTicker(l.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("sweeper stopping (context cancelled)")
			return ctx.Err()
		case <-l.stopCh:
			l.logger.Info("sweeper stopping (stop called)")
			return nil
		case <-ticker.C:
			if _, err := l.Tick(ctx); err != nil {
				l.logger.Error("tick error", "error", err)
			}
		}
	}
}

// Stop shuts the loop down and waits for the current tick to finish.
// Start must have been called.
func (l *Loop) Stop() error {
	l.stopOnce.Do(func() { close(l.stopCh) })
	<-l.doneCh
	return nil
}

// Tick runs a single sweep and returns the number of sessions removed.
func (l *Loop) Tick(ctx context.Context) (int64, error) {
	n, err := l.sessions.DeleteExpiredSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	if n > 0 {
		l.logger.Info("expired sessions removed", "count", n)
	}
	return n, nil
}
