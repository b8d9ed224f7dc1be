package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/me/drill/pkg/model"
	"github.com/me/drill/pkg/srs"
)

// FileStore keeps one progress snapshot file per learner in a directory.
// It implements ProgressStore only.
type FileStore struct {
	dir    string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewFileStore creates dir if needed and returns a FileStore over it.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create progress dir: %w", err)
	}
	return &FileStore{dir: dir, logger: logger.With("component", "store", "backend", BackendFile)}, nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) path(learner string) (string, error) {
	if err := model.ValidateLearner(learner); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, learner+".json"), nil
}

// load reads a learner's file; a missing file is empty progress.
// Callers hold s.mu.
func (s *FileStore) load(learner string) (*model.Progress, error) {
	path, err := s.path(learner)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.NewProgress(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read progress: %w", err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return snap.Progress()
}

// save writes the snapshot through a temporary file and a rename.
// Callers hold s.mu.
func (s *FileStore) save(learner string, p *model.Progress) error {
	path, err := s.path(learner)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(p.Snapshot(time.Now()), "", "  ")
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, learner+".*.tmp")
	if err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write progress: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write progress: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write progress: %w", err)
	}
	return nil
}

// update applies fn to the learner's progress and saves the result.
func (s *FileStore) update(learner string, fn func(p *model.Progress)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.load(learner)
	if err != nil {
		return err
	}
	fn(p)
	return s.save(learner, p)
}

func (s *FileStore) LoadProgress(_ context.Context, learner string) (*model.Progress, error) {
	s.logger.Debug("file", "op", "load", "learner", learner)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(learner)
}

func (s *FileStore) SaveReview(_ context.Context, learner string, id int, outcome srs.Outcome, st srs.State) error {
	s.logger.Debug("file", "op", "save_review", "learner", learner, "record_id", id)

	return s.update(learner, func(p *model.Progress) {
		p.Ratings[id] = outcome
		p.Reviews[id] = st
	})
}

func (s *FileStore) IncrementAttempts(_ context.Context, learner string, id int) (int, error) {
	s.logger.Debug("file", "op", "increment", "learner", learner, "record_id", id)

	var n int
	err := s.update(learner, func(p *model.Progress) {
		p.Attempts[id]++
		n = p.Attempts[id]
	})
	return n, err
}

func (s *FileStore) MergeProgress(_ context.Context, learner string, other *model.Progress) error {
	s.logger.Debug("file", "op", "merge", "learner", learner)

	return s.update(learner, func(p *model.Progress) { p.Merge(other) })
}
