// Package runner executes learner code and verifies it against a record's checks.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/me/drill/pkg/model"
)

// ErrUnsupportedLanguage is returned when no runner handles a record's language.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// DefaultTimeout bounds a single run when the caller sets none.
const DefaultTimeout = 5 * time.Second

// Runner executes code for one language.
type Runner interface {
	// Language returns the language identifier, e.g. "python".
	Language() string

	// Run executes code and evaluates checks against what it left behind.
	// Failures of the learner's code are reported in the Result; the error
	// is reserved for problems running it at all.
	Run(ctx context.Context, code string, checks model.Checks) (*Result, error)
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name     string `json:"name"` // variable name, or "output"
	Expected any    `json:"expected"`
	Actual   any    `json:"actual,omitempty"`
	Found    bool   `json:"found"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message"`
}

// Result describes one execution.
type Result struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Error    string        `json:"error,omitempty"` // exception or timeout
	Checks   []CheckResult `json:"checks"`
	NoChecks bool          `json:"no_checks,omitempty"`
	Passed   bool          `json:"passed"`
	Duration time.Duration `json:"duration_ns"`
}

// Registry maps languages to their runners.
// Registration happens at startup before concurrent access, so no mutex is needed.
type Registry struct {
	runners map[string]Runner
	logger  *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		runners: make(map[string]Runner),
		logger:  logger.With("component", "runner-registry"),
	}
}

// NewDefaultRegistry registers the Python and JavaScript runners.
func NewDefaultRegistry(python, workDir string, timeout time.Duration, logger *slog.Logger) *Registry {
	reg := NewRegistry(logger)
	reg.Register(NewPythonRunner(python, workDir, timeout, logger))
	reg.Register(NewJSRunner(timeout, logger))
	return reg
}

// Register adds a runner, keyed by its Language().
func (r *Registry) Register(run Runner) {
	lang := run.Language()
	r.runners[lang] = run
	r.logger.Info("runner registered", "language", lang)
}

// Get returns the runner for lang.
func (r *Registry) Get(lang string) (Runner, error) {
	run, ok := r.runners[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	return run, nil
}

// Languages lists registered languages, sorted.
func (r *Registry) Languages() []string {
	out := make([]string, 0, len(r.runners))
	for lang := range r.runners {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// withTimeout applies d unless ctx already has an earlier deadline.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
