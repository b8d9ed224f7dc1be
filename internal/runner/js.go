package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/me/drill/pkg/model"
)

// JSRunner evaluates JavaScript in an embedded goja runtime. Each run gets a
// fresh runtime; top-level let/const bindings are visible to checks.
type JSRunner struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewJSRunner creates a JSRunner. A zero timeout uses DefaultTimeout.
func NewJSRunner(timeout time.Duration, logger *slog.Logger) *JSRunner {
	return &JSRunner{timeout: timeout, logger: logger.With("component", "js-runner")}
}

// Language returns model.LanguageJavaScript.
func (r *JSRunner) Language() string { return model.LanguageJavaScript }

// Run executes code and evaluates checks.
func (r *JSRunner) Run(ctx context.Context, code string, checks model.Checks) (*Result, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	vm := goja.New()
	var stdout, stderr strings.Builder

	if err := vm.Set("print", writer(&stdout)); err != nil {
		return nil, fmt.Errorf("set print: %w", err)
	}
	console := vm.NewObject()
	for name, w := range map[string]*strings.Builder{"log": &stdout, "info": &stdout, "warn": &stderr, "error": &stderr} {
		if err := console.Set(name, writer(w)); err != nil {
			return nil, fmt.Errorf("set console.%s: %w", name, err)
		}
	}
	if err := vm.Set("console", console); err != nil {
		return nil, fmt.Errorf("set console: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer stop()

	start := time.Now()
	_, runErr := vm.RunString(code)
	res := &Result{Duration: time.Since(start)}
	res.Stdout, res.Stderr = stdout.String(), stderr.String()

	if runErr != nil {
		var interrupted *goja.InterruptedError
		if errors.As(runErr, &interrupted) {
			res.Error = fmt.Sprintf("timed out after %s", r.effectiveTimeout())
		} else {
			res.Error = runErr.Error()
		}
	}

	vars := make(map[string]binding, len(checks.Variables))
	if res.Error == "" {
		for _, vc := range checks.Variables {
			val := vm.Get(vc.Name)
			if val == nil || goja.IsUndefined(val) {
				continue
			}
			vars[vc.Name] = binding{value: exportValue(val), found: true}
		}
	}

	evaluate(res, checks, vars)
	r.logger.Debug("run finished", "passed", res.Passed, "duration", res.Duration, "error", res.Error)
	return res, nil
}

func (r *JSRunner) effectiveTimeout() time.Duration {
	if r.timeout <= 0 {
		return DefaultTimeout
	}
	return r.timeout
}

// writer returns a print-like function appending its space-joined arguments
// and a newline to w.
func writer(w *strings.Builder) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			parts[i] = a.String()
		}
		w.WriteString(strings.Join(parts, " "))
		w.WriteByte('\n')
		return goja.Undefined()
	}
}

// exportValue converts a JS value for comparison. Functions and other
// values without a data form fall back to their string form.
func exportValue(v goja.Value) any {
	if _, ok := goja.AssertFunction(v); ok {
		return v.String()
	}
	return v.Export()
}
