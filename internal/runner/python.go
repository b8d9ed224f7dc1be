package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/me/drill/pkg/model"
)

// harness executes the learner's code in a fresh namespace and writes the
// requested variables to a JSON side file. Values json cannot encode are
// sent as their repr.
const harness = `import json, sys, traceback

code_path, names_path, out_path = sys.argv[1:4]
with open(code_path, encoding="utf-8") as f:
    code = f.read()
with open(names_path, encoding="utf-8") as f:
    names = json.load(f)

ns = {"__name__": "__main__"}
result = {"error": None, "vars": {}}
try:
    exec(compile(code, "<answer>", "exec"), ns)
except BaseException as e:
    result["error"] = "".join(traceback.format_exception_only(type(e), e)).strip()
else:
    for name in names:
        if name not in ns:
            continue
        value = ns[name]
        try:
            json.dumps(value)
            result["vars"][name] = {"value": value}
        except (TypeError, ValueError):
            result["vars"][name] = {"repr": repr(value)}
finally:
    sys.stdout.flush()
    sys.stderr.flush()

with open(out_path, "w", encoding="utf-8") as f:
    json.dump(result, f)
`

// harnessOutput is the side file written by the harness.
type harnessOutput struct {
	Error *string `json:"error"`
	Vars  map[string]struct {
		Value json.RawMessage `json:"value"`
		Repr  *string         `json:"repr"`
	} `json:"vars"`
}

// PythonRunner runs code with a local Python interpreter. The code is not
// sandboxed; it runs with the server's privileges.
type PythonRunner struct {
	python  string
	workDir string
	timeout time.Duration
	logger  *slog.Logger
}

// NewPythonRunner creates a PythonRunner using the given interpreter.
// Scratch files go under workDir, or os.TempDir() when empty.
func NewPythonRunner(python, workDir string, timeout time.Duration, logger *slog.Logger) *PythonRunner {
	if python == "" {
		python = "python3"
	}
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &PythonRunner{
		python:  python,
		workDir: workDir,
		timeout: timeout,
		logger:  logger.With("component", "python-runner"),
	}
}

// Language returns model.LanguagePython.
func (r *PythonRunner) Language() string { return model.LanguagePython }

// Run executes code and evaluates checks.
func (r *PythonRunner) Run(ctx context.Context, code string, checks model.Checks) (*Result, error) {
	dir, err := os.MkdirTemp(r.workDir, "drill-run-")
	if err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	defer os.RemoveAll(dir)

	names := make([]string, 0, len(checks.Variables))
	for _, vc := range checks.Variables {
		names = append(names, vc.Name)
	}
	namesJSON, err := json.Marshal(names)
	if err != nil {
		return nil, err
	}

	files := map[string][]byte{
		"harness.py": []byte(harness),
		"answer.py":  []byte(code),
		"names.json": namesJSON,
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}
	outPath := filepath.Join(dir, "result.json")

	runCtx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.python, "harness.py", "answer.py", "names.json", outPath)
	cmd.Dir = dir
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	start := time.Now()
	runErr := cmd.Run()
	res := &Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case runCtx.Err() != nil && ctx.Err() == nil:
		res.Error = fmt.Sprintf("timed out after %s", res.Duration.Round(time.Millisecond))
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case runErr == nil, errors.As(runErr, &exitErr):
	default:
		// Non-exit errors (e.g. interpreter not found) are returned directly.
		return nil, fmt.Errorf("run %s: %w", r.python, runErr)
	}

	vars := make(map[string]binding, len(names))
	if res.Error == "" {
		out, err := readHarnessOutput(outPath)
		switch {
		case err != nil && exitErr != nil:
			res.Error = fmt.Sprintf("interpreter exited with code %d", exitErr.ExitCode())
		case err != nil:
			return nil, err
		case out.Error != nil:
			res.Error = *out.Error
		default:
			for name, v := range out.Vars {
				b := binding{found: true}
				if v.Repr != nil {
					b.value = *v.Repr
				} else if err := json.Unmarshal(v.Value, &b.value); err != nil {
					return nil, fmt.Errorf("decode %s: %w", name, err)
				}
				vars[name] = b
			}
		}
	}

	evaluate(res, checks, vars)
	r.logger.Debug("run finished", "passed", res.Passed, "duration", res.Duration, "error", res.Error)
	return res, nil
}

func readHarnessOutput(path string) (*harnessOutput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run result: %w", err)
	}
	var out harnessOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode run result: %w", err)
	}
	return &out, nil
}
