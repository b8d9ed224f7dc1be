// Package extract turns markdown question stacks into record files.
//
// A stack is organised as
//
//	## <category>
//	### Question <n>
//	<prompt text, possibly with fenced code>
//
// Fenced code blocks are dropped from prompts; learners write the code.
package extract

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/me/drill/internal/records"
	"github.com/me/drill/pkg/model"
)

var (
	categoryRe = regexp.MustCompile(`(?m)^##\s+`)
	questionRe = regexp.MustCompile(`(?m)^###\s+Question\s+(\d+)`)
	fenceRe    = regexp.MustCompile("(?s)```.*?```")
)

// Extract parses one stack. IDs run from 1 across all categories;
// OriginalID is the number in the question heading.
func Extract(text string) []model.Record {
	var out []model.Record
	nextID := 1

	blocks := categoryRe.Split(text, -1)
	for _, block := range blocks[1:] {
		category, _, _ := strings.Cut(block, "\n")
		category = strings.TrimSpace(category)

		matches := questionRe.FindAllStringSubmatchIndex(block, -1)
		for i, m := range matches {
			end := len(block)
			if i+1 < len(matches) {
				end = matches[i+1][0]
			}
			num, err := strconv.Atoi(block[m[2]:m[3]])
			if err != nil {
				continue
			}
			prompt := fenceRe.ReplaceAllString(strings.TrimSpace(block[m[1]:end]), "")

			out = append(out, model.Record{
				ID:         nextID,
				OriginalID: num,
				Category:   category,
				Prompt:     strings.TrimSpace(prompt),
				RawPrompt:  true,
			})
			nextID++
		}
	}
	return out
}

// Options configures ExtractDir.
type Options struct {
	OutDir string // default <dir>/extracted
	Force  bool   // overwrite existing outputs
	Logger *slog.Logger
}

// FileResult reports what happened to one stack file.
type FileResult struct {
	Name    string `json:"name"`
	Output  string `json:"output"`
	Count   int    `json:"count"`
	Skipped bool   `json:"skipped"`
}

// IsStack reports whether name looks like a stack file (Q1stack, Q10stack).
func IsStack(name string) bool {
	return strings.HasPrefix(name, "Q") && strings.HasSuffix(name, "stack")
}

// ExtractDir extracts every stack file in dir into OutDir/<name>.json.
// Existing outputs are skipped unless Force is set.
func ExtractDir(dir string, opts Options) ([]FileResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "extract")

	outDir := opts.OutDir
	if outDir == "" {
		outDir = filepath.Join(dir, "extracted")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read stack dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var results []FileResult
	for _, e := range entries {
		if !e.Type().IsRegular() || !IsStack(e.Name()) {
			continue
		}
		res := FileResult{Name: e.Name(), Output: filepath.Join(outDir, e.Name()+".json")}

		if !opts.Force {
			if _, err := os.Stat(res.Output); err == nil {
				logger.Info("already extracted", "file", res.Name)
				res.Skipped = true
				results = append(results, res)
				continue
			} else if !errors.Is(err, fs.ErrNotExist) {
				return results, fmt.Errorf("stat %s: %w", res.Output, err)
			}
		}

		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return results, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		recs := Extract(string(data))
		if err := records.Save(res.Output, recs); err != nil {
			return results, fmt.Errorf("save %s: %w", res.Output, err)
		}
		res.Count = len(recs)
		logger.Info("extracted", "file", res.Name, "questions", res.Count)
		results = append(results, res)
	}
	return results, nil
}
