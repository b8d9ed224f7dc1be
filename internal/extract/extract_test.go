package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/me/drill/internal/logging"
	"github.com/me/drill/internal/records"
)

const stack = "# Python drills\n\n" +
	"## Lists\n\n" +
	"### Question 1\nCreate a list `xs` with three items.\n\n" +
	"### Question 2\nReverse it:\n```python\nxs = [1, 2, 3]\n```\nStore the result in `ys`.\n\n" +
	"## Dictionaries \n" +
	"### Question 7\nBuild a dict.\n"

func TestExtract(t *testing.T) {
	recs := Extract(stack)
	if len(recs) != 3 {
		t.Fatalf("len = %d, want 3", len(recs))
	}

	tests := []struct {
		id, orig int
		category string
		prompt   string
	}{
		{1, 1, "Lists", "Create a list `xs` with three items."},
		{2, 2, "Lists", "Reverse it:\n\nStore the result in `ys`."},
		{3, 7, "Dictionaries", "Build a dict."},
	}
	for i, tt := range tests {
		r := recs[i]
		if r.ID != tt.id || r.OriginalID != tt.orig {
			t.Errorf("rec %d: id=%d orig=%d, want %d/%d", i, r.ID, r.OriginalID, tt.id, tt.orig)
		}
		if r.Category != tt.category {
			t.Errorf("rec %d: category = %q, want %q", i, r.Category, tt.category)
		}
		if r.Prompt != tt.prompt {
			t.Errorf("rec %d: prompt = %q, want %q", i, r.Prompt, tt.prompt)
		}
	}
}

func TestExtract_NoCategories(t *testing.T) {
	if recs := Extract("### Question 1\norphan"); len(recs) != 0 {
		t.Errorf("got %d records from text without categories", len(recs))
	}
}

func TestIsStack(t *testing.T) {
	for name, want := range map[string]bool{
		"Q1stack":    true,
		"Q10stack":   true,
		"q1stack":    false,
		"Q1stack.md": false,
		"notes":      false,
	} {
		if got := IsStack(name); got != want {
			t.Errorf("IsStack(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestExtractDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Q1stack"), []byte(stack), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("ignore"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := Options{Logger: logging.Discard()}
	res, err := ExtractDir(dir, opts)
	if err != nil {
		t.Fatalf("ExtractDir: %v", err)
	}
	if len(res) != 1 || res[0].Count != 3 || res[0].Skipped {
		t.Fatalf("results = %+v", res)
	}

	recs, err := records.Load(filepath.Join(dir, "extracted", "Q1stack.json"))
	if err != nil {
		t.Fatalf("load output: %v", err)
	}
	if len(recs) != 3 || recs[2].OriginalID != 7 {
		t.Errorf("output records = %+v", recs)
	}
	data, err := os.ReadFile(filepath.Join(dir, "extracted", "Q1stack.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"question_raw"`) || strings.Contains(string(data), `"question":`) {
		t.Errorf("extracted prompts should be written as question_raw:\n%s", data)
	}

	// Second run leaves existing outputs alone.
	res, err = ExtractDir(dir, opts)
	if err != nil {
		t.Fatalf("second ExtractDir: %v", err)
	}
	if len(res) != 1 || !res[0].Skipped {
		t.Errorf("second run results = %+v", res)
	}

	opts.Force = true
	res, err = ExtractDir(dir, opts)
	if err != nil {
		t.Fatalf("forced ExtractDir: %v", err)
	}
	if res[0].Skipped || res[0].Count != 3 {
		t.Errorf("forced run results = %+v", res)
	}
}
