package records

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/me/drill/pkg/model"
)

const sampleJSON = `[
  {"id": 1, "qid_original": 1, "category": "Lists", "question": "Büld a list", "solution_code": "x = [1, 2]\n", "check_variable": "x", "expected_value": [1, 2]},
  {"id": 2, "qid_original": 2, "category": "Dicts", "question": "Make d", "check_variable": ["a", "b"], "expected_value": [1, 2]},
  {"id": 3, "qid_original": 3, "category": "Lists", "question": "Print", "expected_output": "hi\n"}
]`

const sampleYAML = `
- id: 10
  category: Strings
  question: Upper-case s
  check_variable: s
  expected_value: ABC
- id: 11
  category: Strings
  question: Split
  language: javascript
  check_variable: [parts]
  expected_value: [[a, b]]
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tasks.json", sampleJSON)

	recs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("len = %d, want 3", len(recs))
	}
	if recs[0].Prompt != "Büld a list" {
		t.Errorf("prompt = %q", recs[0].Prompt)
	}
	if len(recs[1].Checks.Variables) != 2 {
		t.Errorf("record 2 checks = %+v", recs[1].Checks)
	}
	if recs[2].Checks.Output == nil || *recs[2].Checks.Output != "hi\n" {
		t.Errorf("record 3 output check = %v", recs[2].Checks.Output)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tasks.yaml", sampleYAML)

	recs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2", len(recs))
	}
	if got := recs[0].Checks.Variables[0]; got.Name != "s" || got.Expected != "ABC" {
		t.Errorf("check = %+v", got)
	}
	if recs[1].Lang() != model.LanguageJavaScript {
		t.Errorf("lang = %q", recs[1].Lang())
	}
	want := []any{"a", "b"}
	if got := recs[1].Checks.Variables[0].Expected; !reflect.DeepEqual(got, want) {
		t.Errorf("expected = %#v, want %#v", got, want)
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(writeFile(t, dir, "bad.json", `{"id": 1}`)); err == nil {
		t.Error("expected error for non-array JSON")
	}
	if _, err := Load(writeFile(t, dir, "bad.yaml", "- id: [")); err == nil {
		t.Error("expected error for malformed YAML")
	}
	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", sampleJSON)
	writeFile(t, dir, "b.yml", sampleYAML)
	writeFile(t, dir, "notes.txt", "ignored")

	recs, err := LoadPath(dir)
	if err != nil {
		t.Fatalf("LoadPath: %v", err)
	}
	if len(recs) != 5 {
		t.Fatalf("len = %d, want 5", len(recs))
	}
	if recs[3].ID != 10 {
		t.Errorf("records not in file order: %d", recs[3].ID)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	recs, err := Load(writeFile(t, dir, "tasks.json", sampleJSON))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, name := range []string{"out.json", "out.yaml"} {
		path := filepath.Join(dir, name)
		if err := Save(path, recs); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
		back, err := Load(path)
		if err != nil {
			t.Fatalf("reload %s: %v", name, err)
		}
		if len(back) != len(recs) {
			t.Fatalf("%s: len = %d", name, len(back))
		}
		if back[0].Prompt != recs[0].Prompt || back[1].Checks.Variables[1].Name != "b" {
			t.Errorf("%s: content changed: %+v", name, back)
		}
	}

	data, _ := os.ReadFile(filepath.Join(dir, "out.json"))
	if !strings.Contains(string(data), "Büld") {
		t.Error("non-ASCII text was escaped")
	}
	if !strings.Contains(string(data), `"check_variable": "x"`) {
		t.Error("scalar check_variable form not preserved")
	}
}

func testSet(t *testing.T) *Set {
	t.Helper()
	s, err := NewSet([]model.Record{
		{ID: 5, Category: "Lists"},
		{ID: 2, Category: "Dicts"},
		{ID: 9, Category: "Lists"},
		{ID: 4},
	})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return s
}

func TestSet_Get(t *testing.T) {
	s := testSet(t)

	r, err := s.Get(9)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if r.ID != 9 {
		t.Errorf("Get(9) = %d", r.ID)
	}
	if _, err := s.Get(3); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(3) error = %v, want ErrNotFound", err)
	}
	if s.Len() != 4 {
		t.Errorf("Len = %d", s.Len())
	}
}

func TestSet_Duplicate(t *testing.T) {
	_, err := NewSet([]model.Record{{ID: 1}, {ID: 2}, {ID: 1}})
	if err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestSet_ZeroID(t *testing.T) {
	_, err := NewSet([]model.Record{{ID: 5}, {ID: 0, Category: "Lists"}})
	if !errors.Is(err, ErrZeroID) {
		t.Fatalf("err = %v, want ErrZeroID", err)
	}
	if !strings.Contains(err.Error(), "position 1") {
		t.Errorf("error should name the offending position: %v", err)
	}
}

func TestSet_Filter(t *testing.T) {
	s := testSet(t)

	ids := func(recs []model.Record) []int {
		var out []int
		for _, r := range recs {
			out = append(out, r.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter Filter
		want   []int
	}{
		{"all", Filter{}, []int{5, 2, 9, 4}},
		{"category", Filter{Category: "Lists"}, []int{5, 9}},
		{"pinned", Filter{ID: 2}, []int{2}},
		{"pinned wrong category", Filter{ID: 2, Category: "Lists"}, nil},
		{"unknown id", Filter{ID: 77}, nil},
		{"unknown category", Filter{Category: "Sets"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ids(s.Filter(tt.filter)); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Filter(%+v) = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestSet_Categories(t *testing.T) {
	got := testSet(t).Categories()
	if want := []string{"Dicts", "Lists"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Categories = %v, want %v", got, want)
	}
}

func TestSet_AllIsCopy(t *testing.T) {
	s := testSet(t)
	all := s.All()
	all[0].ID = 100
	if r, _ := s.Get(5); r.ID != 5 {
		t.Error("All exposed internal storage")
	}
}

func TestMissingAndDuplicateIDs(t *testing.T) {
	recs := []model.Record{
		{ID: 1, OriginalID: 3},
		{ID: 4, OriginalID: 3},
		{ID: 7},
		{ID: 4, OriginalID: 5},
	}

	if got, want := MissingIDs(recs, KeyID), []int{2, 3, 5, 6}; !reflect.DeepEqual(got, want) {
		t.Errorf("MissingIDs(id) = %v, want %v", got, want)
	}
	if got, want := MissingIDs(recs, KeyOriginalID), []int{4}; !reflect.DeepEqual(got, want) {
		t.Errorf("MissingIDs(qid_original) = %v, want %v", got, want)
	}
	if got := MissingIDs(nil, KeyID); got != nil {
		t.Errorf("MissingIDs(nil) = %v", got)
	}

	if got, want := DuplicateIDs(recs, KeyID), []Duplicate{{Value: 4, Count: 2}}; !reflect.DeepEqual(got, want) {
		t.Errorf("DuplicateIDs(id) = %v, want %v", got, want)
	}
	if got, want := DuplicateIDs(recs, KeyOriginalID), []Duplicate{{Value: 3, Count: 2}}; !reflect.DeepEqual(got, want) {
		t.Errorf("DuplicateIDs(qid_original) = %v, want %v", got, want)
	}
}

func TestParseKey(t *testing.T) {
	if k, err := ParseKey("qid_original"); err != nil || k != KeyOriginalID {
		t.Errorf("ParseKey(qid_original) = %q, %v", k, err)
	}
	if _, err := ParseKey("uuid"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestRenumber(t *testing.T) {
	recs := []model.Record{
		{ID: 1, OriginalID: 11},
		{ID: 2},
		{ID: 3, OriginalID: 13},
	}
	skipped := Renumber(recs)

	if recs[0].ID != 11 || recs[2].ID != 13 {
		t.Errorf("ids = %d, %d", recs[0].ID, recs[2].ID)
	}
	if recs[1].ID != 2 {
		t.Errorf("record without qid_original changed to %d", recs[1].ID)
	}
	if len(skipped) != 1 || skipped[0].ID != 2 {
		t.Errorf("skipped = %+v", skipped)
	}
}

func TestWriteSolutions(t *testing.T) {
	recs := []model.Record{
		{ID: 1, Solution: "  a = 1\n"},
		{ID: 2},
		{ID: 3, Solution: "b = 2"},
	}
	var buf bytes.Buffer
	n, err := WriteSolutions(&buf, recs)
	if err != nil {
		t.Fatalf("WriteSolutions: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
	want := "# ===== Solution 1 =====\na = 1\n\n# ===== Solution 2 =====\nb = 2\n\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}
