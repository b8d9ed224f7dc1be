// Package records loads practice records from JSON or YAML task files and
// indexes them by ID.
package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/me/drill/pkg/model"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no record has the requested ID.
var ErrNotFound = errors.New("record not found")

// ErrZeroID is returned by NewSet for a record whose ID is 0. Sessions and
// filters use 0 for "no record".
var ErrZeroID = errors.New("record id 0 is reserved")

// Load reads a record file. Files ending in .yaml or .yml are parsed as a
// YAML list; anything else as a JSON array.
func Load(path string) ([]model.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	if isYAML(path) {
		return decodeYAML(data)
	}
	return decodeJSON(data)
}

// LoadDir reads every .json, .yaml and .yml file in dir, in name order, and
// concatenates their records.
func LoadDir(dir string) ([]model.Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read records dir: %w", err)
	}
	var all []model.Record
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		recs, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		all = append(all, recs...)
	}
	return all, nil
}

// LoadPath loads a single file or, when path is a directory, every record
// file inside it.
func LoadPath(path string) ([]model.Record, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	return Load(path)
}

func decodeJSON(data []byte) ([]model.Record, error) {
	var recs []model.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("JSON parse error: %w", err)
	}
	return recs, nil
}

// decodeYAML goes through the JSON decoder so both formats share the
// check_variable handling in model.Record.
func decodeYAML(data []byte) ([]model.Record, error) {
	var raw []any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	return decodeJSON(buf)
}

// Save writes records to path as indented JSON, or as YAML when the
// extension asks for it. Non-ASCII text is written as-is.
func Save(path string, recs []model.Record) error {
	data, err := encodeJSON(recs)
	if err != nil {
		return err
	}
	if isYAML(path) {
		var raw []any
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("encode records: %w", err)
		}
		if data, err = yaml.Marshal(raw); err != nil {
			return fmt.Errorf("encode records: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}

func encodeJSON(recs []model.Record) ([]byte, error) {
	if recs == nil {
		recs = []model.Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(recs); err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	return buf.Bytes(), nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Set is an immutable, ID-indexed collection of records.
type Set struct {
	ordered []model.Record
	byID    map[int]int // id -> index into ordered
}

// NewSet indexes recs. Duplicate IDs and ID 0 are errors.
func NewSet(recs []model.Record) (*Set, error) {
	s := &Set{
		ordered: make([]model.Record, len(recs)),
		byID:    make(map[int]int, len(recs)),
	}
	copy(s.ordered, recs)
	for i, r := range s.ordered {
		if r.ID == 0 {
			return nil, fmt.Errorf("%w (position %d, category %q)", ErrZeroID, i, r.Category)
		}
		if prev, ok := s.byID[r.ID]; ok {
			return nil, fmt.Errorf("duplicate record id %d (positions %d and %d)", r.ID, prev, i)
		}
		s.byID[r.ID] = i
	}
	return s, nil
}

// Len returns the number of records.
func (s *Set) Len() int { return len(s.ordered) }

// Get returns the record with the given ID.
func (s *Set) Get(id int) (model.Record, error) {
	i, ok := s.byID[id]
	if !ok {
		return model.Record{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return s.ordered[i], nil
}

// All returns every record in file order. The slice is a copy.
func (s *Set) All() []model.Record {
	out := make([]model.Record, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Categories returns the distinct categories, sorted.
func (s *Set) Categories() []string {
	seen := make(map[string]bool)
	var cats []string
	for _, r := range s.ordered {
		if r.Category == "" || seen[r.Category] {
			continue
		}
		seen[r.Category] = true
		cats = append(cats, r.Category)
	}
	sort.Strings(cats)
	return cats
}

// Filter narrows the candidate set. Zero values match everything.
type Filter struct {
	Category string
	ID       int // pin a single record
}

// Filter returns the matching records in file order.
func (s *Set) Filter(f Filter) []model.Record {
	if f.ID != 0 {
		r, err := s.Get(f.ID)
		if err != nil || (f.Category != "" && r.Category != f.Category) {
			return nil
		}
		return []model.Record{r}
	}
	if f.Category == "" {
		return s.All()
	}
	var out []model.Record
	for _, r := range s.ordered {
		if r.Category == f.Category {
			out = append(out, r)
		}
	}
	return out
}
