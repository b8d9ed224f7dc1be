package records

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/me/drill/pkg/model"
)

// Key selects which numbering an audit looks at.
type Key string

const (
	KeyID         Key = "id"
	KeyOriginalID Key = "qid_original"
)

// ParseKey validates an audit key name.
func ParseKey(s string) (Key, error) {
	switch k := Key(s); k {
	case KeyID, KeyOriginalID:
		return k, nil
	}
	return "", fmt.Errorf("unknown key %q (want id or qid_original)", s)
}

func (k Key) value(r model.Record) (int, bool) {
	if k == KeyOriginalID {
		return r.OriginalID, r.OriginalID != 0
	}
	return r.ID, true
}

// MissingIDs returns the gaps in the sorted key sequence. Records without
// a qid_original are ignored when auditing that key.
func MissingIDs(recs []model.Record, key Key) []int {
	var ids []int
	for _, r := range recs {
		if v, ok := key.value(r); ok {
			ids = append(ids, v)
		}
	}
	sort.Ints(ids)

	var missing []int
	for i := 1; i < len(ids); i++ {
		for v := ids[i-1] + 1; v < ids[i]; v++ {
			missing = append(missing, v)
		}
	}
	return missing
}

// Duplicate is a key that occurs more than once.
type Duplicate struct {
	Value int `json:"value"`
	Count int `json:"count"`
}

// DuplicateIDs returns every key value that appears more than once, in
// ascending order.
func DuplicateIDs(recs []model.Record, key Key) []Duplicate {
	counts := make(map[int]int)
	for _, r := range recs {
		if v, ok := key.value(r); ok {
			counts[v]++
		}
	}
	var dups []Duplicate
	for v, n := range counts {
		if n > 1 {
			dups = append(dups, Duplicate{Value: v, Count: n})
		}
	}
	sort.Slice(dups, func(i, j int) bool { return dups[i].Value < dups[j].Value })
	return dups
}

// Renumber sets every record's ID to its qid_original in place. Records
// without one keep their ID and are returned.
func Renumber(recs []model.Record) []model.Record {
	var skipped []model.Record
	for i := range recs {
		if recs[i].OriginalID == 0 {
			skipped = append(skipped, recs[i])
			continue
		}
		recs[i].ID = recs[i].OriginalID
	}
	return skipped
}

// WriteSolutions writes every non-empty solution under a numbered header
// and returns how many were written.
func WriteSolutions(w io.Writer, recs []model.Record) (int, error) {
	n := 0
	for _, r := range recs {
		if r.Solution == "" {
			continue
		}
		n++
		if _, err := fmt.Fprintf(w, "# ===== Solution %d =====\n%s\n\n", n, strings.TrimSpace(r.Solution)); err != nil {
			return n - 1, err
		}
	}
	return n, nil
}
