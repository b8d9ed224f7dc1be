package model

import (
	"encoding/json"
	"fmt"
)

// Language identifiers for record code.
const (
	LanguagePython     = "python"
	LanguageJavaScript = "javascript"
)

// Record is one practice item. Records are immutable once loaded.
type Record struct {
	ID          int    `json:"id"`
	OriginalID  int    `json:"qid_original,omitempty"` // question number in its source file
	Category    string `json:"category,omitempty"`
	Prompt      string `json:"question"`
	Solution    string `json:"solution_code,omitempty"`
	Explanation string `json:"explanation,omitempty"` // markdown
	Language    string `json:"language,omitempty"`    // python when empty
	Checks      Checks `json:"-"`

	// RawPrompt marks a prompt written under question_raw, as extraction does.
	RawPrompt bool `json:"-"`
}

// Key returns the record ID; it lets the scheduler treat records as opaque keys.
func (r Record) Key() int { return r.ID }

// Lang returns the record language, defaulting to Python.
func (r Record) Lang() string {
	if r.Language == "" {
		return LanguagePython
	}
	return r.Language
}

// VariableCheck compares a variable left behind by learner code with an expected value.
type VariableCheck struct {
	Name     string `json:"name"`
	Expected any    `json:"expected"`
}

// Checks holds everything the verifier compares after running learner code.
type Checks struct {
	Variables []VariableCheck `json:"variables,omitempty"`
	Output    *string         `json:"output,omitempty"` // exact stdout, when set

	// scalar records that the source used the single-variable form
	// ("check_variable": "x"), so it can be written back the same way.
	scalar bool
}

// Empty reports whether no checks are defined.
func (c Checks) Empty() bool {
	return len(c.Variables) == 0 && c.Output == nil
}

// recordWire mirrors the on-disk task format, where check_variable is either a
// string or a list and expected_value is a value or a parallel list.
type recordWire struct {
	ID             int             `json:"id"`
	OriginalID     int             `json:"qid_original,omitempty"`
	Category       string          `json:"category,omitempty"`
	Prompt         string          `json:"question,omitempty"`
	PromptRaw      string          `json:"question_raw,omitempty"`
	Solution       string          `json:"solution_code,omitempty"`
	Explanation    string          `json:"explanation,omitempty"`
	Language       string          `json:"language,omitempty"`
	CheckVariable  json.RawMessage `json:"check_variable,omitempty"`
	ExpectedValue  json.RawMessage `json:"expected_value,omitempty"`
	ExpectedOutput *string         `json:"expected_output,omitempty"`
}

// UnmarshalJSON accepts the task file format.
func (r *Record) UnmarshalJSON(data []byte) error {
	var w recordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Record{
		ID:          w.ID,
		OriginalID:  w.OriginalID,
		Category:    w.Category,
		Prompt:      w.Prompt,
		Solution:    w.Solution,
		Explanation: w.Explanation,
		Language:    w.Language,
	}
	// Freshly extracted records only carry the raw question text.
	if r.Prompt == "" && w.PromptRaw != "" {
		r.Prompt = w.PromptRaw
		r.RawPrompt = true
	}

	checks, err := decodeChecks(w.CheckVariable, w.ExpectedValue)
	if err != nil {
		return fmt.Errorf("record %d: %w", w.ID, err)
	}
	checks.Output = w.ExpectedOutput
	r.Checks = checks
	return nil
}

// MarshalJSON writes the task file format.
func (r Record) MarshalJSON() ([]byte, error) {
	w := recordWire{
		ID:             r.ID,
		OriginalID:     r.OriginalID,
		Category:       r.Category,
		Solution:       r.Solution,
		Explanation:    r.Explanation,
		Language:       r.Language,
		ExpectedOutput: r.Checks.Output,
	}
	if r.RawPrompt {
		w.PromptRaw = r.Prompt
	} else {
		w.Prompt = r.Prompt
	}

	vars := r.Checks.Variables
	switch {
	case len(vars) == 1 && r.Checks.scalar:
		name, _ := json.Marshal(vars[0].Name)
		val, err := json.Marshal(vars[0].Expected)
		if err != nil {
			return nil, fmt.Errorf("record %d: expected_value: %w", r.ID, err)
		}
		w.CheckVariable, w.ExpectedValue = name, val
	case len(vars) > 0:
		names := make([]string, len(vars))
		values := make([]any, len(vars))
		for i, v := range vars {
			names[i], values[i] = v.Name, v.Expected
		}
		var err error
		if w.CheckVariable, err = json.Marshal(names); err != nil {
			return nil, err
		}
		if w.ExpectedValue, err = json.Marshal(values); err != nil {
			return nil, fmt.Errorf("record %d: expected_value: %w", r.ID, err)
		}
	}
	return json.Marshal(w)
}

func decodeChecks(rawVars, rawValues json.RawMessage) (Checks, error) {
	var c Checks
	if len(rawVars) == 0 || string(rawVars) == "null" {
		return c, nil
	}

	var single string
	if err := json.Unmarshal(rawVars, &single); err == nil {
		var expected any
		if len(rawValues) > 0 {
			if err := json.Unmarshal(rawValues, &expected); err != nil {
				return c, fmt.Errorf("expected_value: %w", err)
			}
		}
		c.Variables = []VariableCheck{{Name: single, Expected: expected}}
		c.scalar = true
		return c, nil
	}

	var names []string
	if err := json.Unmarshal(rawVars, &names); err != nil {
		return c, fmt.Errorf("check_variable must be a string or a list of strings: %w", err)
	}
	var values []any
	if len(rawValues) > 0 && string(rawValues) != "null" {
		if err := json.Unmarshal(rawValues, &values); err != nil {
			return c, fmt.Errorf("expected_value must be a list when check_variable is a list: %w", err)
		}
	}
	// Pairs beyond the shorter list are ignored.
	for i := 0; i < len(names) && i < len(values); i++ {
		c.Variables = append(c.Variables, VariableCheck{Name: names[i], Expected: values[i]})
	}
	return c, nil
}
