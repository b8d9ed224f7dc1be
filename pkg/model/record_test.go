package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRecord_UnmarshalScalarCheck(t *testing.T) {
	data := `{"id": 3, "qid_original": 7, "category": "Strings", "question": "Reverse s",
		"solution_code": "r = s[::-1]", "explanation": "Slicing.",
		"check_variable": "r", "expected_value": "olleh"}`

	var r Record
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.ID != 3 || r.OriginalID != 7 || r.Category != "Strings" {
		t.Errorf("identity fields = %d/%d/%q", r.ID, r.OriginalID, r.Category)
	}
	if len(r.Checks.Variables) != 1 {
		t.Fatalf("variables = %d, want 1", len(r.Checks.Variables))
	}
	if v := r.Checks.Variables[0]; v.Name != "r" || v.Expected != "olleh" {
		t.Errorf("check = %+v", v)
	}
	if r.Lang() != LanguagePython {
		t.Errorf("Lang() = %q, want python", r.Lang())
	}
}

func TestRecord_UnmarshalListChecks(t *testing.T) {
	data := `{"id": 4, "question": "q",
		"check_variable": ["a", "b", "c"], "expected_value": [1, [2, 3]],
		"expected_output": "done\n"}`

	var r Record
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// c has no expected value and is dropped.
	if len(r.Checks.Variables) != 2 {
		t.Fatalf("variables = %d, want 2", len(r.Checks.Variables))
	}
	if r.Checks.Variables[1].Name != "b" {
		t.Errorf("second check = %+v", r.Checks.Variables[1])
	}
	if r.Checks.Output == nil || *r.Checks.Output != "done\n" {
		t.Errorf("output check = %v", r.Checks.Output)
	}
}

func TestRecord_UnmarshalRejectsBadCheckVariable(t *testing.T) {
	var r Record
	err := json.Unmarshal([]byte(`{"id": 5, "question": "q", "check_variable": 12}`), &r)
	if err == nil || !strings.Contains(err.Error(), "record 5") {
		t.Fatalf("err = %v, want error naming record 5", err)
	}
}

func TestRecord_RawQuestionFallback(t *testing.T) {
	var r Record
	if err := json.Unmarshal([]byte(`{"id": 1, "question_raw": "What is a dict?"}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Prompt != "What is a dict?" || !r.RawPrompt {
		t.Errorf("Prompt = %q, RawPrompt = %v", r.Prompt, r.RawPrompt)
	}

	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"question_raw":"What is a dict?"`) || strings.Contains(string(out), `"question":`) {
		t.Errorf("raw prompt not written back as question_raw: %s", out)
	}
}

func TestRecord_MarshalKeepsCheckForm(t *testing.T) {
	for _, src := range []string{
		`{"id":1,"question":"q","check_variable":"x","expected_value":2}`,
		`{"id":1,"question":"q","check_variable":["x"],"expected_value":[2]}`,
	} {
		var r Record
		if err := json.Unmarshal([]byte(src), &r); err != nil {
			t.Fatalf("unmarshal %s: %v", src, err)
		}
		out, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(out) != src {
			t.Errorf("marshal = %s, want %s", out, src)
		}
	}
}

func TestChecks_Empty(t *testing.T) {
	if !(Checks{}).Empty() {
		t.Error("zero Checks should be empty")
	}
	out := ""
	if (Checks{Output: &out}).Empty() {
		t.Error("an output check, even of empty output, is a check")
	}
}
