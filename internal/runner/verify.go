package runner

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/me/drill/pkg/model"
)

// binding is a variable read back from a finished run.
type binding struct {
	value any
	found bool
}

// evaluate fills res.Checks and res.Passed. Checks are skipped when the
// code raised, matching what a learner sees in an interactive session.
func evaluate(res *Result, checks model.Checks, vars map[string]binding) {
	if res.Error != "" {
		res.Passed = false
		return
	}
	if checks.Empty() {
		res.NoChecks = true
		res.Passed = true
		return
	}

	passed := true
	for _, vc := range checks.Variables {
		cr := checkVariable(vc, vars[vc.Name])
		passed = passed && cr.Passed
		res.Checks = append(res.Checks, cr)
	}
	if checks.Output != nil {
		cr := checkOutput(*checks.Output, res.Stdout)
		passed = passed && cr.Passed
		res.Checks = append(res.Checks, cr)
	}
	res.Passed = passed
}

func checkVariable(vc model.VariableCheck, b binding) CheckResult {
	cr := CheckResult{Name: vc.Name, Expected: vc.Expected, Found: b.found}
	if b.found {
		cr.Actual = normalize(b.value)
	}
	cr.Passed = b.found && Equal(cr.Actual, vc.Expected)

	switch {
	case cr.Passed:
		cr.Message = fmt.Sprintf("`%s` = %s", vc.Name, show(vc.Expected))
	case !b.found:
		cr.Message = fmt.Sprintf("`%s` not found", vc.Name)
	default:
		cr.Message = fmt.Sprintf("`%s` = %s (expected %s)", vc.Name, show(cr.Actual), show(vc.Expected))
	}
	return cr
}

func checkOutput(want, got string) CheckResult {
	cr := CheckResult{Name: "output", Expected: want, Actual: got, Found: true, Passed: got == want}
	if cr.Passed {
		cr.Message = "printed output is correct"
	} else {
		cr.Message = fmt.Sprintf("printed output was `%s` (expected `%s`)", strings.TrimSpace(got), strings.TrimSpace(want))
	}
	return cr
}

// Equal compares two values after JSON normalisation, so 3 and 3.0 are
// equal and tuples compare like lists.
func Equal(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

// normalize round-trips v through JSON. Values that cannot be encoded are
// compared by their printed form.
func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Sprint(v)
	}
	return out
}

func show(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
