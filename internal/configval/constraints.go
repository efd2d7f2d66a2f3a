package configval

import (
	"fmt"
	"strings"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
)

// Custom constraint operators.
const (
	opExists   = "exists"
	opEquals   = "equals"
	opContains = "contains"
)

// checkCustomConstraints evaluates caller-supplied three-part expressions
// of the form "path operator [value]". Expressions that cannot be parsed
// are treated as passed (they cannot be evaluated, which is not a failure)
// and produce no finding.
func (e *Engine) checkCustomConstraints(expressions []string, w *walkResult) ([]contracts.Finding, []contracts.ConstraintResult) {
	var findings []contracts.Finding
	var results []contracts.ConstraintResult

	for i, expr := range expressions {
		id := fmt.Sprintf("custom_%d", i+1)
		path, op, operand, ok := parseConstraint(expr)
		if !ok {
			results = append(results, contracts.ConstraintResult{
				ConstraintID: id,
				Passed:       true,
				PathsChecked: []string{},
			})
			continue
		}

		passed := evalConstraint(w, path, op, operand)
		results = append(results, contracts.ConstraintResult{
			ConstraintID: id,
			Passed:       passed,
			PathsChecked: []string{strings.TrimPrefix(path, "$.")},
		})

		if !passed {
			f := newFinding(contracts.CategoryConstraint, contracts.SeverityWarning,
				strings.TrimPrefix(path, "$."),
				fmt.Sprintf("custom constraint failed: %s", expr))
			findings = append(findings, f)
		}
	}
	return findings, results
}

// parseConstraint splits "path op [value]"; exists takes no operand, the
// other operators require one.
func parseConstraint(expr string) (path, op, operand string, ok bool) {
	fields := strings.Fields(strings.TrimSpace(expr))
	if len(fields) < 2 {
		return "", "", "", false
	}
	path, op = fields[0], strings.ToLower(fields[1])
	switch op {
	case opExists:
		return path, op, "", len(fields) == 2
	case opEquals, opContains:
		if len(fields) < 3 {
			return "", "", "", false
		}
		return path, op, strings.Join(fields[2:], " "), true
	default:
		return "", "", "", false
	}
}

func evalConstraint(w *walkResult, path, op, operand string) bool {
	ent, found := w.lookup(path)
	switch op {
	case opExists:
		return found
	case opEquals:
		if !found {
			return false
		}
		return fmt.Sprintf("%v", ent.value) == operand
	case opContains:
		if !found {
			return false
		}
		s, isString := ent.value.(string)
		if !isString {
			return false
		}
		return strings.Contains(s, operand)
	default:
		return true
	}
}
