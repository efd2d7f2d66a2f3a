package configval

import (
	"fmt"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
)

// checkConflicts evaluates the fixed table of mutually exclusive path
// pairs: both present and enabled is an error naming both paths.
func (e *Engine) checkConflicts(w *walkResult) ([]contracts.Finding, contracts.ConstraintResult) {
	result := contracts.ConstraintResult{ConstraintID: "conflict_free", Passed: true, PathsChecked: []string{}}
	var findings []contracts.Finding

	for _, pair := range e.tables.ConflictPairs {
		a, okA := w.lookup(pair.A)
		b, okB := w.lookup(pair.B)
		if !okA || !okB {
			continue
		}
		result.PathsChecked = append(result.PathsChecked, pair.A, pair.B)
		if truthy(a.value) && truthy(b.value) {
			f := newFinding(contracts.CategoryConflict, contracts.SeverityError, pair.A,
				fmt.Sprintf("conflicts with %s: %s", pair.B, pair.Reason))
			f.RelatedPaths = []string{pair.B}
			findings = append(findings, f)
		}
	}

	if len(findings) > 0 {
		result.Passed = false
	}
	return findings, result
}

// checkMissing evaluates the fixed table of commonly required and
// recommended paths; absences are reported but never defaulted.
func (e *Engine) checkMissing(w *walkResult) ([]contracts.Finding, contracts.ConstraintResult, []string) {
	result := contracts.ConstraintResult{ConstraintID: "required_configuration", Passed: true, PathsChecked: []string{}}
	var findings []contracts.Finding
	var missing []string

	for _, path := range e.tables.RequiredPaths {
		result.PathsChecked = append(result.PathsChecked, path)
		if _, ok := w.lookup(path); !ok {
			missing = append(missing, path)
			f := newFinding(contracts.CategoryMissing, contracts.SeverityError, path,
				fmt.Sprintf("commonly required configuration %q is absent", path))
			findings = append(findings, f)
		}
	}
	for _, path := range e.tables.RecommendedPaths {
		result.PathsChecked = append(result.PathsChecked, path)
		if _, ok := w.lookup(path); !ok {
			missing = append(missing, path)
			f := newFinding(contracts.CategoryMissing, contracts.SeverityWarning, path,
				fmt.Sprintf("recommended configuration %q is absent", path))
			findings = append(findings, f)
		}
	}

	for _, f := range findings {
		if f.Severity.Rank() >= contracts.SeverityError.Rank() {
			result.Passed = false
			break
		}
	}
	return findings, result, missing
}
