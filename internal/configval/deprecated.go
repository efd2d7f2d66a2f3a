package configval

import (
	"fmt"
	"strings"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
)

// checkDeprecated flags keys the caller explicitly declared deprecated and
// keys matching common legacy-terminology heuristics.
func (e *Engine) checkDeprecated(declaredDeprecated []string, w *walkResult) ([]contracts.Finding, contracts.ConstraintResult) {
	result := contracts.ConstraintResult{ConstraintID: "deprecated_usage", Passed: true, PathsChecked: []string{}}
	var findings []contracts.Finding

	declared := map[string]bool{}
	for _, p := range declaredDeprecated {
		declared[strings.TrimPrefix(p, "$.")] = true
	}

	for _, ent := range w.entries {
		if declared[ent.path] {
			result.PathsChecked = append(result.PathsChecked, ent.path)
			f := newFinding(contracts.CategoryDeprecated, contracts.SeverityWarning, ent.path,
				"key is declared deprecated by the caller")
			findings = append(findings, f)
			continue
		}

		for term, replacement := range e.tables.DeprecatedTerms {
			if strings.Contains(ent.key, term) {
				result.PathsChecked = append(result.PathsChecked, ent.path)
				f := newFinding(contracts.CategoryDeprecated, contracts.SeverityInfo, ent.path,
					fmt.Sprintf("key uses legacy terminology %q; consider %q", term, replacement))
				f.Expected = strings.Replace(ent.key, term, replacement, 1)
				findings = append(findings, f)
				break
			}
		}
	}

	for _, f := range findings {
		if f.Severity.Rank() > contracts.SeverityInfo.Rank() {
			result.Passed = false
			break
		}
	}
	return findings, result
}
