package configval

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
)

// Named thresholds for the built-in semantic heuristics.
const (
	portMin = 0
	portMax = 65535

	// timeouts are interpreted as milliseconds; anything above one hour is
	// suspicious enough to warn about.
	timeoutWarnMS = 3_600_000
)

var urlPattern = regexp.MustCompile(`^(https?|wss?|ftp)://[^\s]+$`)

// checkSemantics applies the schema-independent heuristics keyed off the
// final path segment: ports, URLs, timeouts and memory sizes.
func (e *Engine) checkSemantics(w *walkResult) ([]contracts.Finding, contracts.ConstraintResult) {
	result := contracts.ConstraintResult{ConstraintID: "semantic_heuristics", Passed: true, PathsChecked: []string{}}
	var findings []contracts.Finding

	for _, ent := range w.entries {
		if !ent.leaf {
			continue
		}

		switch {
		case strings.Contains(ent.key, "port"):
			result.PathsChecked = append(result.PathsChecked, ent.path)
			n, ok := asNumber(ent.value)
			if !ok || n < portMin || n > portMax || n != float64(int64(n)) {
				f := newFinding(contracts.CategorySemantic, contracts.SeverityError, ent.path,
					fmt.Sprintf("port value must be an integer in [%d, %d]", portMin, portMax))
				f.ActualValue = ent.value
				f.Expected = fmt.Sprintf("integer in [%d, %d]", portMin, portMax)
				findings = append(findings, f)
			}

		case strings.Contains(ent.key, "url") || strings.Contains(ent.key, "endpoint"):
			s, isString := ent.value.(string)
			if !isString {
				continue
			}
			result.PathsChecked = append(result.PathsChecked, ent.path)
			if !urlPattern.MatchString(s) {
				f := newFinding(contracts.CategorySemantic, contracts.SeverityWarning, ent.path,
					"value does not look like a URL")
				f.ActualValue = s
				findings = append(findings, f)
			}

		case strings.Contains(ent.key, "timeout"):
			n, ok := asNumber(ent.value)
			if !ok {
				continue
			}
			result.PathsChecked = append(result.PathsChecked, ent.path)
			if n < 0 {
				f := newFinding(contracts.CategorySemantic, contracts.SeverityError, ent.path,
					"timeout must not be negative")
				f.ActualValue = ent.value
				findings = append(findings, f)
			} else if n > timeoutWarnMS {
				f := newFinding(contracts.CategorySemantic, contracts.SeverityWarning, ent.path,
					"timeout exceeds one hour; verify the unit is milliseconds")
				f.ActualValue = ent.value
				findings = append(findings, f)
			}

		case strings.Contains(ent.key, "memory") || strings.Contains(ent.key, "heap"):
			n, ok := asNumber(ent.value)
			if !ok {
				continue
			}
			result.PathsChecked = append(result.PathsChecked, ent.path)
			if n < 0 {
				f := newFinding(contracts.CategorySemantic, contracts.SeverityError, ent.path,
					"memory size must not be negative")
				f.ActualValue = ent.value
				findings = append(findings, f)
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
