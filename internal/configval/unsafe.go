package configval

import (
	"fmt"
	"strings"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
)

// Concern types attached to unsafe findings.
const (
	ConcernHardcodedSecret   = "hardcoded_secret"
	ConcernDebugInProduction = "debug_in_production"
	ConcernPlaintextHTTP     = "plaintext_http"
	ConcernPermissiveCORS    = "permissive_cors"
)

// A secret-like value shorter than this is assumed to be a placeholder.
const minSecretLength = 5

// checkUnsafe flags configuration values that look dangerous: hardcoded
// credentials, debug flags in production, plaintext HTTP endpoints and
// wildcard CORS settings.
func (e *Engine) checkUnsafe(environment string, w *walkResult) ([]contracts.Finding, contracts.ConstraintResult) {
	result := contracts.ConstraintResult{ConstraintID: "unsafe_configuration", Passed: true, PathsChecked: []string{}}
	var findings []contracts.Finding
	production := strings.EqualFold(environment, "production") || strings.EqualFold(environment, "prod")

	for _, ent := range w.entries {
		if !ent.leaf {
			continue
		}

		if e.secretLikeKey(ent.key) {
			result.PathsChecked = append(result.PathsChecked, ent.path)
			if s, ok := ent.value.(string); ok && len(s) > minSecretLength && !isSecretReference(s) {
				f := newFinding(contracts.CategoryUnsafe, contracts.SeverityCritical, ent.path,
					"value appears to be a hardcoded secret; use an environment variable or secret manager reference")
				f.ConcernType = ConcernHardcodedSecret
				findings = append(findings, f)
			}
		}

		if strings.Contains(ent.key, "debug") && truthy(ent.value) && production {
			result.PathsChecked = append(result.PathsChecked, ent.path)
			f := newFinding(contracts.CategoryUnsafe, contracts.SeverityError, ent.path,
				"debug flag is enabled while the declared environment is production")
			f.ConcernType = ConcernDebugInProduction
			findings = append(findings, f)
		}

		if strings.Contains(ent.key, "url") || strings.Contains(ent.key, "endpoint") {
			if s, ok := ent.value.(string); ok && strings.HasPrefix(s, "http://") && !isLocalhost(s) {
				result.PathsChecked = append(result.PathsChecked, ent.path)
				f := newFinding(contracts.CategoryUnsafe, contracts.SeverityWarning, ent.path,
					"endpoint uses plaintext HTTP")
				f.ActualValue = s
				f.ConcernType = ConcernPlaintextHTTP
				findings = append(findings, f)
			}
		}

		if strings.Contains(strings.ToLower(ent.path), "cors") {
			if s, ok := ent.value.(string); (ok && s == "*") || ent.value == true {
				result.PathsChecked = append(result.PathsChecked, ent.path)
				f := newFinding(contracts.CategoryUnsafe, contracts.SeverityWarning, ent.path,
					fmt.Sprintf("CORS setting %v allows any origin", ent.value))
				f.ConcernType = ConcernPermissiveCORS
				findings = append(findings, f)
			}
		}
	}

	if len(findings) > 0 {
		result.Passed = false
	}
	return findings, result
}

func (e *Engine) secretLikeKey(key string) bool {
	for _, term := range e.tables.SecretKeyTerms {
		if strings.Contains(key, term) {
			return true
		}
	}
	return false
}

// isSecretReference reports whether a value points at a secret instead of
// containing one: env-var references and common placeholders.
func isSecretReference(s string) bool {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "${") || strings.HasPrefix(trimmed, "$") {
		return true
	}
	if strings.HasPrefix(trimmed, "env:") || strings.HasPrefix(trimmed, "vault:") || strings.HasPrefix(trimmed, "ENC(") {
		return true
	}
	if strings.HasPrefix(trimmed, "<") && strings.HasSuffix(trimmed, ">") {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, placeholder := range []string{"changeme", "change_me", "placeholder", "your-", "your_", "xxx", "todo"} {
		if strings.Contains(lower, placeholder) {
			return true
		}
	}
	return false
}

func isLocalhost(rawURL string) bool {
	return strings.Contains(rawURL, "//localhost") || strings.Contains(rawURL, "//127.0.0.1") || strings.Contains(rawURL, "//[::1]")
}
