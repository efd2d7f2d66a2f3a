package configval

import (
	"fmt"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
)

// checkSchema verifies required properties and declared types when a schema
// descriptor is supplied. Absence of a schema is informational, not a
// defect.
func (e *Engine) checkSchema(schema *Schema, w *walkResult) ([]contracts.Finding, contracts.ConstraintResult) {
	result := contracts.ConstraintResult{ConstraintID: "schema_conformance", Passed: true, PathsChecked: []string{}}

	if schema == nil {
		f := newFinding(contracts.CategorySchema, contracts.SeverityInfo, "",
			"no schema supplied; structural validation limited to built-in heuristics")
		return []contracts.Finding{f}, result
	}

	var findings []contracts.Finding

	for _, required := range schema.Required {
		result.PathsChecked = append(result.PathsChecked, required)
		if _, ok := w.lookup(required); !ok {
			f := newFinding(contracts.CategorySchema, contracts.SeverityError, required,
				fmt.Sprintf("required property %q is missing", required))
			f.Expected = "present"
			findings = append(findings, f)
		}
	}

	for path, prop := range schema.Properties {
		if prop.Type == "" {
			continue
		}
		ent, ok := w.lookup(path)
		if !ok {
			continue
		}
		result.PathsChecked = append(result.PathsChecked, path)
		if actual := jsonTypeOf(ent.value); !typeMatches(prop.Type, actual) {
			f := newFinding(contracts.CategoryTypeMismatch, contracts.SeverityError, path,
				fmt.Sprintf("expected type %s but found %s", prop.Type, actual))
			f.Expected = prop.Type
			f.ActualValue = ent.value
			findings = append(findings, f)
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

func jsonTypeOf(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64:
		if t == float64(int64(t)) {
			return "integer"
		}
		return "number"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func typeMatches(declared, actual string) bool {
	if declared == actual {
		return true
	}
	// Integers satisfy a declared number.
	return declared == "number" && actual == "integer"
}
