package configval

import (
	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
)

// Readiness scores per status. These values are tunable heuristics carried
// over from the platform's original scoring table, not statistically
// derived.
const (
	scoreReady             = 1.0
	scoreReadyWithWarnings = 0.7
	scoreNotReady          = 0.3
	scoreCriticalIssues    = 0.1

	// Per-category score handling: start at 1.0, subtract per
	// error-or-worse finding, floor at 0.
	categoryPenalty = 0.2
)

// Confidence heuristic constants.
const (
	confidenceBase            = 0.8
	confidenceSchemaBonus     = 0.1
	confidenceFindingsPenalty = 0.1
	confidenceCriticalPenalty = 0.2
	manyFindingsThreshold     = 10
)

// assessReadiness derives the deterministic readiness summary from one
// invocation's finding set.
func assessReadiness(findings []contracts.Finding) contracts.ReadinessAssessment {
	assessment := contracts.ReadinessAssessment{
		CategoryScores:  map[contracts.FindingCategory]float64{},
		BlockingIssues:  []string{},
		Warnings:        []string{},
		Recommendations: []string{},
	}

	var hasCritical, hasError, hasWarning bool
	for _, f := range findings {
		switch f.Severity {
		case contracts.SeverityCritical:
			hasCritical = true
			assessment.BlockingIssues = append(assessment.BlockingIssues, f.Path+": "+f.Message)
		case contracts.SeverityError:
			hasError = true
			assessment.BlockingIssues = append(assessment.BlockingIssues, f.Path+": "+f.Message)
		case contracts.SeverityWarning:
			hasWarning = true
			assessment.Warnings = append(assessment.Warnings, f.Path+": "+f.Message)
		}

		if f.Expected != nil {
			if suggestion, ok := f.Expected.(string); ok && f.Category == contracts.CategoryDeprecated {
				assessment.Recommendations = append(assessment.Recommendations, "rename "+f.Path+" to "+suggestion)
			}
		}

		if _, seen := assessment.CategoryScores[f.Category]; !seen {
			assessment.CategoryScores[f.Category] = 1.0
		}
		if f.Severity.Rank() >= contracts.SeverityError.Rank() {
			score := assessment.CategoryScores[f.Category] - categoryPenalty
			if score < 0 {
				score = 0
			}
			assessment.CategoryScores[f.Category] = score
		}
	}

	switch {
	case hasCritical:
		assessment.Status = contracts.ReadinessCriticalIssues
		assessment.Score = scoreCriticalIssues
	case hasError:
		assessment.Status = contracts.ReadinessNotReady
		assessment.Score = scoreNotReady
	case hasWarning:
		assessment.Status = contracts.ReadinessReadyWithWarnings
		assessment.Score = scoreReadyWithWarnings
	default:
		assessment.Status = contracts.ReadinessReady
		assessment.Score = scoreReady
	}
	return assessment
}

// computeValidity: non-strict mode tolerates warnings and info; strict mode
// tolerates info only.
func computeValidity(findings []contracts.Finding, strict bool) bool {
	threshold := contracts.SeverityError.Rank()
	if strict {
		threshold = contracts.SeverityWarning.Rank()
	}
	for _, f := range findings {
		if f.Severity.Rank() >= threshold {
			return false
		}
	}
	return true
}

// confidenceFor applies the documented heuristic: base 0.8, +0.1 when a
// schema informed the run, -0.1 when findings exceed the noise threshold,
// -0.2 when anything critical surfaced; clamped to [0,1].
func confidenceFor(out Output) float64 {
	confidence := confidenceBase
	if out.SchemaUsed {
		confidence += confidenceSchemaBonus
	}
	if len(out.Findings) > manyFindingsThreshold {
		confidence -= confidenceFindingsPenalty
	}
	for _, f := range out.Findings {
		if f.Severity == contracts.SeverityCritical {
			confidence -= confidenceCriticalPenalty
			break
		}
	}
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
