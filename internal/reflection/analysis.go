package reflection

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/agent"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
)

// Assessment thresholds.
const (
	// A dimension below this grade counts as a weakness.
	weakDimensionGrade = 0.8

	// A weakness shared by more than this share of the batch becomes a
	// quality signal.
	recurringWeaknessShare = 0.5

	// Per-agent mean confidence below this becomes a learning signal.
	lowConfidenceMean = 0.5

	// Standard deviations from the batch mean before a record is an
	// outlier.
	outlierSigma = 2.0

	inputHashHexLen = 64
)

// assessRecord grades one historical record. The record is only read.
func assessRecord(rec *contracts.DecisionRecord) RecordAssessment {
	view, viewed := viewOutput(rec.Output)

	assessment := RecordAssessment{
		RecordID:       rec.RecordID,
		AgentID:        rec.AgentID,
		FindingCount:   len(view.Findings),
		OutcomeSummary: summarize(rec, view, viewed),
		DeviationNotes: []string{},
	}

	assessment.Quality.Completeness = completenessOf(rec)
	assessment.Quality.Consistency, assessment.DeviationNotes = consistencyOf(rec, view, viewed)
	assessment.Quality.ConstraintConformance = conformanceOf(rec)
	assessment.Quality.Overall = (assessment.Quality.Completeness +
		assessment.Quality.Consistency +
		assessment.Quality.ConstraintConformance) / 3

	return assessment
}

// completenessOf is the populated share of the record's required fields.
func completenessOf(rec *contracts.DecisionRecord) float64 {
	checks := []bool{
		rec.RecordID != "",
		rec.AgentID != "",
		rec.AgentVersion != "",
		rec.DecisionType != "",
		len(rec.InputHash) == inputHashHexLen,
		rec.Output != nil,
		len(rec.ConstraintsApplied) > 0,
		rec.ExecutionRef != "",
		!rec.CreatedAt.IsZero(),
	}
	populated := 0
	for _, ok := range checks {
		if ok {
			populated++
		}
	}
	return float64(populated) / float64(len(checks))
}

// consistencyOf checks the record's internal coherence and collects a
// deviation note per violated expectation.
func consistencyOf(rec *contracts.DecisionRecord, view outputView, viewed bool) (float64, []string) {
	notes := []string{}

	if rec.Confidence < 0 || rec.Confidence > 1 {
		notes = append(notes, fmt.Sprintf("confidence %v is outside [0,1]", rec.Confidence))
	}
	if rec.CreatedAt.After(time.Now().Add(time.Minute)) {
		notes = append(notes, "createdAt lies in the future")
	}
	if viewed && view.Valid != nil && *view.Valid {
		for _, f := range view.Findings {
			if f.Severity.Rank() >= contracts.SeverityError.Rank() {
				notes = append(notes, fmt.Sprintf("output claims validity despite %s finding at %s", f.Severity, f.Path))
				break
			}
		}
	}
	if viewed && view.Readiness != nil {
		if view.Readiness.Status == contracts.ReadinessReady && len(view.Findings) > 0 {
			hasProblem := false
			for _, f := range view.Findings {
				if f.Severity.Rank() >= contracts.SeverityWarning.Rank() {
					hasProblem = true
					break
				}
			}
			if hasProblem {
				notes = append(notes, "readiness is ready despite warning-or-worse findings")
			}
		}
	}

	// Four coherence expectations; each violation costs an equal share.
	score := 1.0 - float64(len(notes))/4
	if score < 0 {
		score = 0
	}
	return score, notes
}

// conformanceOf is the share of the non-authority constraints the record
// declares.
func conformanceOf(rec *contracts.DecisionRecord) float64 {
	declared := map[string]bool{}
	for _, c := range rec.ConstraintsApplied {
		declared[c] = true
	}
	present := 0
	for _, c := range agent.NonAuthorityConstraints {
		if declared[c] {
			present++
		}
	}
	return float64(present) / float64(len(agent.NonAuthorityConstraints))
}

func computeStats(records []contracts.DecisionRecord, assessments []RecordAssessment) BatchStats {
	stats := BatchStats{RecordCount: len(records)}

	agents := map[string]bool{}
	confidences := make([]float64, 0, len(records))
	findingCounts := make([]float64, 0, len(records))
	for i := range records {
		agents[records[i].AgentID] = true
		confidences = append(confidences, records[i].Confidence)
		findingCounts = append(findingCounts, float64(assessments[i].FindingCount))

		created := records[i].CreatedAt
		if stats.EarliestCreatedAt.IsZero() || created.Before(stats.EarliestCreatedAt) {
			stats.EarliestCreatedAt = created
		}
		if created.After(stats.LatestCreatedAt) {
			stats.LatestCreatedAt = created
		}
	}
	stats.AgentCount = len(agents)
	stats.MeanConfidence, stats.StdDevConfidence = meanStdDev(confidences)
	stats.MeanFindingCount, stats.StdDevFindingCount = meanStdDev(findingCounts)
	return stats
}

func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

// detectOutliers flags records whose confidence or finding count sits more
// than outlierSigma standard deviations from the batch mean.
func detectOutliers(records []contracts.DecisionRecord, assessments []RecordAssessment, stats BatchStats) []Outlier {
	var outliers []Outlier
	for i := range records {
		if stats.StdDevConfidence > 0 {
			if math.Abs(records[i].Confidence-stats.MeanConfidence) > outlierSigma*stats.StdDevConfidence {
				outliers = append(outliers, Outlier{
					RecordID:    records[i].RecordID,
					Dimension:   "confidence",
					Value:       records[i].Confidence,
					BatchMean:   stats.MeanConfidence,
					BatchStdDev: stats.StdDevConfidence,
				})
			}
		}
		if stats.StdDevFindingCount > 0 {
			count := float64(assessments[i].FindingCount)
			if math.Abs(count-stats.MeanFindingCount) > outlierSigma*stats.StdDevFindingCount {
				outliers = append(outliers, Outlier{
					RecordID:    records[i].RecordID,
					Dimension:   "finding_count",
					Value:       count,
					BatchMean:   stats.MeanFindingCount,
					BatchStdDev: stats.StdDevFindingCount,
				})
			}
		}
	}
	return outliers
}

// qualitySignals reports weaknesses that recur across the batch.
func qualitySignals(assessments []RecordAssessment) []string {
	weak := map[string]int{}
	for _, a := range assessments {
		if a.Quality.Completeness < weakDimensionGrade {
			weak["completeness"]++
		}
		if a.Quality.Consistency < weakDimensionGrade {
			weak["consistency"]++
		}
		if a.Quality.ConstraintConformance < weakDimensionGrade {
			weak["constraint conformance"]++
		}
	}

	threshold := recurringWeaknessShare * float64(len(assessments))
	var signals []string
	for dimension, count := range weak {
		if float64(count) > threshold {
			signals = append(signals, fmt.Sprintf("recurring weakness: %s is below %.2f in %d of %d records",
				dimension, weakDimensionGrade, count, len(assessments)))
		}
	}
	sort.Strings(signals)
	if signals == nil {
		signals = []string{}
	}
	return signals
}

// learningSignals reports per-agent patterns that suggest systemic issues
// rather than one-off bad records.
func learningSignals(records []contracts.DecisionRecord, assessments []RecordAssessment) []string {
	type agentAccum struct {
		confidenceSum float64
		count         int
		deviations    int
	}
	byAgent := map[string]*agentAccum{}
	for i := range records {
		acc := byAgent[records[i].AgentID]
		if acc == nil {
			acc = &agentAccum{}
			byAgent[records[i].AgentID] = acc
		}
		acc.confidenceSum += records[i].Confidence
		acc.count++
		acc.deviations += len(assessments[i].DeviationNotes)
	}

	var signals []string
	for agentID, acc := range byAgent {
		mean := acc.confidenceSum / float64(acc.count)
		if mean < lowConfidenceMean {
			signals = append(signals, fmt.Sprintf("agent %s averages confidence %.2f across %d records",
				agentID, mean, acc.count))
		}
		if acc.count > 1 && acc.deviations >= acc.count {
			signals = append(signals, fmt.Sprintf("agent %s produced %d deviation notes across %d records",
				agentID, acc.deviations, acc.count))
		}
	}
	sort.Strings(signals)
	if signals == nil {
		signals = []string{}
	}
	return signals
}

// correlations surfaces finding categories that repeat across records.
func correlations(records []contracts.DecisionRecord) []Correlation {
	byCategory := map[contracts.FindingCategory][]string{}
	for i := range records {
		view, ok := viewOutput(records[i].Output)
		if !ok {
			continue
		}
		seen := map[contracts.FindingCategory]bool{}
		for _, f := range view.Findings {
			if seen[f.Category] {
				continue
			}
			seen[f.Category] = true
			byCategory[f.Category] = append(byCategory[f.Category], records[i].RecordID)
		}
	}

	var result []Correlation
	for category, ids := range byCategory {
		if len(ids) < 2 {
			continue
		}
		result = append(result, Correlation{
			Kind:      "recurring_category",
			Detail:    fmt.Sprintf("finding category %q appears in %d records", category, len(ids)),
			RecordIDs: ids,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return strings.Compare(result[i].Detail, result[j].Detail) < 0
	})
	if result == nil {
		result = []Correlation{}
	}
	return result
}
