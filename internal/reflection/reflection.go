// package reflection is the meta-analysis engine: it consumes batches of
// prior decision records and produces quality and learning signals about
// them. It reads history, it never rewrites it.
package reflection

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/agent"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
)

const (
	AgentID      = "reflection-agent"
	AgentVersion = "1.0.0"
)

// Input is one reflection batch.
type Input struct {
	Records []contracts.DecisionRecord `json:"records"`
}

// QualityScores grades one record along the fixed assessment dimensions,
// each in [0,1].
type QualityScores struct {
	Completeness          float64 `json:"completeness"`
	Consistency           float64 `json:"consistency"`
	ConstraintConformance float64 `json:"constraintConformance"`
	Overall               float64 `json:"overall"`
}

// RecordAssessment is the per-record portion of the reflection output.
type RecordAssessment struct {
	RecordID       string        `json:"recordId"`
	AgentID        string        `json:"agentId"`
	Quality        QualityScores `json:"quality"`
	FindingCount   int           `json:"findingCount"`
	OutcomeSummary string        `json:"outcomeSummary"`
	DeviationNotes []string      `json:"deviationNotes"`
}

// Outlier marks a record whose confidence or finding count diverges
// sharply from the batch average.
type Outlier struct {
	RecordID    string  `json:"recordId"`
	Dimension   string  `json:"dimension"` // confidence | finding_count
	Value       float64 `json:"value"`
	BatchMean   float64 `json:"batchMean"`
	BatchStdDev float64 `json:"batchStdDev"`
}

// Correlation names a pattern observed across several records.
type Correlation struct {
	Kind      string   `json:"kind"`
	Detail    string   `json:"detail"`
	RecordIDs []string `json:"recordIds"`
}

// BatchStats is the summary-statistics block of the reflection output.
type BatchStats struct {
	RecordCount        int       `json:"recordCount"`
	AgentCount         int       `json:"agentCount"`
	MeanConfidence     float64   `json:"meanConfidence"`
	StdDevConfidence   float64   `json:"stdDevConfidence"`
	MeanFindingCount   float64   `json:"meanFindingCount"`
	StdDevFindingCount float64   `json:"stdDevFindingCount"`
	EarliestCreatedAt  time.Time `json:"earliestCreatedAt"`
	LatestCreatedAt    time.Time `json:"latestCreatedAt"`
}

// Output is the batch analysis recorded as the decision output.
type Output struct {
	Assessments    []RecordAssessment `json:"assessments"`
	QualitySignals []string           `json:"qualitySignals"`
	LearnSignals   []string           `json:"learningSignals"`
	Outliers       []Outlier          `json:"outliers"`
	Correlations   []Correlation      `json:"correlations"`
	Stats          BatchStats         `json:"stats"`
}

// Engine implements the agent execution contract for reflection. It is
// stateless; every invocation is a pure function of its batch.
type Engine struct {
	minBatch int
}

// EngineConfig tunes the engine at construction time.
type EngineConfig struct {
	// MinBatchSize is the smallest batch considered statistically
	// meaningful. Defaults to 3; smaller batches still run but are
	// scored with reduced confidence and skip outlier detection.
	MinBatchSize int
}

func NewEngine(cfg EngineConfig) *Engine {
	minBatch := cfg.MinBatchSize
	if minBatch <= 0 {
		minBatch = 3
	}
	return &Engine{minBatch: minBatch}
}

func (e *Engine) ID() string      { return AgentID }
func (e *Engine) Version() string { return AgentVersion }

func (e *Engine) DecisionType() contracts.DecisionType {
	return contracts.DecisionTypeReflectionAnalysis
}

// Validate decodes the batch and rejects empty or structurally broken
// records up front.
func (e *Engine) Validate(raw json.RawMessage) (interface{}, error) {
	if len(raw) == 0 {
		return nil, contracts.NewValidationError("empty input")
	}
	var in Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, contracts.NewValidationError("decode input: %v", err)
	}
	if len(in.Records) == 0 {
		return nil, contracts.NewValidationError("records batch is empty")
	}
	for i, rec := range in.Records {
		if rec.RecordID == "" {
			return nil, contracts.NewValidationError("records[%d]: missing recordId", i)
		}
		if rec.AgentID == "" {
			return nil, contracts.NewValidationError("records[%d] (%s): missing agentId", i, rec.RecordID)
		}
	}
	return in, nil
}

// Analyze assesses each record and derives the batch-level signals. The
// input records are read, never modified.
func (e *Engine) Analyze(input interface{}) (interface{}, error) {
	in, ok := input.(Input)
	if !ok {
		return nil, contracts.NewProcessingError("unexpected input type %T", input)
	}

	assessments := make([]RecordAssessment, 0, len(in.Records))
	for i := range in.Records {
		assessments = append(assessments, assessRecord(&in.Records[i]))
	}

	stats := computeStats(in.Records, assessments)

	out := Output{
		Assessments:    assessments,
		QualitySignals: qualitySignals(assessments),
		LearnSignals:   learningSignals(in.Records, assessments),
		Correlations:   correlations(in.Records),
		Stats:          stats,
	}
	if len(in.Records) >= e.minBatch {
		out.Outliers = detectOutliers(in.Records, assessments, stats)
	}
	if out.Outliers == nil {
		out.Outliers = []Outlier{}
	}
	return out, nil
}

// Score derives the reflection's own confidence from the batch size and
// the health of the records it examined.
func (e *Engine) Score(output interface{}) float64 {
	out, ok := output.(Output)
	if !ok {
		return 0
	}
	confidence := reflectionBase
	growth := reflectionPerRecordBonus * float64(out.Stats.RecordCount)
	if growth > reflectionBatchBonusCap {
		growth = reflectionBatchBonusCap
	}
	confidence += growth
	if out.Stats.RecordCount < e.minBatch {
		confidence -= reflectionSmallBatchPenalty
	}
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// Constraints names the policies every reflection run operates under.
func (e *Engine) Constraints(input interface{}) []string {
	return []string{
		"read_only_history",
		"no_record_mutation",
		"statistical_outlier_detection",
	}
}

// Reflection confidence heuristic: tunable constants, not derived values.
const (
	reflectionBase              = 0.6
	reflectionPerRecordBonus    = 0.02
	reflectionBatchBonusCap     = 0.3
	reflectionSmallBatchPenalty = 0.2
)

// outputView is the subset of a record's output the assessment reads. It
// tolerates both typed outputs and generic maps decoded from the wire.
type outputView struct {
	Valid     *bool               `json:"valid"`
	Findings  []contracts.Finding `json:"findings"`
	Readiness *struct {
		Status contracts.ReadinessStatus `json:"status"`
		Score  float64                   `json:"score"`
	} `json:"readiness"`
}

func viewOutput(output interface{}) (outputView, bool) {
	if output == nil {
		return outputView{}, false
	}
	raw, err := json.Marshal(output)
	if err != nil {
		return outputView{}, false
	}
	var view outputView
	if err := json.Unmarshal(raw, &view); err != nil {
		return outputView{}, false
	}
	return view, true
}

func summarize(rec *contracts.DecisionRecord, view outputView, viewed bool) string {
	if !viewed {
		return fmt.Sprintf("%s decision by %s with confidence %.2f", rec.DecisionType, rec.AgentID, rec.Confidence)
	}
	verdict := "no validity verdict"
	if view.Valid != nil {
		verdict = "valid"
		if !*view.Valid {
			verdict = "invalid"
		}
	}
	return fmt.Sprintf("%s decision by %s: %s, %d findings, confidence %.2f",
		rec.DecisionType, rec.AgentID, verdict, len(view.Findings), rec.Confidence)
}

var _ agent.Engine = (*Engine)(nil)
