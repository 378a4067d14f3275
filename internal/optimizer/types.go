package optimizer

import (
	"time"

	"leadscore/internal/scoring"
)

// Settings are the run parameters fixed when the optimizer is constructed.
type Settings struct {
	MaxIterations          int     `json:"maxIterations"`
	CandidatesPerIteration int     `json:"candidatesPerIteration"`
	BeamWidth              int     `json:"beamWidth"`
	EarlyStopThreshold     float64 `json:"earlyStopThreshold"`
	StagnationLimit        int     `json:"stagnationLimit"`
	Subset                 int     `json:"subset,omitempty"`
	ExampleSampleSize      int     `json:"exampleSampleSize"`
	WorstCaseCount         int     `json:"worstCaseCount"`
	PromptPreviewChars     int     `json:"promptPreviewChars"`
	BaseTemperature        float64 `json:"baseTemperature"`
	TemperatureStep        float64 `json:"temperatureStep"`
	EvalFile               string  `json:"evalFile,omitempty"`
	ScoringModel           string  `json:"scoringModel,omitempty"`
	GeneratorModel         string  `json:"generatorModel,omitempty"`
}

// Candidate is an evaluated prompt. Predictions are cached in memory only and
// are dropped when the candidate is checkpointed.
type Candidate struct {
	Prompt      string               `json:"prompt"`
	MAE         float64              `json:"score"`
	Accuracy    float64              `json:"accuracy"`
	Iteration   int                  `json:"iteration"`
	Predictions []scoring.Prediction `json:"predictions,omitempty"`
}

func (c Candidate) stripped() Candidate {
	c.Predictions = nil
	return c
}

// CandidateSummary describes one generated candidate in the report.
type CandidateSummary struct {
	Index              int                    `json:"index"`
	MAE                float64                `json:"score"`
	Accuracy           float64                `json:"accuracy"`
	PromptPreview      string                 `json:"promptPreview"`
	SimilarityToParent float64                `json:"similarityToParent"`
	Fallbacks          scoring.FallbackCounts `json:"fallbacks"`
}

// IterationSummary records the outcome of one completed iteration.
type IterationSummary struct {
	Iteration          int                `json:"iteration"`
	Candidates         []CandidateSummary `json:"candidates"`
	GenerationFailures int                `json:"generationFailures,omitempty"`
	BestScore          float64            `json:"bestScore"`
	BestAccuracy       float64            `json:"bestAccuracy"`
	Improvement        float64            `json:"improvement"`
	StagnantIterations int                `json:"stagnantIterations"`
}

// Report is the audit trail of one run.
type Report struct {
	RunID             string                 `json:"runId"`
	Config            Settings               `json:"config"`
	BaselineScore     float64                `json:"baselineScore"`
	BaselineAccuracy  float64                `json:"baselineAccuracy"`
	Iterations        []IterationSummary     `json:"iterations"`
	FinalBestPrompt   string                 `json:"finalBestPrompt,omitempty"`
	FinalBestScore    float64                `json:"finalBestScore"`
	FinalBestAccuracy float64                `json:"finalBestAccuracy"`
	Improvement       float64                `json:"improvement"`
	TotalLLMCalls     int64                  `json:"totalLLMCalls"`
	Fallbacks         scoring.FallbackCounts `json:"fallbacks"`
	StoppedEarly      bool                   `json:"stoppedEarly"`
	Resumed           bool                   `json:"resumed,omitempty"`
	StartedAt         time.Time              `json:"startedAt"`
	FinishedAt        time.Time              `json:"finishedAt,omitzero"`
}

// State is the full loop state between iterations. Values are treated as
// immutable: Step returns a new State and leaves its argument untouched.
type State struct {
	RunID               string
	BaselineScore       float64
	BaselineAccuracy    float64
	Beam                []Candidate
	CompletedIterations int
	PreviousBestScore   float64
	StagnantIterations  int
	Report              Report

	// priorCalls carries model calls made by earlier processes of a resumed run.
	priorCalls int64
}

// Best returns the current best candidate.
func (s State) Best() Candidate {
	if len(s.Beam) == 0 {
		return Candidate{}
	}
	return s.Beam[0]
}

func (s State) clone() State {
	next := s
	next.Beam = append([]Candidate(nil), s.Beam...)
	next.Report.Iterations = append([]IterationSummary(nil), s.Report.Iterations...)
	return next
}
