package preflight

import (
	"context"
	"path/filepath"

	"leadscore/internal/config"
)

// Result reports the outcome of a single preflight check.
// Warning marks a passing check whose detail still needs attention.
type Result struct {
	Name    string
	Passed  bool
	Warning bool
	Detail  string
}

// RunAll executes every preflight check for the given config. Model checks
// are skipped when the generator uses the same endpoint and model as scoring.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckEvalFile("Evaluation file", cfg.Paths.EvalFile),
		CheckWritableLocation("Checkpoint directory", filepath.Dir(cfg.Paths.Checkpoint)),
		CheckWritableLocation("Output directory", cfg.Paths.OutputDir),
		CheckWritableLocation("History database", filepath.Dir(cfg.Paths.HistoryDB)),
		CheckCheckpoint("Checkpoint", cfg.Paths.Checkpoint),
	}
	if cfg.Paths.BaselinePrompt != "" {
		results = append(results, CheckFileReadable("Baseline prompt", cfg.Paths.BaselinePrompt))
	}

	results = append(results, CheckLLM(ctx, "Scoring LLM", cfg.ScoringLLM()))
	if generatorUsesDistinctLLM(cfg) {
		results = append(results, CheckLLM(ctx, "Generator LLM", cfg.GeneratorLLM()))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

func generatorUsesDistinctLLM(cfg *config.Config) bool {
	scoring := cfg.ScoringLLM()
	generator := cfg.GeneratorLLM()
	return scoring.Model != generator.Model || scoring.BaseURL != generator.BaseURL
}
