package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeOptimizer()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.EvalFile) == "" {
		c.Paths.EvalFile = defaultEvalFile
	}
	if c.Paths.EvalFile, err = expandPath(strings.TrimSpace(c.Paths.EvalFile)); err != nil {
		return fmt.Errorf("paths.eval_file: %w", err)
	}
	if c.Paths.BaselinePrompt, err = expandPath(strings.TrimSpace(c.Paths.BaselinePrompt)); err != nil {
		return fmt.Errorf("paths.baseline_prompt: %w", err)
	}
	if strings.TrimSpace(c.Paths.Checkpoint) == "" {
		c.Paths.Checkpoint = defaultCheckpointPath
	}
	if c.Paths.Checkpoint, err = expandPath(strings.TrimSpace(c.Paths.Checkpoint)); err != nil {
		return fmt.Errorf("paths.checkpoint: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.HistoryDB) == "" {
		c.Paths.HistoryDB = defaultHistoryDB
	}
	if c.Paths.HistoryDB, err = expandPath(strings.TrimSpace(c.Paths.HistoryDB)); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		for _, key := range []string{"LEADSCORE_API_KEY", "OPENROUTER_API_KEY", "OPENAI_API_KEY"} {
			if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
				c.LLM.APIKey = strings.TrimSpace(value)
				break
			}
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.GeneratorModel = strings.TrimSpace(c.LLM.GeneratorModel)
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.RetryAttempts <= 0 {
		c.LLM.RetryAttempts = defaultLLMRetryAttempts
	}
}

// normalizeOptimizer fills zero values only; negative values are left for
// Validate to reject.
func (c *Config) normalizeOptimizer() {
	o := &c.Optimizer
	if o.MaxIterations == 0 {
		o.MaxIterations = defaultMaxIterations
	}
	if o.CandidatesPerIteration == 0 {
		o.CandidatesPerIteration = defaultCandidatesPerIteration
	}
	if o.BeamWidth == 0 {
		o.BeamWidth = defaultBeamWidth
	}
	if o.StagnationLimit == 0 {
		o.StagnationLimit = defaultStagnationLimit
	}
	if o.BatchSize == 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.ExampleSampleSize == 0 {
		o.ExampleSampleSize = defaultExampleSampleSize
	}
	if o.WorstCaseCount == 0 {
		o.WorstCaseCount = defaultWorstCaseCount
	}
	if o.PromptPreviewChars == 0 {
		o.PromptPreviewChars = defaultPromptPreviewChars
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
