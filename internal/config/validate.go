package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.Optimizer.Validate(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.EvalFile) == "" {
		return errors.New("paths.eval_file must be set")
	}
	if strings.TrimSpace(c.Paths.Checkpoint) == "" {
		return errors.New("paths.checkpoint must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if !strings.HasPrefix(c.LLM.BaseURL, "http://") && !strings.HasPrefix(c.LLM.BaseURL, "https://") {
		return fmt.Errorf("llm.base_url must be an http(s) URL, got %q", c.LLM.BaseURL)
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model must be set")
	}
	if c.LLM.RequestsPerSecond < 0 {
		return errors.New("llm.requests_per_second must be >= 0")
	}
	return nil
}

// Validate checks the optimizer knobs. It is exported so CLI overrides can be
// re-checked after they are applied.
func (o Optimizer) Validate() error {
	switch {
	case o.MaxIterations < 1:
		return errors.New("optimizer.max_iterations must be >= 1")
	case o.CandidatesPerIteration < 1:
		return errors.New("optimizer.candidates_per_iteration must be >= 1")
	case o.BeamWidth < 1:
		return errors.New("optimizer.beam_width must be >= 1")
	case o.EarlyStopThreshold < 0:
		return errors.New("optimizer.early_stop_threshold must be >= 0")
	case o.StagnationLimit < 1:
		return errors.New("optimizer.stagnation_limit must be >= 1")
	case o.BatchSize < 1:
		return errors.New("optimizer.batch_size must be >= 1")
	case o.Subset < 0:
		return errors.New("optimizer.subset must be >= 0")
	case o.ExampleSampleSize < 0:
		return errors.New("optimizer.example_sample_size must be >= 0")
	case o.WorstCaseCount < 0:
		return errors.New("optimizer.worst_case_count must be >= 0")
	case o.PromptPreviewChars < 1:
		return errors.New("optimizer.prompt_preview_chars must be >= 1")
	case o.BaseTemperature < 0 || o.BaseTemperature > 2:
		return errors.New("optimizer.base_temperature must be between 0 and 2")
	case o.TemperatureStep < 0:
		return errors.New("optimizer.temperature_step must be >= 0")
	case o.ScoringTemperature < 0 || o.ScoringTemperature > 2:
		return errors.New("optimizer.scoring_temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}
