package config

const (
	defaultConfigPath     = "~/.config/leadscore/config.toml"
	defaultEvalFile       = "data/evaluation.csv"
	defaultCheckpointPath = "apo-checkpoint.json"
	defaultOutputDir      = "apo-output"
	defaultHistoryDB      = "~/.local/share/leadscore/history.db"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"

	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "openai/gpt-4o-mini"
	defaultLLMReferer        = "https://github.com/leadscore/leadscore"
	defaultLLMTitle          = "Leadscore Prompt Optimizer"
	defaultLLMTimeoutSeconds = 60
	defaultLLMRetryAttempts  = 1

	defaultMaxIterations          = 5
	defaultCandidatesPerIteration = 3
	defaultBeamWidth              = 2
	defaultEarlyStopThreshold     = 0.05
	defaultStagnationLimit        = 2
	defaultBatchSize              = 25
	defaultExampleSampleSize      = 15
	defaultWorstCaseCount         = 10
	defaultPromptPreviewChars     = 2000
	defaultBaseTemperature        = 0.7
	defaultTemperatureStep        = 0.1
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			EvalFile:   defaultEvalFile,
			Checkpoint: defaultCheckpointPath,
			OutputDir:  defaultOutputDir,
			HistoryDB:  defaultHistoryDB,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			RetryAttempts:  defaultLLMRetryAttempts,
		},
		Optimizer: Optimizer{
			MaxIterations:          defaultMaxIterations,
			CandidatesPerIteration: defaultCandidatesPerIteration,
			BeamWidth:              defaultBeamWidth,
			EarlyStopThreshold:     defaultEarlyStopThreshold,
			StagnationLimit:        defaultStagnationLimit,
			BatchSize:              defaultBatchSize,
			ExampleSampleSize:      defaultExampleSampleSize,
			WorstCaseCount:         defaultWorstCaseCount,
			PromptPreviewChars:     defaultPromptPreviewChars,
			BaseTemperature:        defaultBaseTemperature,
			TemperatureStep:        defaultTemperatureStep,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
