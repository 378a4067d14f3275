package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"leadscore/internal/config"
	"leadscore/internal/evalset"
	"leadscore/internal/logging"
	"leadscore/internal/optimizer"
	"leadscore/internal/services"
	"leadscore/internal/services/llm"
)

type commandContext struct {
	configFlag  *string
	verboseFlag *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		verboseFlag: verboseFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "cli", "load config", "", err)
			return
		}
		if c.verboseFlag != nil && *c.verboseFlag {
			cfg.Logging.Level = "debug"
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// newLLMClient builds a chat-completions client for one model role.
func newLLMClient(cfg config.LLMConfig) *llm.Client {
	return llm.NewClient(llm.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
	},
		llm.WithRetryMaxAttempts(cfg.RetryAttempts),
		llm.WithRateLimit(cfg.RequestsPerSecond),
	)
}

// loadDataset reads the evaluation file and logs skipped rows.
func loadDataset(cfg *config.Config, logger *slog.Logger) (evalset.Dataset, error) {
	dataset, err := evalset.Load(cfg.Paths.EvalFile)
	if err != nil {
		return evalset.Dataset{}, err
	}
	for _, skipped := range dataset.Skipped {
		logging.WarnWithContext(logger, "evaluation row skipped", "eval_row_skipped",
			logging.String("file", cfg.Paths.EvalFile),
			logging.Int("line", skipped.Line),
			logging.String("reason", skipped.Reason),
			logging.String(logging.FieldErrorHint, "fix the ExpectedScore value to include this lead"),
			logging.String(logging.FieldImpact, "lead excluded from evaluation"),
		)
	}
	return dataset, nil
}

// loadPrompt reads a prompt file, or the configured baseline when path is
// empty, or the built-in baseline when neither is set.
func loadPrompt(cfg *config.Config, path string) (string, string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = cfg.Paths.BaselinePrompt
	} else {
		expanded, err := config.ExpandPath(path)
		if err != nil {
			return "", "", err
		}
		path = expanded
	}
	if path == "" {
		return optimizer.BaselinePrompt(), "built-in", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", services.Wrap(services.ErrNotFound, "cli", "load prompt", path, err)
		}
		return "", "", fmt.Errorf("read prompt %s: %w", path, err)
	}
	prompt := string(data)
	if strings.TrimSpace(prompt) == "" {
		return "", "", services.Wrap(services.ErrValidation, "cli", "load prompt", fmt.Sprintf("%s is empty", path), nil)
	}
	return prompt, path, nil
}

func requireLLM(cfg *config.Config) error {
	if err := cfg.RequireLLM(); err != nil {
		return services.Wrap(services.ErrConfiguration, "cli", "", "", err)
	}
	return nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
