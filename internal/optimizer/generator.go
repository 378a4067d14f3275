package optimizer

import (
	"context"
	"log/slog"
	"strings"

	"leadscore/internal/logging"
	"leadscore/internal/services"
	"leadscore/internal/services/llm"
)

// Generator asks the generator model for new candidate prompts.
type Generator struct {
	completer       llm.Completer
	logger          *slog.Logger
	baseTemperature float64
	temperatureStep float64
	maxTokens       int
}

// NewGenerator builds a Generator. Candidate i is requested at
// baseTemperature + i*temperatureStep.
func NewGenerator(completer llm.Completer, baseTemperature, temperatureStep float64, logger *slog.Logger) *Generator {
	return &Generator{
		completer:       completer,
		logger:          logging.NewComponentLogger(logger, "generator"),
		baseTemperature: baseTemperature,
		temperatureStep: temperatureStep,
		maxTokens:       2048,
	}
}

// Generate issues count sequential generation calls with the same meta-prompt.
// Failed or empty generations are logged and skipped, so fewer than count
// prompts may be returned. The second result is the number of failures.
func (g *Generator) Generate(ctx context.Context, metaPrompt string, count int) ([]string, int) {
	prompts := make([]string, 0, count)
	failures := 0
	for i := range count {
		if ctx.Err() != nil {
			failures += count - i
			break
		}
		candidateCtx := services.WithCandidate(ctx, i+1)
		logger := logging.WithContext(candidateCtx, g.logger)
		temperature := g.baseTemperature + float64(i)*g.temperatureStep

		completion, err := g.completer.Complete(candidateCtx, llm.CompletionRequest{
			Prompt:      metaPrompt,
			Temperature: temperature,
			MaxTokens:   g.maxTokens,
		})
		if err != nil {
			failures++
			logging.WarnWithContext(logger, "candidate generation failed", "generation_failed",
				logging.Float64("temperature", temperature),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check provider status and the generator model name"),
				logging.String(logging.FieldImpact, "iteration continues with fewer candidates"),
			)
			continue
		}
		prompt := strings.TrimSpace(llm.StripCodeFence(completion.Content))
		if prompt == "" {
			failures++
			logging.WarnWithContext(logger, "generator returned an empty prompt", "generation_empty",
				logging.Float64("temperature", temperature),
				logging.String("finish_reason", completion.FinishReason),
				logging.String(logging.FieldImpact, "iteration continues with fewer candidates"),
			)
			continue
		}
		logger.Debug("candidate generated",
			logging.Float64("temperature", temperature),
			logging.Int("chars", len(prompt)),
		)
		prompts = append(prompts, prompt)
	}
	return prompts, failures
}
