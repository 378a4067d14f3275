package scoring

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"leadscore/internal/evalset"
	"leadscore/internal/logging"
	"leadscore/internal/services"
	"leadscore/internal/services/llm"
)

// DefaultBatchSize bounds the number of scoring calls in flight.
const DefaultBatchSize = 25

// Evaluator scores prompts against evaluation records.
type Evaluator struct {
	completer   llm.Completer
	logger      *slog.Logger
	batchSize   int
	temperature float64
}

// Option customizes an Evaluator.
type Option func(*Evaluator)

// WithBatchSize overrides the batch size. Values below 1 are ignored.
func WithBatchSize(size int) Option {
	return func(e *Evaluator) {
		if size > 0 {
			e.batchSize = size
		}
	}
}

// WithTemperature sets the sampling temperature for scoring calls.
func WithTemperature(temperature float64) Option {
	return func(e *Evaluator) {
		e.temperature = temperature
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// NewEvaluator constructs an Evaluator around the model boundary.
func NewEvaluator(completer llm.Completer, opts ...Option) *Evaluator {
	e := &Evaluator{completer: completer, batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "evaluator")
	return e
}

// Evaluate scores prompt against the first subset records (all records when
// subset <= 0). Individual call failures never fail the pass; only context
// cancellation does.
func (e *Evaluator) Evaluate(ctx context.Context, prompt string, records []evalset.Record, subset int) (Result, error) {
	if subset > 0 && subset < len(records) {
		records = records[:subset]
	}
	if len(records) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, "evaluator", "evaluate", "no records to score", nil)
	}

	logger := logging.WithContext(ctx, e.logger)
	started := time.Now()
	predictions := make([]Prediction, len(records))

	for start := 0; start < len(records); start += e.batchSize {
		end := min(start+e.batchSize, len(records))
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				predictions[i] = e.scoreRecord(ctx, logger, prompt, records[i])
			}(i)
		}
		wg.Wait()
		if err := ctx.Err(); err != nil {
			return Result{}, services.Wrap(services.ErrTransient, "evaluator", "evaluate", "cancelled", err)
		}
		logger.Debug("batch scored",
			logging.Int("from", start+1),
			logging.Int("to", end),
			logging.Int("total", len(records)),
		)
	}

	mae, accuracy := Metrics(predictions)
	result := Result{MAE: mae, Accuracy: accuracy, Predictions: predictions}
	if fallbacks := result.Fallbacks(); fallbacks.Total() > 0 {
		logging.WarnWithContext(logger, "some leads fell back to the default score", "scoring_fallback",
			logging.Int("unparseable", fallbacks.Unparseable),
			logging.Int("call_failed", fallbacks.CallFailed),
			logging.Int("records", len(records)),
			logging.String(logging.FieldErrorHint, "inspect the prompt's output instruction or provider status"),
			logging.String(logging.FieldImpact, "affected leads are scored as 5, which skews MAE"),
		)
	}
	logger.Debug("evaluation complete",
		logging.Float64("mae", mae),
		logging.Float64("accuracy", accuracy),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func (e *Evaluator) scoreRecord(ctx context.Context, logger *slog.Logger, prompt string, record evalset.Record) Prediction {
	completion, err := e.completer.Complete(ctx, llm.CompletionRequest{
		Prompt:      evalset.ScoringPrompt(prompt, record),
		Temperature: e.temperature,
	})
	if err != nil {
		logger.Debug("scoring call failed",
			logging.Int("line", record.Line),
			logging.Error(err),
		)
		return NewPrediction(record, DefaultScore, FallbackCallFailed)
	}
	score, ok := ParseScore(completion.Content)
	if !ok {
		logger.Debug("unparseable scoring response",
			logging.Int("line", record.Line),
			logging.String("response", completion.Content),
		)
		return NewPrediction(record, DefaultScore, FallbackUnparseable)
	}
	return NewPrediction(record, score, FallbackNone)
}
