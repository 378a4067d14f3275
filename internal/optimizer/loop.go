package optimizer

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"leadscore/internal/config"
	"leadscore/internal/evalset"
	"leadscore/internal/logging"
	"leadscore/internal/scoring"
	"leadscore/internal/services"
	"leadscore/internal/textutil"
)

//go:embed baseline_prompt.txt
var baselinePrompt string

// candidatePreviewChars bounds prompt previews stored in the report.
const candidatePreviewChars = 200

// BaselinePrompt returns the built-in starting prompt.
func BaselinePrompt() string {
	return strings.TrimSpace(baselinePrompt) + "\n"
}

// Evaluator scores a prompt against records. *scoring.Evaluator satisfies it.
type Evaluator interface {
	Evaluate(ctx context.Context, prompt string, records []evalset.Record, subset int) (scoring.Result, error)
}

// CallCounter reports the number of model calls made so far.
type CallCounter interface {
	Calls() int64
}

// Recorder persists a finished run. Failures are logged, never returned.
type Recorder interface {
	RecordRun(ctx context.Context, report Report) error
}

// Outcome is the result of a finished run.
type Outcome struct {
	Report  Report
	Outputs Outputs
}

// Optimizer drives the beam search.
type Optimizer struct {
	evaluator Evaluator
	generator *Generator
	store     *CheckpointStore
	records   []evalset.Record
	settings  Settings
	outputDir string
	counter   CallCounter
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// Option customizes an Optimizer.
type Option func(*Optimizer)

// WithOutputDir sets where Finish writes the best prompt and report. Outputs
// are skipped when dir is empty.
func WithOutputDir(dir string) Option {
	return func(o *Optimizer) { o.outputDir = dir }
}

// WithCallCounter supplies the model call count for the report.
func WithCallCounter(counter CallCounter) Option {
	return func(o *Optimizer) { o.counter = counter }
}

// WithRecorder records finished runs, typically into the history store.
func WithRecorder(recorder Recorder) Option {
	return func(o *Optimizer) { o.recorder = recorder }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Optimizer) { o.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Optimizer) {
		if now != nil {
			o.now = now
		}
	}
}

// New constructs an Optimizer over a loaded evaluation set.
func New(evaluator Evaluator, generator *Generator, store *CheckpointStore, records []evalset.Record, settings Settings, opts ...Option) *Optimizer {
	o := &Optimizer{
		evaluator: evaluator,
		generator: generator,
		store:     store,
		records:   records,
		settings:  settings,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "optimizer")
	return o
}

// SettingsFromConfig copies the run parameters out of the loaded configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	opt := cfg.Optimizer
	return Settings{
		MaxIterations:          opt.MaxIterations,
		CandidatesPerIteration: opt.CandidatesPerIteration,
		BeamWidth:              opt.BeamWidth,
		EarlyStopThreshold:     opt.EarlyStopThreshold,
		StagnationLimit:        opt.StagnationLimit,
		Subset:                 opt.Subset,
		ExampleSampleSize:      opt.ExampleSampleSize,
		WorstCaseCount:         opt.WorstCaseCount,
		PromptPreviewChars:     opt.PromptPreviewChars,
		BaseTemperature:        opt.BaseTemperature,
		TemperatureStep:        opt.TemperatureStep,
		EvalFile:               cfg.Paths.EvalFile,
		ScoringModel:           cfg.ScoringLLM().Model,
		GeneratorModel:         cfg.GeneratorLLM().Model,
	}
}

// Settings returns the run parameters.
func (o *Optimizer) Settings() Settings { return o.settings }

// Run executes a complete optimization. With resume set, a usable checkpoint
// is continued; otherwise, or when no checkpoint loads, the run starts from
// baseline. The checkpoint lock is held for the whole run.
func (o *Optimizer) Run(ctx context.Context, baseline string, resume bool) (Outcome, error) {
	if err := o.store.Lock(); err != nil {
		return Outcome{}, err
	}
	defer func() {
		if err := o.store.Unlock(); err != nil {
			o.logger.Warn("checkpoint unlock failed", logging.Error(err))
		}
	}()

	var (
		state State
		err   error
	)
	if resume {
		cp, loadErr := o.store.Load()
		if loadErr != nil {
			return Outcome{}, loadErr
		}
		if cp != nil {
			state, err = o.Rehydrate(ctx, cp)
			if err != nil {
				return Outcome{}, err
			}
		} else {
			o.logger.Info("no checkpoint to resume; starting fresh", logging.String("path", o.store.Path()))
		}
	}
	if state.RunID == "" {
		state, err = o.Start(ctx, baseline)
		if err != nil {
			return Outcome{}, err
		}
	}

	for !o.Done(state) {
		state, err = o.Step(ctx, state)
		if err != nil {
			return Outcome{}, err
		}
	}
	return o.Finish(ctx, state)
}

// Start evaluates the baseline prompt, seeds the beam with it and writes the
// first checkpoint.
func (o *Optimizer) Start(ctx context.Context, baseline string) (State, error) {
	if strings.TrimSpace(baseline) == "" {
		return State{}, services.Wrap(services.ErrValidation, "optimizer", "start", "baseline prompt is empty", nil)
	}
	runID := uuid.NewString()
	ctx = services.WithPhase(services.WithRunID(ctx, runID), "baseline")
	logger := logging.WithContext(ctx, o.logger)
	logger.Info("evaluating baseline prompt",
		logging.Int("records", o.recordCount()),
		logging.String("checkpoint", o.store.Path()),
	)

	result, err := o.evaluator.Evaluate(ctx, baseline, o.records, o.settings.Subset)
	if err != nil {
		return State{}, fmt.Errorf("baseline evaluation: %w", err)
	}

	seed := Candidate{
		Prompt:      baseline,
		MAE:         result.MAE,
		Accuracy:    result.Accuracy,
		Iteration:   0,
		Predictions: result.Predictions,
	}
	state := State{
		RunID:             runID,
		BaselineScore:     result.MAE,
		BaselineAccuracy:  result.Accuracy,
		Beam:              []Candidate{seed},
		PreviousBestScore: result.MAE,
		Report: Report{
			RunID:            runID,
			Config:           o.settings,
			BaselineScore:    result.MAE,
			BaselineAccuracy: result.Accuracy,
			Iterations:       []IterationSummary{},
			Fallbacks:        result.Fallbacks(),
			StartedAt:        o.now().UTC(),
		},
	}
	state.Report.TotalLLMCalls = o.totalCalls(state)

	logger.Info("baseline evaluated",
		logging.Float64("mae", result.MAE),
		logging.Float64("accuracy", result.Accuracy),
	)
	if err := o.checkpoint(logger, state); err != nil {
		return State{}, err
	}
	return state, nil
}

// Rehydrate turns checkpoint metadata back into a running State. Only the best
// candidate is re-evaluated, to rebuild the predictions its worst cases are
// drawn from; stored scores are kept as recorded.
func (o *Optimizer) Rehydrate(ctx context.Context, cp *Checkpoint) (State, error) {
	if cp == nil || len(cp.Beam) == 0 {
		return State{}, services.Wrap(services.ErrValidation, "optimizer", "rehydrate", "checkpoint has no beam", nil)
	}
	runID := cp.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = services.WithPhase(services.WithRunID(ctx, runID), "resume")
	logger := logging.WithContext(ctx, o.logger)

	top := cp.Beam[0]
	logger.Info("resuming from checkpoint",
		logging.Int("completed_iterations", cp.CompletedIterations),
		logging.Float64("best_mae", top.MAE),
		logging.Int("beam", len(cp.Beam)),
	)
	result, err := o.evaluator.Evaluate(ctx, top.Prompt, o.records, o.settings.Subset)
	if err != nil {
		return State{}, fmt.Errorf("re-evaluate best candidate: %w", err)
	}
	if math.Abs(result.MAE-top.MAE) > o.settings.EarlyStopThreshold {
		logger.Info("re-evaluated best prompt differs from checkpoint",
			logging.Float64("checkpoint_mae", top.MAE),
			logging.Float64("current_mae", result.MAE),
		)
	}

	beam := make([]Candidate, len(cp.Beam))
	for i, c := range cp.Beam {
		beam[i] = c.stripped()
	}
	beam[0].Predictions = result.Predictions
	beam = SelectBeam(beam, nil, o.settings.BeamWidth)

	report := cp.Report
	report.RunID = runID
	report.Config = o.settings
	report.Resumed = true
	report.Iterations = append([]IterationSummary{}, cp.Report.Iterations...)
	report.Fallbacks = report.Fallbacks.Add(result.Fallbacks())
	if report.StartedAt.IsZero() {
		report.StartedAt = o.now().UTC()
	}

	state := State{
		RunID:               runID,
		BaselineScore:       cp.BaselineScore,
		BaselineAccuracy:    cp.BaselineAccuracy,
		Beam:                beam,
		CompletedIterations: cp.CompletedIterations,
		PreviousBestScore:   cp.PreviousBestScore,
		StagnantIterations:  cp.StagnantIterations,
		Report:              report,
		priorCalls:          cp.Report.TotalLLMCalls,
	}
	state.Report.TotalLLMCalls = o.totalCalls(state)
	return state, nil
}

// Done reports whether the loop should stop: every iteration has run or the
// best score stagnated for StagnationLimit iterations in a row.
func (o *Optimizer) Done(state State) bool {
	return state.CompletedIterations >= o.settings.MaxIterations || o.stoppedEarly(state)
}

func (o *Optimizer) stoppedEarly(state State) bool {
	return state.StagnantIterations >= o.settings.StagnationLimit
}

// Step runs one iteration: generate, evaluate, select, checkpoint. The input
// state is not modified.
func (o *Optimizer) Step(ctx context.Context, state State) (State, error) {
	if len(state.Beam) == 0 {
		return State{}, services.Wrap(services.ErrValidation, "optimizer", "step", "beam is empty", nil)
	}
	iteration := state.CompletedIterations + 1
	ctx = services.WithIteration(services.WithRunID(ctx, state.RunID), iteration)
	logger := logging.WithContext(ctx, o.logger)

	parent := state.Best()
	meta := BuildMetaPrompt(MetaPromptInput{
		Beam:         state.Beam,
		Examples:     o.examples(),
		Worst:        scoring.Worst(parent.Predictions, o.settings.WorstCaseCount),
		PreviewChars: o.settings.PromptPreviewChars,
	})

	logger.Info("generating candidates", logging.Int("requested", o.settings.CandidatesPerIteration))
	prompts, failures := o.generator.Generate(services.WithPhase(ctx, "generate"), meta, o.settings.CandidatesPerIteration)
	if err := ctx.Err(); err != nil {
		return State{}, services.Wrap(services.ErrTransient, "optimizer", "step", "cancelled during generation", err)
	}
	if len(prompts) == 0 {
		logging.WarnWithContext(logger, "no candidates generated this iteration", "iteration_empty",
			logging.Int("failures", failures),
			logging.String(logging.FieldImpact, "iteration counts as stagnant"),
		)
	}

	evaluated := make([]Candidate, 0, len(prompts))
	summaries := make([]CandidateSummary, 0, len(prompts))
	fallbacks := state.Report.Fallbacks
	evalCtx := services.WithPhase(ctx, "evaluate")
	for i, prompt := range prompts {
		candidateCtx := services.WithCandidate(evalCtx, i+1)
		result, err := o.evaluator.Evaluate(candidateCtx, prompt, o.records, o.settings.Subset)
		if err != nil {
			return State{}, fmt.Errorf("evaluate candidate %d: %w", i+1, err)
		}
		candidate := Candidate{
			Prompt:      prompt,
			MAE:         result.MAE,
			Accuracy:    result.Accuracy,
			Iteration:   iteration,
			Predictions: result.Predictions,
		}
		evaluated = append(evaluated, candidate)
		counts := result.Fallbacks()
		fallbacks = fallbacks.Add(counts)
		summaries = append(summaries, CandidateSummary{
			Index:              i + 1,
			MAE:                result.MAE,
			Accuracy:           result.Accuracy,
			PromptPreview:      textutil.Preview(prompt, candidatePreviewChars),
			SimilarityToParent: textutil.Similarity(parent.Prompt, prompt),
			Fallbacks:          counts,
		})
		logging.WithContext(candidateCtx, o.logger).Info("candidate evaluated",
			logging.Float64("mae", result.MAE),
			logging.Float64("accuracy", result.Accuracy),
		)
	}

	next := state.clone()
	next.Beam = SelectBeam(state.Beam, evaluated, o.settings.BeamWidth)
	best := next.Beam[0]
	improvement := state.PreviousBestScore - best.MAE
	if improvement < o.settings.EarlyStopThreshold {
		next.StagnantIterations = state.StagnantIterations + 1
	} else {
		next.StagnantIterations = 0
	}
	next.PreviousBestScore = best.MAE
	next.CompletedIterations = iteration
	next.Report.Iterations = append(next.Report.Iterations, IterationSummary{
		Iteration:          iteration,
		Candidates:         summaries,
		GenerationFailures: failures,
		BestScore:          best.MAE,
		BestAccuracy:       best.Accuracy,
		Improvement:        improvement,
		StagnantIterations: next.StagnantIterations,
	})
	next.Report.Fallbacks = fallbacks
	next.Report.TotalLLMCalls = o.totalCalls(next)

	logger.Info("iteration complete",
		logging.Float64("best_mae", best.MAE),
		logging.Float64("best_accuracy", best.Accuracy),
		logging.Float64("improvement", improvement),
		logging.Int("stagnant_iterations", next.StagnantIterations),
		logging.Int("beam", len(next.Beam)),
	)
	if err := o.checkpoint(logger, next); err != nil {
		return State{}, err
	}
	return next, nil
}

// Finish finalizes the report from the best candidate, writes the outputs,
// removes the checkpoint and records the run.
func (o *Optimizer) Finish(ctx context.Context, state State) (Outcome, error) {
	if len(state.Beam) == 0 {
		return Outcome{}, services.Wrap(services.ErrValidation, "optimizer", "finish", "beam is empty", nil)
	}
	ctx = services.WithPhase(services.WithRunID(ctx, state.RunID), "finish")
	logger := logging.WithContext(ctx, o.logger)

	best := state.Best()
	report := state.Report
	report.Iterations = append([]IterationSummary{}, state.Report.Iterations...)
	report.FinalBestPrompt = best.Prompt
	report.FinalBestScore = best.MAE
	report.FinalBestAccuracy = best.Accuracy
	report.Improvement = state.BaselineScore - best.MAE
	report.StoppedEarly = o.stoppedEarly(state) && state.CompletedIterations < o.settings.MaxIterations
	report.TotalLLMCalls = o.totalCalls(state)
	report.FinishedAt = o.now().UTC()

	outcome := Outcome{Report: report}
	if o.outputDir != "" {
		outputs, err := WriteOutputs(o.outputDir, report)
		if err != nil {
			return Outcome{}, err
		}
		outcome.Outputs = outputs
	}

	if err := o.store.Delete(); err != nil {
		logging.WarnWithContext(logger, "checkpoint removal failed", "checkpoint_delete_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the checkpoint manually before the next --resume"),
			logging.String(logging.FieldImpact, "a later --resume would continue a finished run"),
		)
	}

	if o.recorder != nil {
		if err := o.recorder.RecordRun(ctx, report); err != nil {
			logging.WarnWithContext(logger, "run history not recorded", "history_record_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check paths.history_db permissions"),
				logging.String(logging.FieldImpact, "this run is missing from 'leadscore history'"),
			)
		}
	}

	logger.Info("optimization finished",
		logging.Float64("baseline_mae", report.BaselineScore),
		logging.Float64("final_mae", report.FinalBestScore),
		logging.Float64("improvement", report.Improvement),
		logging.Int("iterations", len(report.Iterations)),
		logging.Bool("stopped_early", report.StoppedEarly),
		logging.Int64("llm_calls", report.TotalLLMCalls),
	)
	return outcome, nil
}

func (o *Optimizer) checkpoint(logger *slog.Logger, state State) error {
	if err := o.store.Save(state, o.settings); err != nil {
		return err
	}
	logger.Info("checkpoint saved",
		logging.String("path", o.store.Path()),
		logging.Int("completed_iterations", state.CompletedIterations),
	)
	return nil
}

func (o *Optimizer) totalCalls(state State) int64 {
	if o.counter == nil {
		return state.priorCalls
	}
	return state.priorCalls + o.counter.Calls()
}

func (o *Optimizer) examples() []evalset.Record {
	n := min(o.settings.ExampleSampleSize, len(o.records))
	return o.records[:max(n, 0)]
}

func (o *Optimizer) recordCount() int {
	if o.settings.Subset > 0 && o.settings.Subset < len(o.records) {
		return o.settings.Subset
	}
	return len(o.records)
}
