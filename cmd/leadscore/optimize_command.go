package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"leadscore/internal/config"
	"leadscore/internal/history"
	"leadscore/internal/logging"
	"leadscore/internal/optimizer"
	"leadscore/internal/scoring"
	"leadscore/internal/services"
	"leadscore/internal/services/llm"
)

type optimizeOptions struct {
	resume     bool
	iterations int
	candidates int
	beam       int
	subset     int
}

func newOptimizeCommand(ctx *commandContext) *cobra.Command {
	var opts optimizeOptions

	cmd := &cobra.Command{
		Use:                "optimize",
		Short:              "Run the beam-search prompt optimizer",
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyOptimizeOverrides(cmd, cfg, opts); err != nil {
				return err
			}
			if err := requireLLM(cfg); err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return services.Wrap(services.ErrConfiguration, "cli", "optimize", "", err)
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runOptimize(runCtx, cmd.OutOrStdout(), cfg, opts.resume, logger)
		},
	}

	cmd.Flags().BoolVar(&opts.resume, "resume", false, "Continue from the last checkpoint if one exists")
	cmd.Flags().IntVar(&opts.iterations, "iterations", 0, "Maximum iterations (overrides optimizer.max_iterations)")
	cmd.Flags().IntVar(&opts.candidates, "candidates", 0, "Candidates generated per iteration")
	cmd.Flags().IntVar(&opts.beam, "beam", 0, "Beam width")
	cmd.Flags().IntVar(&opts.subset, "subset", 0, "Evaluate only the first N leads")
	return cmd
}

// applyOptimizeOverrides copies explicitly set flags onto the config and
// re-validates the optimizer section.
func applyOptimizeOverrides(cmd *cobra.Command, cfg *config.Config, opts optimizeOptions) error {
	flags := cmd.Flags()
	if flags.Changed("iterations") {
		cfg.Optimizer.MaxIterations = opts.iterations
	}
	if flags.Changed("candidates") {
		cfg.Optimizer.CandidatesPerIteration = opts.candidates
	}
	if flags.Changed("beam") {
		cfg.Optimizer.BeamWidth = opts.beam
	}
	if flags.Changed("subset") {
		cfg.Optimizer.Subset = opts.subset
	}
	if err := cfg.Optimizer.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "cli", "optimize", "", err)
	}
	return nil
}

type callTotal []optimizer.CallCounter

func (c callTotal) Calls() int64 {
	var total int64
	for _, counter := range c {
		total += counter.Calls()
	}
	return total
}

func runOptimize(ctx context.Context, out io.Writer, cfg *config.Config, resume bool, logger *slog.Logger) error {
	dataset, err := loadDataset(cfg, logger)
	if err != nil {
		return err
	}
	baseline, source, err := loadPrompt(cfg, "")
	if err != nil {
		return err
	}
	logger.Info("optimizer starting",
		logging.String("eval_file", cfg.Paths.EvalFile),
		logging.Int("leads", len(dataset.Records)),
		logging.String("baseline", source),
		logging.Bool("resume", resume),
	)

	scorer := llm.NewCountingCompleter(newLLMClient(cfg.ScoringLLM()))
	writer := llm.NewCountingCompleter(newLLMClient(cfg.GeneratorLLM()))
	evaluator := scoring.NewEvaluator(scorer,
		scoring.WithBatchSize(cfg.Optimizer.BatchSize),
		scoring.WithTemperature(cfg.Optimizer.ScoringTemperature),
		scoring.WithLogger(logger),
	)
	generator := optimizer.NewGenerator(writer, cfg.Optimizer.BaseTemperature, cfg.Optimizer.TemperatureStep, logger)
	store := optimizer.NewCheckpointStore(cfg.Paths.Checkpoint, logger)

	runOpts := []optimizer.Option{
		optimizer.WithOutputDir(cfg.Paths.OutputDir),
		optimizer.WithCallCounter(callTotal{scorer, writer}),
		optimizer.WithLogger(logger),
	}
	if hist, err := history.Open(cfg.Paths.HistoryDB); err != nil {
		logging.WarnWithContext(logger, "run history unavailable", "history_open_failed",
			logging.String("path", cfg.Paths.HistoryDB),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.history_db or delete an outdated database"),
			logging.String(logging.FieldImpact, "this run will not appear in 'leadscore history'"),
		)
	} else {
		defer hist.Close()
		runOpts = append(runOpts, optimizer.WithRecorder(hist))
	}

	opt := optimizer.New(evaluator, generator, store, dataset.Records, optimizer.SettingsFromConfig(cfg), runOpts...)
	outcome, err := opt.Run(ctx, baseline, resume)
	if err != nil {
		return err
	}
	printOptimizeSummary(out, outcome)
	return nil
}

func printOptimizeSummary(out io.Writer, outcome optimizer.Outcome) {
	report := outcome.Report
	fmt.Fprintln(out, renderTable(
		[]string{"", "MAE", "Accuracy"},
		[][]string{
			{"Baseline", formatScore(report.BaselineScore), formatPercent(report.BaselineAccuracy)},
			{"Final", formatScore(report.FinalBestScore), formatPercent(report.FinalBestAccuracy)},
		},
		[]columnAlignment{alignLeft, alignRight, alignRight},
	))
	stop := "max iterations reached"
	if report.StoppedEarly {
		stop = "stopped early"
	}
	fmt.Fprintf(out, "Improvement: %s over %d iterations (%s)\n", formatScore(report.Improvement), len(report.Iterations), stop)
	fmt.Fprintf(out, "LLM calls:   %d\n", report.TotalLLMCalls)
	if total := report.Fallbacks.Total(); total > 0 {
		fmt.Fprintf(out, "Fallbacks:   %d unparseable, %d failed calls\n", report.Fallbacks.Unparseable, report.Fallbacks.CallFailed)
	}
	fmt.Fprintf(out, "Run ID:      %s\n", report.RunID)
	if outcome.Outputs.BestPromptPath != "" {
		fmt.Fprintf(out, "Best prompt: %s\n", outcome.Outputs.BestPromptPath)
		fmt.Fprintf(out, "Report:      %s\n", outcome.Outputs.ReportPath)
	}
}
