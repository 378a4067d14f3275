package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"leadscore/internal/scoring"
	"leadscore/internal/services/llm"
)

type evaluateOutput struct {
	Prompt    string                 `json:"prompt"`
	Leads     int                    `json:"leads"`
	MAE       float64                `json:"mae"`
	Accuracy  float64                `json:"accuracy"`
	Fallbacks scoring.FallbackCounts `json:"fallbacks"`
	LLMCalls  int64                  `json:"llmCalls"`
	Worst     []scoring.Prediction   `json:"worst"`
}

func newEvaluateCommand(ctx *commandContext) *cobra.Command {
	var promptPath string
	var subset int
	var worst int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score the evaluation set with one prompt and report MAE and accuracy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := requireLLM(cfg); err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("subset") {
				subset = cfg.Optimizer.Subset
			}

			dataset, err := loadDataset(cfg, logger)
			if err != nil {
				return err
			}
			prompt, source, err := loadPrompt(cfg, promptPath)
			if err != nil {
				return err
			}

			scorer := llm.NewCountingCompleter(newLLMClient(cfg.ScoringLLM()))
			evaluator := scoring.NewEvaluator(scorer,
				scoring.WithBatchSize(cfg.Optimizer.BatchSize),
				scoring.WithTemperature(cfg.Optimizer.ScoringTemperature),
				scoring.WithLogger(logger),
			)
			result, err := evaluator.Evaluate(cmd.Context(), prompt, dataset.Records, subset)
			if err != nil {
				return err
			}

			output := evaluateOutput{
				Prompt:    source,
				Leads:     len(result.Predictions),
				MAE:       result.MAE,
				Accuracy:  result.Accuracy,
				Fallbacks: result.Fallbacks(),
				LLMCalls:  scorer.Calls(),
				Worst:     scoring.Worst(result.Predictions, worst),
			}
			if asJSON {
				return writeJSON(cmd, output)
			}
			printEvaluation(cmd.OutOrStdout(), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&promptPath, "prompt", "p", "", "Prompt file to evaluate (defaults to the baseline prompt)")
	cmd.Flags().IntVar(&subset, "subset", 0, "Evaluate only the first N leads")
	cmd.Flags().IntVar(&worst, "worst", 10, "Number of worst predictions to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printEvaluation(out io.Writer, output evaluateOutput) {
	fmt.Fprintln(out, renderTable(
		[]string{"Prompt", "Leads", "MAE", "Accuracy", "Fallbacks"},
		[][]string{{
			output.Prompt,
			strconv.Itoa(output.Leads),
			formatScore(output.MAE),
			formatPercent(output.Accuracy),
			formatFallbacks(output.Fallbacks),
		}},
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
	if len(output.Worst) == 0 {
		return
	}
	rows := make([][]string, 0, len(output.Worst))
	for _, p := range output.Worst {
		rows = append(rows, []string{
			strconv.Itoa(p.Record.Line),
			p.Record.Name,
			p.Record.Title,
			p.Record.Company,
			strconv.Itoa(p.Expected),
			formatPredicted(p.Predicted),
			formatPredicted(p.Error),
			fallbackLabel(p.Fallback),
		})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Worst predictions")
	fmt.Fprintln(out, renderTable(
		[]string{"Line", "Name", "Title", "Company", "Expected", "Predicted", "Error", "Fallback"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
}
