package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"leadscore/internal/history"
	"leadscore/internal/services"
	"leadscore/internal/textutil"
)

const shortRunIDLength = 8

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse finished optimization runs",
	}
	cmd.AddCommand(newHistoryListCommand(ctx))
	cmd.AddCommand(newHistoryShowCommand(ctx))
	return cmd
}

func openHistory(ctx *commandContext) (*history.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "cli", "open history", cfg.Paths.HistoryDB, err)
	}
	return store, nil
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				if runs == nil {
					runs = []history.Run{}
				}
				return writeJSON(cmd, runs)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortRunID(run.ID),
					formatWhen(run.FinishedAt),
					strconv.Itoa(run.Iterations),
					formatScore(run.BaselineScore),
					formatScore(run.FinalScore),
					formatScore(run.Improvement),
					formatPercent(run.FinalAccuracy),
					yesNo(run.StoppedEarly),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Finished", "Iterations", "Baseline", "Final", "Improvement", "Accuracy", "Early stop"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list (0 lists all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var promptOnly bool
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.FindRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if run == nil {
				return services.Wrap(services.ErrNotFound, "cli", "history show", fmt.Sprintf("no run matches %q", args[0]), nil)
			}
			out := cmd.OutOrStdout()
			if promptOnly {
				fmt.Fprintln(out, strings.TrimRight(run.BestPrompt, "\n"))
				return nil
			}
			if asJSON {
				report, err := store.Report(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				return writeJSON(cmd, report)
			}
			candidates, err := store.Candidates(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			printRun(out, *run, candidates)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the stored report as JSON")
	cmd.Flags().BoolVar(&promptOnly, "prompt", false, "Print only the best prompt")
	return cmd
}

func printRun(out io.Writer, run history.Run, candidates []history.Candidate) {
	fmt.Fprintf(out, "Run ID:       %s\n", run.ID)
	fmt.Fprintf(out, "Finished:     %s (%s)\n", run.FinishedAt.Local().Format("2006-01-02 15:04:05"), formatWhen(run.FinishedAt))
	fmt.Fprintf(out, "Eval file:    %s\n", run.EvalFile)
	fmt.Fprintf(out, "Models:       %s / %s\n", run.ScoringModel, run.GeneratorModel)
	fmt.Fprintf(out, "Baseline:     MAE %s, accuracy %s\n", formatScore(run.BaselineScore), formatPercent(run.BaselineAccuracy))
	fmt.Fprintf(out, "Final:        MAE %s, accuracy %s\n", formatScore(run.FinalScore), formatPercent(run.FinalAccuracy))
	fmt.Fprintf(out, "Improvement:  %s over %d iterations\n", formatScore(run.Improvement), run.Iterations)
	fmt.Fprintf(out, "Stopped early: %s   Resumed: %s   LLM calls: %d\n", yesNo(run.StoppedEarly), yesNo(run.Resumed), run.LLMCalls)
	if len(candidates) == 0 {
		return
	}
	rows := make([][]string, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, []string{
			strconv.Itoa(c.Iteration),
			strconv.Itoa(c.Index),
			formatScore(c.MAE),
			formatPercent(c.Accuracy),
			fmt.Sprintf("%.2f", c.Similarity),
			textutil.Preview(c.Preview, beamPreviewChars),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Iteration", "Candidate", "MAE", "Accuracy", "Similarity", "Prompt"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
}

func shortRunID(id string) string {
	if len(id) <= shortRunIDLength {
		return id
	}
	return id[:shortRunIDLength]
}
