package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"leadscore/internal/logging"
	"leadscore/internal/optimizer"
	"leadscore/internal/services"
	"leadscore/internal/textutil"
)

const beamPreviewChars = 60

func newCheckpointCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or discard the resumable checkpoint",
	}
	cmd.AddCommand(newCheckpointShowCommand(ctx))
	cmd.AddCommand(newCheckpointClearCommand(ctx))
	return cmd
}

func newCheckpointShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the saved beam and progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			store := optimizer.NewCheckpointStore(cfg.Paths.Checkpoint, logger)
			cp, err := store.Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cp == nil {
				if asJSON {
					return writeJSON(cmd, nil)
				}
				fmt.Fprintf(out, "No checkpoint at %s\n", store.Path())
				return nil
			}
			if asJSON {
				return writeJSON(cmd, cp)
			}

			fmt.Fprintf(out, "Run ID:      %s\n", cp.RunID)
			fmt.Fprintf(out, "Saved:       %s\n", formatWhen(cp.Timestamp))
			fmt.Fprintf(out, "Iterations:  %d of %d\n", cp.CompletedIterations, cp.Config.MaxIterations)
			fmt.Fprintf(out, "Baseline:    MAE %s, accuracy %s\n", formatScore(cp.BaselineScore), formatPercent(cp.BaselineAccuracy))
			fmt.Fprintf(out, "Stagnation:  %d of %d\n", cp.StagnantIterations, cp.Config.StagnationLimit)

			rows := make([][]string, 0, len(cp.Beam))
			for i, c := range cp.Beam {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					strconv.Itoa(c.Iteration),
					formatScore(c.MAE),
					formatPercent(c.Accuracy),
					textutil.Preview(c.Prompt, beamPreviewChars),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Rank", "Iteration", "MAE", "Accuracy", "Prompt"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newCheckpointClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the checkpoint so the next run starts fresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store := optimizer.NewCheckpointStore(cfg.Paths.Checkpoint, logging.NewNop())
			busy, err := store.InUse()
			if err != nil {
				return err
			}
			if busy {
				return services.Wrap(services.ErrLocked, "cli", "checkpoint clear", "a running optimizer holds "+store.Path(), nil)
			}
			if err := store.Delete(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint cleared (%s)\n", store.Path())
			return nil
		},
	}
}
