package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"leadscore/internal/preflight"
	"leadscore/internal/services"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check data files, output locations, checkpoint, and model access",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Configuration", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Config file", statusInfo, ctx.configPath, colorize))
			fmt.Fprintln(out, renderStatusLine("Scoring model", statusInfo, cfg.ScoringLLM().Model, colorize))
			fmt.Fprintln(out, renderStatusLine("Generator model", statusInfo, cfg.GeneratorLLM().Model, colorize))
			fmt.Fprintln(out)

			results := preflight.RunAll(cmd.Context(), cfg)
			for _, line := range preflightLines(results, colorize) {
				fmt.Fprintln(out, line)
			}

			failed := preflight.Failed(results)
			if len(failed) == 0 {
				return nil
			}
			names := make([]string, 0, len(failed))
			for _, r := range failed {
				names = append(names, r.Name)
			}
			return services.Wrap(services.ErrConfiguration, "cli", "status", "failed checks: "+strings.Join(names, ", "), nil)
		},
	}
}

func preflightLines(results []preflight.Result, colorize bool) []string {
	lines := renderSectionHeader("Checks", colorize)
	for _, r := range results {
		lines = append(lines, renderStatusLine(r.Name, checkKind(r), r.Detail, colorize))
	}
	return lines
}

func checkKind(r preflight.Result) statusKind {
	switch {
	case !r.Passed:
		return statusError
	case r.Warning:
		return statusWarn
	default:
		return statusOK
	}
}
