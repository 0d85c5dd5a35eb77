package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/udrlabs/udrctl/internal/deploy"
	"github.com/udrlabs/udrctl/internal/output"
	"github.com/udrlabs/udrctl/internal/stacks"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show pending changes against the deployed stacks",
	Long: `Compute the resource-level changes a deploy would apply, using
CloudFormation change sets. Stacks that do not exist are reported as new.
The command is read-only: every change set it creates is deleted before
returning.`,
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, binding, err := resolveConfig()
	if err != nil {
		return err
	}

	deployer, err := deploy.NewDeployer(ctx, cfg.Region)
	if err != nil {
		return err
	}

	orch := deploy.NewOrchestrator(cfg, stacks.DefaultUnits(cfg, binding), deployer, slog.Default())

	diffs, err := orch.Diff(ctx)
	if err != nil {
		return err
	}

	for _, ud := range diffs {
		output.Header(ud.Diff.StackName)
		switch {
		case ud.Diff.NewStack:
			output.Infof("Stack does not exist; deploy would create it")
		case ud.Diff.NoChanges:
			output.Successf("No changes")
		default:
			for _, c := range ud.Diff.Changes {
				line := fmt.Sprintf("%-7s %s (%s)", c.Action, c.LogicalID, c.Type)
				if c.Replacement == "True" {
					line += "  requires replacement"
				}
				output.Plain("  %s", line)
			}
		}
		output.Blank()
	}

	return nil
}
