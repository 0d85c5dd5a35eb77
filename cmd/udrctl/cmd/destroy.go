package cmd

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/udrlabs/udrctl/internal/deploy"
	"github.com/udrlabs/udrctl/internal/output"
	"github.com/udrlabs/udrctl/internal/stacks"
)

var destroyForce bool

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Tear down all stacks in reverse dependency order",
	Long: `Delete the frontend, backend and gateway stacks in that order, the
reverse of deployment. Stacks that do not exist are reported and skipped.
A deletion failure aborts the remaining teardown, since earlier stacks may
still be referenced by the one that failed to delete.`,
	RunE: runDestroy,
}

func init() {
	rootCmd.AddCommand(destroyCmd)
	destroyCmd.Flags().BoolVar(&destroyForce, "force", false,
		"Skip the confirmation prompt")
}

func runDestroy(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, binding, err := resolveConfig()
	if err != nil {
		return err
	}

	if !destroyForce && !confirmDestroy(cfg.StackPrefix) {
		output.Infof("Aborted")
		return nil
	}

	deployer, err := deploy.NewDeployer(ctx, cfg.Region)
	if err != nil {
		return err
	}

	orch := deploy.NewOrchestrator(cfg, stacks.DefaultUnits(cfg, binding), deployer, slog.Default())

	results, err := orch.Destroy(ctx)
	total := len(results)
	for i, r := range results {
		if r.NotFound {
			output.StepSuccess(i+1, total, fmt.Sprintf("%s: not found, skipped", r.StackName))
		} else {
			output.StepSuccess(i+1, total, fmt.Sprintf("%s: deleted", r.StackName))
		}
	}
	if err != nil {
		return err
	}

	output.Blank()
	output.Successf("Teardown complete")
	return nil
}

func confirmDestroy(stackPrefix string) bool {
	output.Warningf("This deletes every %s-* stack and the resources they manage.", stackPrefix)
	fmt.Fprint(output.Stdout, "Type 'yes' to continue: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == "yes"
}
