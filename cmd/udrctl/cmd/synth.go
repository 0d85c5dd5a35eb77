package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/udrlabs/udrctl/internal/deploy"
	"github.com/udrlabs/udrctl/internal/output"
	"github.com/udrlabs/udrctl/internal/stacks"
)

var synthOut string

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Write every stack template to disk without touching AWS",
	Long: `Render each unit's CloudFormation template to <out>/<stack>.yaml.
Cross-unit endpoints are left unresolved, so dependent units render their
offline shape. Output is deterministic: synthesizing twice with identical
inputs produces byte-identical files.`,
	RunE: runSynth,
}

func init() {
	rootCmd.AddCommand(synthCmd)
	synthCmd.Flags().StringVar(&synthOut, "out", "./out", "Directory to write templates to")
}

func runSynth(_ *cobra.Command, _ []string) error {
	cfg, binding, err := resolveConfig()
	if err != nil {
		return err
	}

	orch := deploy.NewOrchestrator(cfg, stacks.DefaultUnits(cfg, binding), nil, slog.Default())

	templates, err := orch.Synth()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(synthOut, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, tmpl := range templates {
		path := filepath.Join(synthOut, tmpl.StackName+".yaml")
		if err := os.WriteFile(path, tmpl.Body, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		output.Successf("Wrote %s", path)
	}

	return nil
}
