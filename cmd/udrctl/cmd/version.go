package cmd

import (
	"github.com/spf13/cobra"

	"github.com/udrlabs/udrctl/internal/constants"
	"github.com/udrlabs/udrctl/internal/output"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version of the CLI",
	Run: func(_ *cobra.Command, _ []string) {
		output.KeyValue("udrctl version", *constants.GetVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
