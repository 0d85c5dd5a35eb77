package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/udrlabs/udrctl/internal/config"
	"github.com/udrlabs/udrctl/internal/constants"
	"github.com/udrlabs/udrctl/internal/logger"
	"github.com/udrlabs/udrctl/internal/output"
)

var (
	debug         bool
	verbose       bool
	timeout       string
	timeoutCancel context.CancelFunc

	flagAccount            string
	flagRegion             string
	flagStackPrefix        string
	flagRepository         string
	flagRepositoryTokenRef string
	flagGatewayImage       string
	flagBackendImage       string
	flagModelName          string
)

var rootCmd = &cobra.Command{
	Use:   constants.ProjectName,
	Short: "Provision the deep research application on AWS",
	Long: fmt.Sprintf(`%s - %s
Deploys the translation gateway, research backend and web frontend as
ordered CloudFormation stacks with output propagation between them.`,
		constants.ProjectName, *constants.GetVersion()),
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if verbose {
			output.Infof("CLI build: " + output.Bold(*constants.GetVersion()))
		}

		logLevel := slog.LevelWarn
		if debug {
			logLevel = slog.LevelDebug
		} else if verbose {
			logLevel = slog.LevelInfo
		}
		logger.Initialize(logLevel)

		if timeout == "0" {
			return nil
		}

		// NOTICE: this runs after flags are parsed but before the command runs
		timeoutDuration, err := parseTimeout(timeout)
		if err != nil {
			return fmt.Errorf("error parsing timeout: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeoutDuration)
		timeoutCancel = cancel // Store for cleanup in Execute()
		cmd.SetContext(ctx)

		if verbose {
			output.Infof("Timeout: %s", timeoutDuration)
		}

		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if timeoutCancel != nil {
			timeoutCancel()
		}
	},
}

// RootCmd exposes the root command for documentation generation.
func RootCmd() *cobra.Command {
	return rootCmd
}

// Execute runs the root command and handles cleanup of timeout context.
func Execute() {
	err := rootCmd.Execute()
	if timeoutCancel != nil {
		timeoutCancel()
	}

	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&timeout, "timeout", "45m", "Timeout for command execution (e.g., 45m, 30s, 1h)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debugging logs")

	rootCmd.PersistentFlags().StringVar(&flagAccount, "account", "",
		"Target AWS account ID. Resolved from the active credentials if not set")
	rootCmd.PersistentFlags().StringVar(&flagRegion, "region", "",
		"AWS region (default: "+constants.DefaultRegion+")")
	rootCmd.PersistentFlags().StringVar(&flagStackPrefix, "stack-prefix", "",
		"Prefix for every CloudFormation stack name (default: "+constants.DefaultStackPrefix+")")
	rootCmd.PersistentFlags().StringVar(&flagRepository, "repository", "",
		"Frontend source repository in owner/name form. Requires --repository-token-ref")
	rootCmd.PersistentFlags().StringVar(&flagRepositoryTokenRef, "repository-token-ref", "",
		"Secrets Manager entry name holding the repository access token")
	rootCmd.PersistentFlags().StringVar(&flagGatewayImage, "gateway-image", "",
		"Container image for the translation gateway")
	rootCmd.PersistentFlags().StringVar(&flagBackendImage, "backend-image", "",
		"Container image for the research backend")
	rootCmd.PersistentFlags().StringVar(&flagModelName, "model-name", "",
		"Model identifier exported to the backend (default: "+constants.DefaultModelName+")")
}

// resolveConfig loads configuration, overlays command line flags and
// validates the result, deciding the frontend source binding as part of
// validation.
func resolveConfig() (*config.Config, config.SourceBinding, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	applyFlagOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	binding, err := cfg.ResolveSourceBinding()
	if err != nil {
		return nil, nil, err
	}

	return cfg, binding, nil
}

func applyFlagOverrides(cfg *config.Config) {
	overrides := []struct {
		flag  string
		field *string
	}{
		{flagAccount, &cfg.Account},
		{flagRegion, &cfg.Region},
		{flagStackPrefix, &cfg.StackPrefix},
		{flagRepository, &cfg.Repository},
		{flagRepositoryTokenRef, &cfg.RepositoryTokenRef},
		{flagGatewayImage, &cfg.GatewayImage},
		{flagBackendImage, &cfg.BackendImage},
		{flagModelName, &cfg.ModelName},
	}
	for _, o := range overrides {
		if o.flag != "" {
			*o.field = o.flag
		}
	}
}

// parseTimeout parses timeout string to time.Duration
// defaults to 45 minutes if empty
// Supports formats: "45m", "30s", "1h", "600s" (number of seconds)
func parseTimeout(timeoutStr string) (time.Duration, error) {
	if timeoutStr == "" {
		timeoutStr = "45m"
	}

	// Try parsing as duration first (supports "45m", "30s", "1h", etc.)
	duration, err := time.ParseDuration(timeoutStr)
	if err == nil {
		return duration, nil
	}

	// If duration parsing fails, try parsing as seconds (integer)
	seconds, err := strconv.Atoi(timeoutStr)
	if err != nil {
		errMsg := fmt.Sprintf(
			"invalid timeout format: %s (use duration like '45m' or '30s', or seconds like '600')",
			timeoutStr)
		return 0, errors.New(errMsg)
	}

	return time.Duration(seconds) * time.Second, nil
}
