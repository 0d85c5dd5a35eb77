package cmd

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/amplify"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/spf13/cobra"

	"github.com/udrlabs/udrctl/internal/config"
	configaws "github.com/udrlabs/udrctl/internal/config/aws"
	"github.com/udrlabs/udrctl/internal/deploy"
	"github.com/udrlabs/udrctl/internal/output"
	"github.com/udrlabs/udrctl/internal/stacks"
)

var deployWait bool

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy all stacks in dependency order",
	Long: `Synthesize and deploy the gateway, backend and frontend stacks in
dependency order. Each unit's endpoint is resolved from its stack outputs
and passed into the units that depend on it, so the backend is provisioned
against the real gateway URL and the frontend against the real backend URL.

A failed stack aborts the remaining units; stacks already provisioned are
left in place.

Examples:
  # Deploy everything with a repository-connected frontend
  udrctl deploy --gateway-image $GW_IMAGE --backend-image $API_IMAGE \
    --repository udrlabs/udr-frontend --repository-token-ref udr/github-token

  # Deploy with a disconnected frontend (manual build trigger is created)
  udrctl deploy --gateway-image $GW_IMAGE --backend-image $API_IMAGE`,
	RunE: runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)
	deployCmd.Flags().BoolVar(&deployWait, "wait", true,
		"Inspect service health after each stack completes")
}

func runDeploy(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, binding, err := resolveConfig()
	if err != nil {
		return err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	resolveAccount(ctx, cfg)

	output.Header("Deploying " + cfg.StackPrefix + " stacks")
	output.KeyValue("Region", cfg.Region)
	if cfg.Account != "" {
		output.KeyValue("Account", cfg.Account)
	}
	if connected, ok := binding.(config.ConnectedSource); ok {
		output.KeyValue("Frontend source", connected.Repository)
	} else {
		output.KeyValue("Frontend source", "disconnected (manual builds)")
	}
	output.Blank()

	deployer := deploy.NewDeployerWithClient(cloudformation.NewFromConfig(awsCfg), cfg.Region)

	opts := []deploy.Option{
		deploy.WithAmplifyClient(amplify.NewFromConfig(awsCfg)),
	}
	if deployWait {
		opts = append(opts, deploy.WithECSClient(ecs.NewFromConfig(awsCfg)))
	}

	orch := deploy.NewOrchestrator(cfg, stacks.DefaultUnits(cfg, binding), deployer, slog.Default(), opts...)

	results, err := orch.Deploy(ctx)
	printDeployResults(results)
	if err != nil {
		return err
	}

	output.Blank()
	output.Successf("All %d stacks deployed", len(results))
	return nil
}

func printDeployResults(results []deploy.UnitResult) {
	total := len(results)
	for i, r := range results {
		switch {
		case r.NoChanges:
			output.StepSuccess(i+1, total, fmt.Sprintf("%s: already up to date", r.StackName))
		default:
			output.StepSuccess(i+1, total, fmt.Sprintf("%s: %s complete", r.StackName, r.Operation))
		}
		output.KeyValue("Endpoint", r.Endpoint.URL)
		if arn, ok := r.Outputs[stacks.LoadBalancerArnOutput]; ok {
			output.KeyValue("Load balancer", arn)
		}
		if r.TriggerURL != "" {
			output.KeyValue("Build trigger", r.TriggerURL)
		}
		if r.Degraded != "" {
			output.Warningf("%s", r.Degraded)
		}
	}
}

// resolveAccount fills in the target account from the active credentials
// when none was configured. Resolution failure is a warning, not an error.
func resolveAccount(ctx context.Context, cfg *config.Config) {
	if cfg.Account != "" {
		return
	}
	client, err := configaws.NewSTSClient(ctx, cfg.Region)
	if err != nil {
		output.Warningf("Could not resolve target account: %v", err)
		return
	}
	account, err := configaws.ResolveAccount(ctx, client)
	if err != nil {
		output.Warningf("Could not resolve target account: %v", err)
		return
	}
	cfg.Account = account
}
