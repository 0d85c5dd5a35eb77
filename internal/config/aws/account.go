// Package aws resolves AWS-specific context for udrctl deployments.
package aws

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// STSClient defines the subset of the STS API used to resolve the caller
// account. This interface enables mocking for unit tests.
type STSClient interface {
	GetCallerIdentity(
		ctx context.Context,
		params *sts.GetCallerIdentityInput,
		optFns ...func(*sts.Options),
	) (*sts.GetCallerIdentityOutput, error)
}

// NewSTSClient creates an STS client for the given region using the
// default AWS credential chain.
func NewSTSClient(ctx context.Context, region string) (*sts.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return sts.NewFromConfig(awsCfg), nil
}

// ResolveAccount returns the AWS account ID of the current credentials.
// Used when the deployment config does not pin an account explicitly.
func ResolveAccount(ctx context.Context, client STSClient) (string, error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to resolve caller identity: %w", err)
	}
	if out.Account == nil || *out.Account == "" {
		return "", fmt.Errorf("caller identity has no account")
	}
	return *out.Account, nil
}
