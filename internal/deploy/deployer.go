// Package deploy orchestrates provisioning of the deployment units:
// strict sequential ordering, output propagation between units, reverse
// teardown and read-only diffing against deployed state.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	"github.com/udrlabs/udrctl/internal/constants"
)

const (
	stackPollInterval     = 5 * time.Second
	stackOperationTimeout = 30 * time.Minute
)

// CloudFormationClient defines the interface for CloudFormation operations.
// This interface enables mocking for unit tests.
type CloudFormationClient interface {
	DescribeStacks(
		ctx context.Context,
		params *cloudformation.DescribeStacksInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.DescribeStacksOutput, error)
	DescribeStackEvents(
		ctx context.Context,
		params *cloudformation.DescribeStackEventsInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.DescribeStackEventsOutput, error)
	CreateStack(
		ctx context.Context,
		params *cloudformation.CreateStackInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.CreateStackOutput, error)
	UpdateStack(
		ctx context.Context,
		params *cloudformation.UpdateStackInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.UpdateStackOutput, error)
	DeleteStack(
		ctx context.Context,
		params *cloudformation.DeleteStackInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.DeleteStackOutput, error)
	CreateChangeSet(
		ctx context.Context,
		params *cloudformation.CreateChangeSetInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.CreateChangeSetOutput, error)
	DescribeChangeSet(
		ctx context.Context,
		params *cloudformation.DescribeChangeSetInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.DescribeChangeSetOutput, error)
	DeleteChangeSet(
		ctx context.Context,
		params *cloudformation.DeleteChangeSetInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.DeleteChangeSetOutput, error)
}

// StackResult describes the outcome of a stack create/update.
type StackResult struct {
	StackName     string
	OperationType string // "CREATE" or "UPDATE"
	Status        string
	Outputs       map[string]string
	NoChanges     bool // True if stack was already up to date
}

// Deployer drives CloudFormation for a single region.
type Deployer struct {
	client CloudFormationClient
	region string

	pollInterval time.Duration
	opTimeout    time.Duration
}

// NewDeployer creates a Deployer for the given region using the default
// AWS credential chain.
func NewDeployer(ctx context.Context, region string) (*Deployer, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return NewDeployerWithClient(cloudformation.NewFromConfig(awsCfg), awsCfg.Region), nil
}

// NewDeployerWithClient creates a Deployer with a custom client (for testing).
func NewDeployerWithClient(client CloudFormationClient, region string) *Deployer {
	return &Deployer{
		client:       client,
		region:       region,
		pollInterval: stackPollInterval,
		opTimeout:    stackOperationTimeout,
	}
}

// Region returns the AWS region being used.
func (d *Deployer) Region() string {
	return d.region
}

// Deploy creates or updates a stack from the given template body and waits
// for the operation to reach a terminal state.
func (d *Deployer) Deploy(ctx context.Context, stackName, templateBody string) (*StackResult, error) {
	stackExists, err := d.StackExists(ctx, stackName)
	if err != nil {
		return nil, fmt.Errorf("failed to check stack status: %w", err)
	}

	result := &StackResult{
		StackName: stackName,
		Outputs:   make(map[string]string),
	}

	if stackExists {
		result.OperationType = "UPDATE"
		err = d.updateStack(ctx, stackName, templateBody)
	} else {
		result.OperationType = "CREATE"
		err = d.createStack(ctx, stackName, templateBody)
	}
	if err != nil {
		if strings.Contains(err.Error(), "No updates are to be performed") {
			result.NoChanges = true
			result.Status = "NO_CHANGES"
			outputs, outErr := d.StackOutputs(ctx, stackName)
			if outErr == nil {
				result.Outputs = outputs
			}
			return result, nil
		}
		return nil, fmt.Errorf("failed to %s stack: %w", strings.ToLower(result.OperationType), err)
	}

	finalStatus, err := d.waitForStackOperation(ctx, stackName)
	if err != nil {
		return nil, fmt.Errorf("stack operation failed: %w", err)
	}
	result.Status = finalStatus

	outputs, err := d.StackOutputs(ctx, stackName)
	if err != nil {
		return result, fmt.Errorf("stack deployment succeeded but failed to retrieve outputs: %w", err)
	}
	result.Outputs = outputs

	return result, nil
}

// StackExists checks if a CloudFormation stack exists.
func (d *Deployer) StackExists(ctx context.Context, stackName string) (bool, error) {
	_, err := d.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (d *Deployer) createStack(ctx context.Context, stackName, templateBody string) error {
	_, err := d.client.CreateStack(ctx, &cloudformation.CreateStackInput{
		StackName:    aws.String(stackName),
		TemplateBody: aws.String(templateBody),
		Capabilities: []types.Capability{types.CapabilityCapabilityNamedIam},
		Tags: []types.Tag{
			{
				Key:   aws.String(constants.ManagedByTagKey),
				Value: aws.String(constants.ManagedByTagValue),
			},
		},
	})
	return err
}

func (d *Deployer) updateStack(ctx context.Context, stackName, templateBody string) error {
	_, err := d.client.UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:    aws.String(stackName),
		TemplateBody: aws.String(templateBody),
		Capabilities: []types.Capability{types.CapabilityCapabilityNamedIam},
	})
	return err
}

// waitForStackOperation waits for a stack create/update to complete.
func (d *Deployer) waitForStackOperation(ctx context.Context, stackName string) (string, error) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	timeout := time.After(d.opTimeout)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timeout:
			return "", errors.New("timeout waiting for stack operation")
		case <-ticker.C:
			status, statusReason, err := d.stackStatus(ctx, stackName)
			if err != nil {
				return "", err
			}

			switch types.StackStatus(status) {
			case types.StackStatusCreateComplete, types.StackStatusUpdateComplete:
				return status, nil
			case types.StackStatusCreateFailed, types.StackStatusRollbackComplete,
				types.StackStatusRollbackFailed, types.StackStatusUpdateRollbackComplete,
				types.StackStatusUpdateRollbackFailed, types.StackStatusDeleteComplete,
				types.StackStatusDeleteFailed, types.StackStatusUpdateFailed:
				failureDetails := d.failedResourceEvents(ctx, stackName)
				if failureDetails != "" {
					return status, fmt.Errorf(
						"stack operation failed with status %s: %s\n\nResource failures:\n%s",
						status, statusReason, failureDetails)
				}
				return status, fmt.Errorf("stack operation failed with status %s: %s", status, statusReason)
			default:
				// Still in progress.
			}
		}
	}
}

// stackStatus returns the current status of a stack.
func (d *Deployer) stackStatus(ctx context.Context, stackName string) (status, reason string, err error) {
	result, err := d.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return
	}

	if len(result.Stacks) == 0 {
		err = errors.New("stack not found")
		return
	}

	status = string(result.Stacks[0].StackStatus)
	if result.Stacks[0].StackStatusReason != nil {
		reason = *result.Stacks[0].StackStatusReason
	}

	return
}

// failedResourceEvents retrieves detailed failure information from stack events.
func (d *Deployer) failedResourceEvents(ctx context.Context, stackName string) string {
	result, err := d.client.DescribeStackEvents(ctx, &cloudformation.DescribeStackEventsInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return ""
	}

	var failures []string
	for i := range result.StackEvents {
		event := &result.StackEvents[i]
		status := string(event.ResourceStatus)
		if !strings.Contains(status, "FAILED") {
			continue
		}
		if event.ResourceStatusReason == nil || *event.ResourceStatusReason == "" {
			continue
		}

		resourceID := ""
		if event.LogicalResourceId != nil {
			resourceID = *event.LogicalResourceId
		}
		resourceType := ""
		if event.ResourceType != nil {
			resourceType = *event.ResourceType
		}
		failures = append(failures, fmt.Sprintf("  - %s (%s): %s",
			resourceID, resourceType, *event.ResourceStatusReason))
	}

	return strings.Join(failures, "\n")
}

// StackOutputs retrieves the outputs from a CloudFormation stack.
func (d *Deployer) StackOutputs(ctx context.Context, stackName string) (map[string]string, error) {
	result, err := d.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return nil, err
	}

	if len(result.Stacks) == 0 {
		return nil, errors.New("stack not found")
	}

	outputs := make(map[string]string)
	for _, out := range result.Stacks[0].Outputs {
		if out.OutputKey != nil && out.OutputValue != nil {
			outputs[*out.OutputKey] = *out.OutputValue
		}
	}

	return outputs, nil
}

// Destroy deletes a stack and waits for deletion. Returns notFound=true
// without error when the stack does not exist.
func (d *Deployer) Destroy(ctx context.Context, stackName string) (notFound bool, err error) {
	exists, err := d.StackExists(ctx, stackName)
	if err != nil {
		return false, fmt.Errorf("failed to check stack status: %w", err)
	}
	if !exists {
		return true, nil
	}

	_, err = d.client.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete stack: %w", err)
	}

	if err := d.waitForStackDeletion(ctx, stackName); err != nil {
		return false, fmt.Errorf("stack deletion failed: %w", err)
	}

	return false, nil
}

// waitForStackDeletion waits for a stack deletion to complete.
func (d *Deployer) waitForStackDeletion(ctx context.Context, stackName string) error {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	timeout := time.After(d.opTimeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return errors.New("timeout waiting for stack deletion")
		case <-ticker.C:
			status, statusReason, err := d.stackStatus(ctx, stackName)
			if err != nil {
				if strings.Contains(err.Error(), "does not exist") {
					return nil
				}
				return err
			}

			switch types.StackStatus(status) {
			case types.StackStatusDeleteComplete:
				return nil
			case types.StackStatusDeleteFailed:
				failureDetails := d.failedResourceEvents(ctx, stackName)
				if failureDetails != "" {
					return fmt.Errorf(
						"stack deletion failed with status %s: %s\n\nResource failures:\n%s",
						status, statusReason, failureDetails)
				}
				return fmt.Errorf("stack deletion failed with status %s: %s", status, statusReason)
			case types.StackStatusDeleteInProgress:
				// Keep polling.
			default:
				return fmt.Errorf("unexpected stack status during deletion: %s", status)
			}
		}
	}
}
