package deploy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udrlabs/udrctl/internal/constants"
)

// mockCloudFormationClient is a mock implementation of CloudFormationClient
//
//nolint:dupl // Mock struct must match interface signature
type mockCloudFormationClient struct {
	describeStacksFunc func(
		ctx context.Context,
		params *cloudformation.DescribeStacksInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.DescribeStacksOutput, error)
	describeStackEventsFunc func(
		ctx context.Context,
		params *cloudformation.DescribeStackEventsInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.DescribeStackEventsOutput, error)
	createStackFunc func(
		ctx context.Context,
		params *cloudformation.CreateStackInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.CreateStackOutput, error)
	updateStackFunc func(
		ctx context.Context,
		params *cloudformation.UpdateStackInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.UpdateStackOutput, error)
	deleteStackFunc func(
		ctx context.Context,
		params *cloudformation.DeleteStackInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.DeleteStackOutput, error)
	createChangeSetFunc func(
		ctx context.Context,
		params *cloudformation.CreateChangeSetInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.CreateChangeSetOutput, error)
	describeChangeSetFunc func(
		ctx context.Context,
		params *cloudformation.DescribeChangeSetInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.DescribeChangeSetOutput, error)
	deleteChangeSetFunc func(
		ctx context.Context,
		params *cloudformation.DeleteChangeSetInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.DeleteChangeSetOutput, error)
}

func (m *mockCloudFormationClient) DescribeStacks(
	ctx context.Context,
	params *cloudformation.DescribeStacksInput,
	optFns ...func(*cloudformation.Options),
) (*cloudformation.DescribeStacksOutput, error) {
	if m.describeStacksFunc != nil {
		return m.describeStacksFunc(ctx, params, optFns...)
	}
	return nil, errors.New("not implemented")
}

func (m *mockCloudFormationClient) DescribeStackEvents(
	ctx context.Context,
	params *cloudformation.DescribeStackEventsInput,
	optFns ...func(*cloudformation.Options),
) (*cloudformation.DescribeStackEventsOutput, error) {
	if m.describeStackEventsFunc != nil {
		return m.describeStackEventsFunc(ctx, params, optFns...)
	}
	return nil, errors.New("not implemented")
}

func (m *mockCloudFormationClient) CreateStack(
	ctx context.Context,
	params *cloudformation.CreateStackInput,
	optFns ...func(*cloudformation.Options),
) (*cloudformation.CreateStackOutput, error) {
	if m.createStackFunc != nil {
		return m.createStackFunc(ctx, params, optFns...)
	}
	return nil, errors.New("not implemented")
}

func (m *mockCloudFormationClient) UpdateStack(
	ctx context.Context,
	params *cloudformation.UpdateStackInput,
	optFns ...func(*cloudformation.Options),
) (*cloudformation.UpdateStackOutput, error) {
	if m.updateStackFunc != nil {
		return m.updateStackFunc(ctx, params, optFns...)
	}
	return nil, errors.New("not implemented")
}

func (m *mockCloudFormationClient) DeleteStack(
	ctx context.Context,
	params *cloudformation.DeleteStackInput,
	optFns ...func(*cloudformation.Options),
) (*cloudformation.DeleteStackOutput, error) {
	if m.deleteStackFunc != nil {
		return m.deleteStackFunc(ctx, params, optFns...)
	}
	return nil, errors.New("not implemented")
}

func (m *mockCloudFormationClient) CreateChangeSet(
	ctx context.Context,
	params *cloudformation.CreateChangeSetInput,
	optFns ...func(*cloudformation.Options),
) (*cloudformation.CreateChangeSetOutput, error) {
	if m.createChangeSetFunc != nil {
		return m.createChangeSetFunc(ctx, params, optFns...)
	}
	return nil, errors.New("not implemented")
}

func (m *mockCloudFormationClient) DescribeChangeSet(
	ctx context.Context,
	params *cloudformation.DescribeChangeSetInput,
	optFns ...func(*cloudformation.Options),
) (*cloudformation.DescribeChangeSetOutput, error) {
	if m.describeChangeSetFunc != nil {
		return m.describeChangeSetFunc(ctx, params, optFns...)
	}
	return nil, errors.New("not implemented")
}

func (m *mockCloudFormationClient) DeleteChangeSet(
	ctx context.Context,
	params *cloudformation.DeleteChangeSetInput,
	optFns ...func(*cloudformation.Options),
) (*cloudformation.DeleteChangeSetOutput, error) {
	if m.deleteChangeSetFunc != nil {
		return m.deleteChangeSetFunc(ctx, params, optFns...)
	}
	return nil, errors.New("not implemented")
}

func newFastDeployer(client CloudFormationClient) *Deployer {
	d := NewDeployerWithClient(client, "us-east-1")
	d.pollInterval = time.Millisecond
	d.opTimeout = 5 * time.Second
	return d
}

func stackDescription(status types.StackStatus, outputs map[string]string) *cloudformation.DescribeStacksOutput {
	stack := types.Stack{
		StackName:   aws.String("udr-gateway"),
		StackStatus: status,
	}
	for key, value := range outputs {
		stack.Outputs = append(stack.Outputs, types.Output{
			OutputKey:   aws.String(key),
			OutputValue: aws.String(value),
		})
	}
	return &cloudformation.DescribeStacksOutput{Stacks: []types.Stack{stack}}
}

func TestNewDeployerWithClient(t *testing.T) {
	mockClient := &mockCloudFormationClient{}

	deployer := NewDeployerWithClient(mockClient, "us-east-1")

	require.NotNil(t, deployer)
	assert.Equal(t, "us-east-1", deployer.Region())
	assert.Equal(t, mockClient, deployer.client)
}

func TestStackExists(t *testing.T) {
	t.Run("stack exists", func(t *testing.T) {
		mockClient := &mockCloudFormationClient{
			describeStacksFunc: func(
				_ context.Context,
				_ *cloudformation.DescribeStacksInput,
				_ ...func(*cloudformation.Options),
			) (*cloudformation.DescribeStacksOutput, error) {
				return stackDescription(types.StackStatusCreateComplete, nil), nil
			},
		}

		exists, err := newFastDeployer(mockClient).StackExists(context.Background(), "udr-gateway")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("stack does not exist", func(t *testing.T) {
		mockClient := &mockCloudFormationClient{
			describeStacksFunc: func(
				_ context.Context,
				_ *cloudformation.DescribeStacksInput,
				_ ...func(*cloudformation.Options),
			) (*cloudformation.DescribeStacksOutput, error) {
				return nil, errors.New("Stack with id udr-gateway does not exist")
			},
		}

		exists, err := newFastDeployer(mockClient).StackExists(context.Background(), "udr-gateway")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("API error propagates", func(t *testing.T) {
		mockClient := &mockCloudFormationClient{
			describeStacksFunc: func(
				_ context.Context,
				_ *cloudformation.DescribeStacksInput,
				_ ...func(*cloudformation.Options),
			) (*cloudformation.DescribeStacksOutput, error) {
				return nil, errors.New("access denied")
			},
		}

		_, err := newFastDeployer(mockClient).StackExists(context.Background(), "udr-gateway")
		assert.Error(t, err)
	})
}

func TestDeployCreatesNewStack(t *testing.T) {
	var created *cloudformation.CreateStackInput
	describeCalls := 0
	mockClient := &mockCloudFormationClient{
		describeStacksFunc: func(
			_ context.Context,
			_ *cloudformation.DescribeStacksInput,
			_ ...func(*cloudformation.Options),
		) (*cloudformation.DescribeStacksOutput, error) {
			describeCalls++
			if describeCalls == 1 {
				return nil, errors.New("Stack with id udr-gateway does not exist")
			}
			return stackDescription(types.StackStatusCreateComplete,
				map[string]string{"GatewayURL": "http://gw.example"}), nil
		},
		createStackFunc: func(
			_ context.Context,
			params *cloudformation.CreateStackInput,
			_ ...func(*cloudformation.Options),
		) (*cloudformation.CreateStackOutput, error) {
			created = params
			return &cloudformation.CreateStackOutput{StackId: aws.String("arn:stack/udr-gateway")}, nil
		},
	}

	result, err := newFastDeployer(mockClient).Deploy(context.Background(), "udr-gateway", "Resources: {}")
	require.NoError(t, err)

	assert.Equal(t, "CREATE", result.OperationType)
	assert.Equal(t, string(types.StackStatusCreateComplete), result.Status)
	assert.Equal(t, "http://gw.example", result.Outputs["GatewayURL"])
	assert.False(t, result.NoChanges)

	require.NotNil(t, created)
	assert.Equal(t, "udr-gateway", *created.StackName)
	assert.Contains(t, created.Capabilities, types.CapabilityCapabilityNamedIam)
	require.Len(t, created.Tags, 1)
	assert.Equal(t, constants.ManagedByTagKey, *created.Tags[0].Key)
	assert.Equal(t, constants.ManagedByTagValue, *created.Tags[0].Value)
}

func TestDeployUpdatesExistingStack(t *testing.T) {
	updateCalled := false
	mockClient := &mockCloudFormationClient{
		describeStacksFunc: func(
			_ context.Context,
			_ *cloudformation.DescribeStacksInput,
			_ ...func(*cloudformation.Options),
		) (*cloudformation.DescribeStacksOutput, error) {
			return stackDescription(types.StackStatusUpdateComplete,
				map[string]string{"GatewayURL": "http://gw.example"}), nil
		},
		updateStackFunc: func(
			_ context.Context,
			params *cloudformation.UpdateStackInput,
			_ ...func(*cloudformation.Options),
		) (*cloudformation.UpdateStackOutput, error) {
			updateCalled = true
			assert.Equal(t, "udr-gateway", *params.StackName)
			return &cloudformation.UpdateStackOutput{}, nil
		},
	}

	result, err := newFastDeployer(mockClient).Deploy(context.Background(), "udr-gateway", "Resources: {}")
	require.NoError(t, err)
	assert.True(t, updateCalled)
	assert.Equal(t, "UPDATE", result.OperationType)
	assert.Equal(t, string(types.StackStatusUpdateComplete), result.Status)
}

func TestDeployNoChanges(t *testing.T) {
	mockClient := &mockCloudFormationClient{
		describeStacksFunc: func(
			_ context.Context,
			_ *cloudformation.DescribeStacksInput,
			_ ...func(*cloudformation.Options),
		) (*cloudformation.DescribeStacksOutput, error) {
			return stackDescription(types.StackStatusUpdateComplete,
				map[string]string{"GatewayURL": "http://gw.example"}), nil
		},
		updateStackFunc: func(
			_ context.Context,
			_ *cloudformation.UpdateStackInput,
			_ ...func(*cloudformation.Options),
		) (*cloudformation.UpdateStackOutput, error) {
			return nil, errors.New("ValidationError: No updates are to be performed.")
		},
	}

	result, err := newFastDeployer(mockClient).Deploy(context.Background(), "udr-gateway", "Resources: {}")
	require.NoError(t, err)
	assert.True(t, result.NoChanges)
	assert.Equal(t, "NO_CHANGES", result.Status)
	assert.Equal(t, "http://gw.example", result.Outputs["GatewayURL"])
}

func TestDeployReportsResourceFailures(t *testing.T) {
	describeCalls := 0
	mockClient := &mockCloudFormationClient{
		describeStacksFunc: func(
			_ context.Context,
			_ *cloudformation.DescribeStacksInput,
			_ ...func(*cloudformation.Options),
		) (*cloudformation.DescribeStacksOutput, error) {
			describeCalls++
			if describeCalls == 1 {
				return nil, errors.New("Stack with id udr-backend does not exist")
			}
			out := stackDescription(types.StackStatusRollbackComplete, nil)
			out.Stacks[0].StackStatusReason = aws.String("The following resource(s) failed to create: [Service]")
			return out, nil
		},
		createStackFunc: func(
			_ context.Context,
			_ *cloudformation.CreateStackInput,
			_ ...func(*cloudformation.Options),
		) (*cloudformation.CreateStackOutput, error) {
			return &cloudformation.CreateStackOutput{}, nil
		},
		describeStackEventsFunc: func(
			_ context.Context,
			_ *cloudformation.DescribeStackEventsInput,
			_ ...func(*cloudformation.Options),
		) (*cloudformation.DescribeStackEventsOutput, error) {
			return &cloudformation.DescribeStackEventsOutput{
				StackEvents: []types.StackEvent{
					{
						LogicalResourceId:    aws.String("Service"),
						ResourceType:         aws.String("AWS::ECS::Service"),
						ResourceStatus:       types.ResourceStatusCreateFailed,
						ResourceStatusReason: aws.String("Health check failed"),
					},
				},
			}, nil
		},
	}

	_, err := newFastDeployer(mockClient).Deploy(context.Background(), "udr-backend", "Resources: {}")
	require.Error(t, err)
	assert.ErrorContains(t, err, "ROLLBACK_COMPLETE")
	assert.ErrorContains(t, err, "Service (AWS::ECS::Service): Health check failed")
}

func TestDestroy(t *testing.T) {
	t.Run("deletes existing stack", func(t *testing.T) {
		deleteCalled := false
		describeCalls := 0
		mockClient := &mockCloudFormationClient{
			describeStacksFunc: func(
				_ context.Context,
				_ *cloudformation.DescribeStacksInput,
				_ ...func(*cloudformation.Options),
			) (*cloudformation.DescribeStacksOutput, error) {
				describeCalls++
				if describeCalls == 1 {
					return stackDescription(types.StackStatusCreateComplete, nil), nil
				}
				return nil, errors.New("Stack with id udr-frontend does not exist")
			},
			deleteStackFunc: func(
				_ context.Context,
				params *cloudformation.DeleteStackInput,
				_ ...func(*cloudformation.Options),
			) (*cloudformation.DeleteStackOutput, error) {
				deleteCalled = true
				assert.Equal(t, "udr-frontend", *params.StackName)
				return &cloudformation.DeleteStackOutput{}, nil
			},
		}

		notFound, err := newFastDeployer(mockClient).Destroy(context.Background(), "udr-frontend")
		require.NoError(t, err)
		assert.False(t, notFound)
		assert.True(t, deleteCalled)
	})

	t.Run("reports absent stack without error", func(t *testing.T) {
		mockClient := &mockCloudFormationClient{
			describeStacksFunc: func(
				_ context.Context,
				_ *cloudformation.DescribeStacksInput,
				_ ...func(*cloudformation.Options),
			) (*cloudformation.DescribeStacksOutput, error) {
				return nil, errors.New("Stack with id udr-frontend does not exist")
			},
			deleteStackFunc: func(
				_ context.Context,
				_ *cloudformation.DeleteStackInput,
				_ ...func(*cloudformation.Options),
			) (*cloudformation.DeleteStackOutput, error) {
				t.Fatal("DeleteStack should not be called for an absent stack")
				return nil, nil
			},
		}

		notFound, err := newFastDeployer(mockClient).Destroy(context.Background(), "udr-frontend")
		require.NoError(t, err)
		assert.True(t, notFound)
	})
}

func TestStackOutputs(t *testing.T) {
	mockClient := &mockCloudFormationClient{
		describeStacksFunc: func(
			_ context.Context,
			params *cloudformation.DescribeStacksInput,
			_ ...func(*cloudformation.Options),
		) (*cloudformation.DescribeStacksOutput, error) {
			assert.Equal(t, "udr-backend", *params.StackName)
			return stackDescription(types.StackStatusCreateComplete, map[string]string{
				"BackendURL":      "http://backend.example",
				"LoadBalancerArn": "arn:aws:elasticloadbalancing:us-east-1:123456789012:loadbalancer/app/b/1",
			}), nil
		},
	}

	outputs, err := newFastDeployer(mockClient).StackOutputs(context.Background(), "udr-backend")
	require.NoError(t, err)
	assert.Equal(t, "http://backend.example", outputs["BackendURL"])
	assert.Len(t, outputs, 2)
}
