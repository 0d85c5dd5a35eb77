package deploy

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/udrlabs/udrctl/internal/errors"
)

type mockECSClient struct {
	describeServicesFunc func(
		ctx context.Context,
		params *ecs.DescribeServicesInput,
		optFns ...func(*ecs.Options),
	) (*ecs.DescribeServicesOutput, error)
}

func (m *mockECSClient) DescribeServices(
	ctx context.Context,
	params *ecs.DescribeServicesInput,
	optFns ...func(*ecs.Options),
) (*ecs.DescribeServicesOutput, error) {
	return m.describeServicesFunc(ctx, params, optFns...)
}

func ecsServiceOutput(running, desired int32, events ...string) *ecs.DescribeServicesOutput {
	svc := ecstypes.Service{
		RunningCount: running,
		DesiredCount: desired,
	}
	for _, msg := range events {
		svc.Events = append(svc.Events, ecstypes.ServiceEvent{Message: aws.String(msg)})
	}
	return &ecs.DescribeServicesOutput{Services: []ecstypes.Service{svc}}
}

func TestCheckServiceHealthHealthy(t *testing.T) {
	client := &mockECSClient{
		describeServicesFunc: func(
			_ context.Context,
			params *ecs.DescribeServicesInput,
			_ ...func(*ecs.Options),
		) (*ecs.DescribeServicesOutput, error) {
			assert.Equal(t, "udr-backend-cluster", *params.Cluster)
			require.Len(t, params.Services, 1)
			assert.Equal(t, "udr-backend-svc", params.Services[0])
			return ecsServiceOutput(1, 1), nil
		},
	}

	err := CheckServiceHealth(context.Background(), client, "backend", "udr-backend-cluster", "udr-backend-svc")
	assert.NoError(t, err)
}

func TestCheckServiceHealthDegraded(t *testing.T) {
	client := &mockECSClient{
		describeServicesFunc: func(
			_ context.Context,
			_ *ecs.DescribeServicesInput,
			_ ...func(*ecs.Options),
		) (*ecs.DescribeServicesOutput, error) {
			return ecsServiceOutput(0, 1, "task stopped: essential container exited"), nil
		},
	}

	err := CheckServiceHealth(context.Background(), client, "backend", "cluster", "svc")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindHealthCheck, apperrors.GetKind(err))
	assert.False(t, apperrors.IsFatal(err))
	assert.Contains(t, err.Error(), "0/1 tasks running")
	assert.Contains(t, err.Error(), "essential container exited")
}

func TestCheckServiceHealthServiceMissing(t *testing.T) {
	client := &mockECSClient{
		describeServicesFunc: func(
			_ context.Context,
			_ *ecs.DescribeServicesInput,
			_ ...func(*ecs.Options),
		) (*ecs.DescribeServicesOutput, error) {
			return &ecs.DescribeServicesOutput{}, nil
		},
	}

	err := CheckServiceHealth(context.Background(), client, "gateway", "cluster", "svc")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindHealthCheck, apperrors.GetKind(err))
	assert.Contains(t, err.Error(), "not found")
}

func TestCheckServiceHealthAPIError(t *testing.T) {
	client := &mockECSClient{
		describeServicesFunc: func(
			_ context.Context,
			_ *ecs.DescribeServicesInput,
			_ ...func(*ecs.Options),
		) (*ecs.DescribeServicesOutput, error) {
			return nil, errors.New("throttled")
		},
	}

	err := CheckServiceHealth(context.Background(), client, "gateway", "cluster", "svc")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindHealthCheck, apperrors.GetKind(err))
	assert.ErrorContains(t, err, "throttled")
}
