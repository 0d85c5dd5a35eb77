package deploy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ecs"

	apperrors "github.com/udrlabs/udrctl/internal/errors"
)

// ECSClient defines the subset of the ECS API used for post-deploy health
// inspection. This interface enables mocking for unit tests.
type ECSClient interface {
	DescribeServices(
		ctx context.Context,
		params *ecs.DescribeServicesInput,
		optFns ...func(*ecs.Options),
	) (*ecs.DescribeServicesOutput, error)
}

// CheckServiceHealth inspects a deployed ECS service after provisioning.
// A service running fewer tasks than desired is in a degraded state: the
// platform keeps replacing tasks on its own, so this is surfaced as a
// non-fatal HealthCheckFailure for operator follow-up, never a rollback.
func CheckServiceHealth(ctx context.Context, client ECSClient, unit, cluster, service string) error {
	out, err := client.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  &cluster,
		Services: []string{service},
	})
	if err != nil {
		return apperrors.NewHealthCheckFailure(unit, "failed to inspect service health", err)
	}
	if len(out.Services) == 0 {
		return apperrors.NewHealthCheckFailure(unit,
			fmt.Sprintf("service %s not found in cluster %s", service, cluster), nil)
	}

	svc := out.Services[0]
	if svc.RunningCount < svc.DesiredCount {
		msg := fmt.Sprintf("service %s is degraded: %d/%d tasks running",
			service, svc.RunningCount, svc.DesiredCount)
		if len(svc.Events) > 0 && svc.Events[0].Message != nil {
			msg += " (last event: " + *svc.Events[0].Message + ")"
		}
		return apperrors.NewHealthCheckFailure(unit, msg, nil)
	}

	return nil
}
