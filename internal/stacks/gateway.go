package stacks

import (
	"github.com/udrlabs/udrctl/internal/cfn"
	"github.com/udrlabs/udrctl/internal/config"
	"github.com/udrlabs/udrctl/internal/constants"
)

// GatewayURLOutput is the gateway stack output holding its public URL.
const GatewayURLOutput = "GatewayURL"

// GatewayUnit provisions the LLM translation gateway: an isolated network,
// an ECS cluster running a single-container Fargate service, and a public
// load balancer routing port 80 to the container. It has no predecessors;
// its sole output is the gateway URL.
type GatewayUnit struct {
	cfg *config.Config
}

// NewGatewayUnit creates the gateway unit from a resolved configuration.
func NewGatewayUnit(cfg *config.Config) *GatewayUnit {
	return &GatewayUnit{cfg: cfg}
}

// Name implements Unit.
func (u *GatewayUnit) Name() string { return UnitGateway }

// DependsOn implements Unit. The gateway is the root of the chain.
func (u *GatewayUnit) DependsOn() []string { return nil }

// EndpointOutput implements Unit.
func (u *GatewayUnit) EndpointOutput() string { return GatewayURLOutput }

// Template implements Unit.
func (u *GatewayUnit) Template(_ Inputs) (*cfn.Template, error) {
	t := cfn.NewTemplate("UDR translation gateway: OpenAI-compatible chat completions API on ECS Fargate behind a public ALB")

	err := addLoadBalancedService(t, serviceSpec{
		ContainerName: "gateway",
		Image:         u.cfg.GatewayImage,
		ContainerPort: constants.GatewayContainerPort,
		PublicPort:    constants.PublicHTTPPort,
	})
	if err != nil {
		return nil, err
	}

	serviceOutputs(t, GatewayURLOutput, "http")

	return t, nil
}
