package stacks

import (
	"fmt"
	"sort"

	"github.com/udrlabs/udrctl/internal/cfn"
)

// containerSecret injects a secret store entry into the container by
// reference. The plaintext value never appears in the template.
type containerSecret struct {
	EnvName   string
	ValueFrom any // Ref or ARN of the secret
}

// healthCheckSpec tunes the target group probe and the service startup
// grace period before the first failed check counts.
type healthCheckSpec struct {
	Path               string
	IntervalSeconds    int
	TimeoutSeconds     int
	UnhealthyThreshold int
	GracePeriodSeconds int
}

// serviceSpec describes one public load-balanced Fargate service: an
// isolated network, a cluster, a single-container task and an ALB routing
// the public HTTP port to the container port.
type serviceSpec struct {
	ContainerName string
	Image         string
	ContainerPort int
	PublicPort    int
	Environment   map[string]string
	Secrets       []containerSecret
	HealthCheck   *healthCheckSpec
	// ExtraExecutionPolicies are inline policies attached to the task
	// execution role (e.g. secret read access).
	ExtraExecutionPolicies []map[string]any
}

// addLoadBalancedService declares the full resource set for a serviceSpec
// on the given template. Callers add their own outputs and extra resources.
func addLoadBalancedService(t *cfn.Template, spec serviceSpec) error {
	if err := validateSpec(spec); err != nil {
		return err
	}

	t.Parameters["ContainerImage"] = cfn.Parameter{
		Type:        "String",
		Description: "Container image for the " + spec.ContainerName + " service",
		Default:     spec.Image,
	}

	if err := addNetwork(t, spec); err != nil {
		return err
	}

	resources := map[string]cfn.Resource{
		"Cluster": {
			Type: "AWS::ECS::Cluster",
			Properties: map[string]any{
				"ClusterName": cfn.Sub{Expr: "${AWS::StackName}-cluster"},
			},
		},
		"LogGroup": {
			Type: "AWS::Logs::LogGroup",
			Properties: map[string]any{
				"LogGroupName":    cfn.Sub{Expr: "/ecs/${AWS::StackName}"},
				"RetentionInDays": 30,
			},
		},
		"TaskExecutionRole": {
			Type:       "AWS::IAM::Role",
			Properties: executionRoleProperties(spec),
		},
		"TaskDefinition": {
			Type:       "AWS::ECS::TaskDefinition",
			Properties: taskDefinitionProperties(spec),
		},
		"LoadBalancer": {
			Type: "AWS::ElasticLoadBalancingV2::LoadBalancer",
			Properties: map[string]any{
				"Type":           "application",
				"Scheme":         "internet-facing",
				"Subnets":        []any{cfn.Ref{Logical: "PublicSubnetOne"}, cfn.Ref{Logical: "PublicSubnetTwo"}},
				"SecurityGroups": []any{cfn.Ref{Logical: "LoadBalancerSecurityGroup"}},
			},
		},
		"TargetGroup": {
			Type:       "AWS::ElasticLoadBalancingV2::TargetGroup",
			Properties: targetGroupProperties(spec),
		},
		"Listener": {
			Type: "AWS::ElasticLoadBalancingV2::Listener",
			Properties: map[string]any{
				"LoadBalancerArn": cfn.Ref{Logical: "LoadBalancer"},
				"Port":            spec.PublicPort,
				"Protocol":        "HTTP",
				"DefaultActions": []any{
					map[string]any{
						"Type":           "forward",
						"TargetGroupArn": cfn.Ref{Logical: "TargetGroup"},
					},
				},
			},
		},
		"Service": {
			Type:       "AWS::ECS::Service",
			Properties: serviceProperties(spec),
			// The service registers targets, so the listener must exist first.
			DependsOn: []string{"Listener"},
		},
	}

	for logicalID, res := range resources {
		if err := t.AddResource(logicalID, res); err != nil {
			return err
		}
	}

	return nil
}

func addNetwork(t *cfn.Template, spec serviceSpec) error {
	resources := map[string]cfn.Resource{
		"VPC": {
			Type: "AWS::EC2::VPC",
			Properties: map[string]any{
				"CidrBlock":          "10.0.0.0/16",
				"EnableDnsSupport":   true,
				"EnableDnsHostnames": true,
				"Tags":               []any{cfn.Tag{Key: "Name", Value: cfn.Sub{Expr: "${AWS::StackName}-vpc"}}},
			},
		},
		"InternetGateway": {
			Type: "AWS::EC2::InternetGateway",
		},
		"GatewayAttachment": {
			Type: "AWS::EC2::VPCGatewayAttachment",
			Properties: map[string]any{
				"VpcId":             cfn.Ref{Logical: "VPC"},
				"InternetGatewayId": cfn.Ref{Logical: "InternetGateway"},
			},
		},
		"PublicSubnetOne": {
			Type: "AWS::EC2::Subnet",
			Properties: map[string]any{
				"VpcId":               cfn.Ref{Logical: "VPC"},
				"CidrBlock":           "10.0.0.0/24",
				"AvailabilityZone":    cfn.Select{Index: 0, Values: cfn.GetAZs{}},
				"MapPublicIpOnLaunch": true,
			},
		},
		"PublicSubnetTwo": {
			Type: "AWS::EC2::Subnet",
			Properties: map[string]any{
				"VpcId":               cfn.Ref{Logical: "VPC"},
				"CidrBlock":           "10.0.1.0/24",
				"AvailabilityZone":    cfn.Select{Index: 1, Values: cfn.GetAZs{}},
				"MapPublicIpOnLaunch": true,
			},
		},
		"PublicRouteTable": {
			Type: "AWS::EC2::RouteTable",
			Properties: map[string]any{
				"VpcId": cfn.Ref{Logical: "VPC"},
			},
		},
		"PublicRoute": {
			Type: "AWS::EC2::Route",
			Properties: map[string]any{
				"RouteTableId":         cfn.Ref{Logical: "PublicRouteTable"},
				"DestinationCidrBlock": "0.0.0.0/0",
				"GatewayId":            cfn.Ref{Logical: "InternetGateway"},
			},
			DependsOn: []string{"GatewayAttachment"},
		},
		"SubnetOneRouteAssociation": {
			Type: "AWS::EC2::SubnetRouteTableAssociation",
			Properties: map[string]any{
				"SubnetId":     cfn.Ref{Logical: "PublicSubnetOne"},
				"RouteTableId": cfn.Ref{Logical: "PublicRouteTable"},
			},
		},
		"SubnetTwoRouteAssociation": {
			Type: "AWS::EC2::SubnetRouteTableAssociation",
			Properties: map[string]any{
				"SubnetId":     cfn.Ref{Logical: "PublicSubnetTwo"},
				"RouteTableId": cfn.Ref{Logical: "PublicRouteTable"},
			},
		},
		"LoadBalancerSecurityGroup": {
			Type: "AWS::EC2::SecurityGroup",
			Properties: map[string]any{
				"GroupDescription": "Public HTTP access to the load balancer",
				"VpcId":            cfn.Ref{Logical: "VPC"},
				"SecurityGroupIngress": []any{
					map[string]any{
						"IpProtocol": "tcp",
						"FromPort":   spec.PublicPort,
						"ToPort":     spec.PublicPort,
						"CidrIp":     "0.0.0.0/0",
					},
				},
			},
		},
		"ServiceSecurityGroup": {
			Type: "AWS::EC2::SecurityGroup",
			Properties: map[string]any{
				"GroupDescription": "Container traffic from the load balancer only",
				"VpcId":            cfn.Ref{Logical: "VPC"},
				"SecurityGroupIngress": []any{
					map[string]any{
						"IpProtocol":            "tcp",
						"FromPort":              spec.ContainerPort,
						"ToPort":                spec.ContainerPort,
						"SourceSecurityGroupId": cfn.Ref{Logical: "LoadBalancerSecurityGroup"},
					},
				},
			},
		},
	}

	for logicalID, res := range resources {
		if err := t.AddResource(logicalID, res); err != nil {
			return err
		}
	}

	return nil
}

func executionRoleProperties(spec serviceSpec) map[string]any {
	props := map[string]any{
		"AssumeRolePolicyDocument": map[string]any{
			"Version": "2012-10-17",
			"Statement": []any{
				map[string]any{
					"Effect":    "Allow",
					"Principal": map[string]any{"Service": "ecs-tasks.amazonaws.com"},
					"Action":    "sts:AssumeRole",
				},
			},
		},
		"ManagedPolicyArns": []any{
			"arn:aws:iam::aws:policy/service-role/AmazonECSTaskExecutionRolePolicy",
		},
	}

	if len(spec.ExtraExecutionPolicies) > 0 {
		policies := make([]any, 0, len(spec.ExtraExecutionPolicies))
		for _, p := range spec.ExtraExecutionPolicies {
			policies = append(policies, p)
		}
		props["Policies"] = policies
	}

	return props
}

func taskDefinitionProperties(spec serviceSpec) map[string]any {
	container := map[string]any{
		"Name":  spec.ContainerName,
		"Image": cfn.Ref{Logical: "ContainerImage"},
		"PortMappings": []any{
			map[string]any{
				"ContainerPort": spec.ContainerPort,
				"Protocol":      "tcp",
			},
		},
		"LogConfiguration": map[string]any{
			"LogDriver": "awslogs",
			"Options": map[string]any{
				"awslogs-group":         cfn.Ref{Logical: "LogGroup"},
				"awslogs-region":        cfn.Ref{Logical: "AWS::Region"},
				"awslogs-stream-prefix": spec.ContainerName,
			},
		},
	}

	if len(spec.Environment) > 0 {
		container["Environment"] = environmentList(spec.Environment)
	}

	if len(spec.Secrets) > 0 {
		secretEntries := make([]any, 0, len(spec.Secrets))
		for _, s := range spec.Secrets {
			secretEntries = append(secretEntries, map[string]any{
				"Name":      s.EnvName,
				"ValueFrom": s.ValueFrom,
			})
		}
		container["Secrets"] = secretEntries
	}

	return map[string]any{
		"Family":                  cfn.Sub{Expr: "${AWS::StackName}-task"},
		"Cpu":                     "512",
		"Memory":                  "1024",
		"NetworkMode":             "awsvpc",
		"RequiresCompatibilities": []any{"FARGATE"},
		"ExecutionRoleArn":        cfn.GetAtt{Logical: "TaskExecutionRole", Attribute: "Arn"},
		"ContainerDefinitions":    []any{container},
	}
}

func targetGroupProperties(spec serviceSpec) map[string]any {
	props := map[string]any{
		"VpcId":      cfn.Ref{Logical: "VPC"},
		"Port":       spec.ContainerPort,
		"Protocol":   "HTTP",
		"TargetType": "ip",
	}

	if hc := spec.HealthCheck; hc != nil {
		props["HealthCheckPath"] = hc.Path
		props["HealthCheckIntervalSeconds"] = hc.IntervalSeconds
		props["HealthCheckTimeoutSeconds"] = hc.TimeoutSeconds
		props["UnhealthyThresholdCount"] = hc.UnhealthyThreshold
	}

	return props
}

func serviceProperties(spec serviceSpec) map[string]any {
	props := map[string]any{
		"ServiceName":    cfn.Sub{Expr: "${AWS::StackName}-service"},
		"Cluster":        cfn.Ref{Logical: "Cluster"},
		"LaunchType":     "FARGATE",
		"DesiredCount":   1,
		"TaskDefinition": cfn.Ref{Logical: "TaskDefinition"},
		"NetworkConfiguration": map[string]any{
			"AwsvpcConfiguration": map[string]any{
				"AssignPublicIp": "ENABLED",
				"Subnets":        []any{cfn.Ref{Logical: "PublicSubnetOne"}, cfn.Ref{Logical: "PublicSubnetTwo"}},
				"SecurityGroups": []any{cfn.Ref{Logical: "ServiceSecurityGroup"}},
			},
		},
		"LoadBalancers": []any{
			map[string]any{
				"ContainerName":  spec.ContainerName,
				"ContainerPort":  spec.ContainerPort,
				"TargetGroupArn": cfn.Ref{Logical: "TargetGroup"},
			},
		},
	}

	if hc := spec.HealthCheck; hc != nil && hc.GracePeriodSeconds > 0 {
		props["HealthCheckGracePeriodSeconds"] = hc.GracePeriodSeconds
	}

	return props
}

// environmentList renders a container environment as the CloudFormation
// Name/Value list, sorted for deterministic templates.
func environmentList(env map[string]string) []any {
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]any, 0, len(names))
	for _, name := range names {
		entries = append(entries, map[string]any{
			"Name":  name,
			"Value": env[name],
		})
	}
	return entries
}

// serviceOutputs are the outputs every load-balanced service unit exposes
// alongside its URL, used for post-deploy service health inspection.
func serviceOutputs(t *cfn.Template, urlKey, scheme string) {
	t.Outputs[urlKey] = cfn.Output{
		Description: "Public URL of the service",
		Value:       cfn.Join{Delimiter: "", Values: []any{scheme + "://", cfn.GetAtt{Logical: "LoadBalancer", Attribute: "DNSName"}}},
	}
	t.Outputs["ClusterName"] = cfn.Output{
		Description: "ECS cluster running the service",
		Value:       cfn.Ref{Logical: "Cluster"},
	}
	t.Outputs["ServiceName"] = cfn.Output{
		Description: "ECS service name",
		Value:       cfn.GetAtt{Logical: "Service", Attribute: "Name"},
	}
}

// validateSpec catches programming errors before template assembly.
func validateSpec(spec serviceSpec) error {
	if spec.ContainerName == "" {
		return fmt.Errorf("service spec requires a container name")
	}
	if spec.ContainerPort <= 0 || spec.PublicPort <= 0 {
		return fmt.Errorf("service spec requires container and public ports")
	}
	return nil
}
