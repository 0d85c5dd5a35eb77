package stacks

import (
	"strconv"

	"github.com/udrlabs/udrctl/internal/cfn"
	"github.com/udrlabs/udrctl/internal/config"
	"github.com/udrlabs/udrctl/internal/constants"
)

// Backend stack output keys.
const (
	BackendURLOutput      = "BackendURL"
	LoadBalancerArnOutput = "LoadBalancerArn"
)

// Backend container environment. The gateway URL is baked in at
// provisioning time; changing the gateway requires re-provisioning.
const (
	backendHost            = "0.0.0.0"
	backendLogLevel        = "info"
	backendMaxInputTokens  = "65536"
	backendMaxOutputTokens = "8192"
)

// listenerRulePriority orders the frontend-origin rule ahead of the
// default forward action.
const listenerRulePriority = 100

// BackendUnit provisions the research backend API: the same load-balanced
// Fargate shape as the gateway, plus two placeholder secrets the operator
// fills in after deployment, the gateway URL injected as upstream
// configuration, a tuned health probe, and a listener rule that routes
// requests originating from the hosted frontend with priority.
type BackendUnit struct {
	cfg *config.Config
}

// NewBackendUnit creates the backend unit from a resolved configuration.
func NewBackendUnit(cfg *config.Config) *BackendUnit {
	return &BackendUnit{cfg: cfg}
}

// Name implements Unit.
func (u *BackendUnit) Name() string { return UnitBackend }

// DependsOn implements Unit.
func (u *BackendUnit) DependsOn() []string { return []string{UnitGateway} }

// EndpointOutput implements Unit.
func (u *BackendUnit) EndpointOutput() string { return BackendURLOutput }

// Template implements Unit.
func (u *BackendUnit) Template(in Inputs) (*cfn.Template, error) {
	t := cfn.NewTemplate("UDR research backend: HTTP API on ECS Fargate with secret-backed credentials and origin-based routing")

	llmBaseURL := ""
	if gw, ok := in.Endpoint(UnitGateway); ok {
		llmBaseURL = gw.URL + "/v1"
	}

	err := addLoadBalancedService(t, serviceSpec{
		ContainerName: "backend",
		Image:         u.cfg.BackendImage,
		ContainerPort: constants.BackendContainerPort,
		PublicPort:    constants.PublicHTTPPort,
		Environment: map[string]string{
			"LLM_BASE_URL":      llmBaseURL,
			"HOST":              backendHost,
			"PORT":              strconv.Itoa(constants.BackendContainerPort),
			"LOG_LEVEL":         backendLogLevel,
			"MODEL_NAME":        u.cfg.ModelName,
			"MAX_INPUT_TOKENS":  backendMaxInputTokens,
			"MAX_OUTPUT_TOKENS": backendMaxOutputTokens,
		},
		Secrets: []containerSecret{
			{EnvName: "SEARCH_API_KEY", ValueFrom: cfn.Ref{Logical: "SearchAPISecret"}},
			{EnvName: "MODEL_API_KEY", ValueFrom: cfn.Ref{Logical: "ModelAPISecret"}},
		},
		HealthCheck: &healthCheckSpec{
			Path:               "/",
			IntervalSeconds:    30,
			TimeoutSeconds:     5,
			UnhealthyThreshold: 3,
			GracePeriodSeconds: 60,
		},
		ExtraExecutionPolicies: []map[string]any{
			{
				"PolicyName": "read-api-secrets",
				"PolicyDocument": map[string]any{
					"Version": "2012-10-17",
					"Statement": []any{
						map[string]any{
							"Effect": "Allow",
							"Action": "secretsmanager:GetSecretValue",
							"Resource": []any{
								cfn.Ref{Logical: "SearchAPISecret"},
								cfn.Ref{Logical: "ModelAPISecret"},
							},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	if err := u.addSecrets(t); err != nil {
		return nil, err
	}
	if err := u.addFrontendOriginRule(t); err != nil {
		return nil, err
	}

	serviceOutputs(t, BackendURLOutput, "http")
	t.Outputs[LoadBalancerArnOutput] = cfn.Output{
		Description: "ARN of the backend load balancer",
		Value:       cfn.Ref{Logical: "LoadBalancer"},
	}

	return t, nil
}

// addSecrets declares the two credential entries with placeholder values.
// The operator populates the real keys after deployment; the unit never
// validates or uses their contents.
func (u *BackendUnit) addSecrets(t *cfn.Template) error {
	secrets := map[string]struct {
		name        string
		description string
	}{
		"SearchAPISecret": {
			name:        constants.SearchAPISecretName,
			description: "Third-party search API credential. Populate after deployment.",
		},
		"ModelAPISecret": {
			name:        constants.ModelAPISecretName,
			description: "Model provider API credential. Populate after deployment.",
		},
	}

	for logicalID, s := range secrets {
		err := t.AddResource(logicalID, cfn.Resource{
			Type: "AWS::SecretsManager::Secret",
			Properties: map[string]any{
				"Name":         s.name,
				"Description":  s.description,
				"SecretString": constants.SecretPlaceholderValue,
			},
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// addFrontendOriginRule forwards requests whose Origin header matches the
// hosted frontend's domain pattern with priority 100. All other origins
// fall through to the listener's default forward action.
func (u *BackendUnit) addFrontendOriginRule(t *cfn.Template) error {
	return t.AddResource("FrontendOriginRule", cfn.Resource{
		Type: "AWS::ElasticLoadBalancingV2::ListenerRule",
		Properties: map[string]any{
			"ListenerArn": cfn.Ref{Logical: "Listener"},
			"Priority":    listenerRulePriority,
			"Conditions": []any{
				map[string]any{
					"Field": "http-header",
					"HttpHeaderConfig": map[string]any{
						"HttpHeaderName": "Origin",
						"Values":         []any{constants.AmplifyOriginPattern},
					},
				},
			},
			"Actions": []any{
				map[string]any{
					"Type":           "forward",
					"TargetGroupArn": cfn.Ref{Logical: "TargetGroup"},
				},
			},
		},
	})
}
