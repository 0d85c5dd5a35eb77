// Package constants defines global constants used throughout udrctl.
package constants

var version = "0.0.0-development" // Updated by CI/CD pipeline at build time

// GetVersion returns the current version of udrctl.
func GetVersion() *string {
	return &version
}

// ProjectName is the name of the CLI tool.
const ProjectName = "udrctl"

// DefaultRegion is the region deployments target when none is configured.
const DefaultRegion = "us-east-1"

// DefaultStackPrefix is the prefix for the CloudFormation stack names of the
// three deployment units (e.g. "udr" yields "udr-gateway").
const DefaultStackPrefix = "udr"

// GatewayContainerPort is the container port the translation gateway listens on.
const GatewayContainerPort = 8080

// BackendContainerPort is the container port the research backend listens on.
const BackendContainerPort = 8000

// PublicHTTPPort is the load balancer listener port for both services.
const PublicHTTPPort = 80

// SearchAPISecretName is the secret store entry holding the third-party
// search API credential. Created with a placeholder value; the operator
// fills it in after deployment.
const SearchAPISecretName = "udr/search-api-key"

// ModelAPISecretName is the secret store entry holding the model provider
// API credential. Created with a placeholder value like the search key.
const ModelAPISecretName = "udr/model-api-key"

// SecretPlaceholderValue is stored in freshly created secrets so that the
// task definition can reference them before the operator supplies real keys.
const SecretPlaceholderValue = "REPLACE_ME"

// DefaultModelName is the model identifier exported to the backend container.
const DefaultModelName = "nvidia/llama-3.3-nemotron-super-49b-v1"

// FrontendBranchName is the Amplify branch serving the production frontend.
const FrontendBranchName = "main"

// AmplifyOriginPattern matches the Origin header of requests coming from the
// Amplify-hosted frontend. Used by the backend listener rule.
const AmplifyOriginPattern = "https://*.amplifyapp.com"

// ManagedByTagKey and ManagedByTagValue mark every stack provisioned by udrctl.
const (
	ManagedByTagKey   = "ManagedBy"
	ManagedByTagValue = "udrctl"
)
