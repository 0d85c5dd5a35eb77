package stacks

import (
	"fmt"
	"strconv"

	"github.com/udrlabs/udrctl/internal/cfn"
	"github.com/udrlabs/udrctl/internal/config"
	"github.com/udrlabs/udrctl/internal/constants"
)

// Frontend stack output keys.
const (
	AppURLOutput  = "AppURL"
	AppIDOutput   = "AppID"
	AppNameOutput = "AppName"
)

// Fixed build environment contract between this tool and the frontend
// application it deploys.
const (
	frontendAPIVersion   = "v1"
	frontendLiveUpdates  = `[{"pkg":"next-version","type":"internal","version":"latest"}]`
	frontendFramework    = "Next.js - SSR"
	frontendBranchStage  = "PRODUCTION"
	frontendPlatform     = "WEB_COMPUTE"
	repositoryURLPattern = "https://github.com/%s"
)

// FrontendUnit provisions the managed hosting application for the Next.js
// frontend. The source binding decides the provisioning path once, before
// any resource declaration is built: connected (repository + token ref,
// auto-build on push) or disconnected (no repository; builds are triggered
// through a webhook created after provisioning).
//
// Provisioning the application shell always succeeds independent of
// whether the subsequent build succeeds; build failures are reported
// asynchronously by the hosting platform.
type FrontendUnit struct {
	cfg     *config.Config
	binding config.SourceBinding
}

// NewFrontendUnit creates the frontend unit from a resolved configuration
// and a source binding decision.
func NewFrontendUnit(cfg *config.Config, binding config.SourceBinding) *FrontendUnit {
	return &FrontendUnit{cfg: cfg, binding: binding}
}

// Name implements Unit.
func (u *FrontendUnit) Name() string { return UnitFrontend }

// DependsOn implements Unit.
func (u *FrontendUnit) DependsOn() []string { return []string{UnitBackend} }

// EndpointOutput implements Unit.
func (u *FrontendUnit) EndpointOutput() string { return AppURLOutput }

// Connected reports whether the unit provisions via the connected path.
func (u *FrontendUnit) Connected() bool {
	_, ok := u.binding.(config.ConnectedSource)
	return ok
}

// Template implements Unit.
func (u *FrontendUnit) Template(in Inputs) (*cfn.Template, error) {
	t := cfn.NewTemplate("UDR frontend: managed Next.js hosting application with git-triggered builds")

	buildSpec, err := frontendBuildSpec()
	if err != nil {
		return nil, err
	}

	backendURL := ""
	if backend, ok := in.Endpoint(UnitBackend); ok {
		backendURL = backend.URL
	}

	appProps := map[string]any{
		"Name":                 cfn.Sub{Expr: "${AWS::StackName}-app"},
		"Platform":             frontendPlatform,
		"BuildSpec":            buildSpec,
		"EnvironmentVariables": environmentList(BuildEnvironment(backendURL)),
	}

	autoBuild := false
	if connected, ok := u.binding.(config.ConnectedSource); ok {
		appProps["Repository"] = fmt.Sprintf(repositoryURLPattern, connected.Repository)
		// The token is resolved by the provisioning service from the
		// secret store at apply time; only the entry name appears here.
		appProps["AccessToken"] = fmt.Sprintf("{{resolve:secretsmanager:%s}}", connected.TokenSecretName)
		autoBuild = true
	}

	if err := t.AddResource("App", cfn.Resource{
		Type:       "AWS::Amplify::App",
		Properties: appProps,
	}); err != nil {
		return nil, err
	}

	if err := t.AddResource("MainBranch", cfn.Resource{
		Type: "AWS::Amplify::Branch",
		Properties: map[string]any{
			"AppId":           cfn.GetAtt{Logical: "App", Attribute: "AppId"},
			"BranchName":      constants.FrontendBranchName,
			"Stage":           frontendBranchStage,
			"Framework":       frontendFramework,
			"EnableAutoBuild": autoBuild,
		},
	}); err != nil {
		return nil, err
	}

	t.Outputs[AppURLOutput] = cfn.Output{
		Description: "Hosted URL of the frontend",
		Value: cfn.Join{Delimiter: "", Values: []any{
			"https://" + constants.FrontendBranchName + ".",
			cfn.GetAtt{Logical: "App", Attribute: "DefaultDomain"},
		}},
	}
	t.Outputs[AppIDOutput] = cfn.Output{
		Description: "Hosting application ID for console operations",
		Value:       cfn.GetAtt{Logical: "App", Attribute: "AppId"},
	}
	t.Outputs[AppNameOutput] = cfn.Output{
		Description: "Hosting application name",
		Value:       cfn.GetAtt{Logical: "App", Attribute: "AppName"},
	}

	return t, nil
}

// BuildEnvironment returns the six build variables baked into every
// frontend build. The dry-run flag is "true" exactly when no backend URL
// was resolvable, so the frontend can render a degraded mode instead of
// calling a dead endpoint.
func BuildEnvironment(backendURL string) map[string]string {
	dryRun := "false"
	if backendURL == "" {
		dryRun = "true"
	}

	return map[string]string{
		"NEXT_PUBLIC_BACKEND_BASE_URL": backendURL,
		"NEXT_PUBLIC_BACKEND_PORT":     strconv.Itoa(constants.BackendContainerPort),
		"NEXT_PUBLIC_API_VERSION":      frontendAPIVersion,
		"NEXT_PUBLIC_ENABLE_V2_API":    "true",
		"NEXT_PUBLIC_DRY_RUN":          dryRun,
		"_LIVE_UPDATES":                frontendLiveUpdates,
	}
}
