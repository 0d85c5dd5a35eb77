package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/udrlabs/udrctl/internal/config"
	"github.com/udrlabs/udrctl/internal/constants"
	apperrors "github.com/udrlabs/udrctl/internal/errors"
	"github.com/udrlabs/udrctl/internal/stacks"
)

// StackDeployer abstracts the per-stack operations the orchestrator needs.
// *Deployer implements it; tests substitute fakes.
type StackDeployer interface {
	Deploy(ctx context.Context, stackName, templateBody string) (*StackResult, error)
	Destroy(ctx context.Context, stackName string) (notFound bool, err error)
	Diff(ctx context.Context, stackName, templateBody string) (*StackDiff, error)
	StackOutputs(ctx context.Context, stackName string) (map[string]string, error)
}

// UnitResult is the outcome of provisioning one unit.
type UnitResult struct {
	Unit       string
	StackName  string
	Operation  string
	NoChanges  bool
	Outputs    map[string]string
	Endpoint   stacks.EndpointReference
	// Degraded holds the health warning when the deployed service fails
	// its probe. The unit still counts as provisioned.
	Degraded string
	// TriggerURL is the manual build trigger created on the disconnected
	// frontend path.
	TriggerURL string
}

// DestroyUnitResult is the outcome of tearing down one unit.
type DestroyUnitResult struct {
	Unit      string
	StackName string
	NotFound  bool
}

// SynthesizedTemplate is one unit's rendered template.
type SynthesizedTemplate struct {
	Unit      string
	StackName string
	Body      []byte
}

// UnitDiff pairs a unit with its diff against deployed state.
type UnitDiff struct {
	Unit string
	Diff *StackDiff
}

// Orchestrator sequences unit provisioning. Deployment is strictly
// sequential: a unit's template is constructed only after all of its
// predecessors' outputs are resolved, because endpoint references are
// provisioning-time inputs, not runtime lookups.
type Orchestrator struct {
	cfg      *config.Config
	units    []stacks.Unit
	deployer StackDeployer
	ecs      ECSClient     // optional; enables post-deploy health inspection
	amplify  AmplifyClient // optional; enables manual build triggers
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithECSClient enables post-deploy service health inspection.
func WithECSClient(client ECSClient) Option {
	return func(o *Orchestrator) { o.ecs = client }
}

// WithAmplifyClient enables manual build trigger creation on the
// disconnected frontend path.
func WithAmplifyClient(client AmplifyClient) Option {
	return func(o *Orchestrator) { o.amplify = client }
}

// NewOrchestrator creates an orchestrator over the given units.
func NewOrchestrator(
	cfg *config.Config,
	units []stacks.Unit,
	deployer StackDeployer,
	logger *slog.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		units:    units,
		deployer: deployer,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Deploy provisions every unit in dependency order, threading each unit's
// resolved endpoint into its successors. A fatal failure aborts the
// remaining units; already-provisioned predecessors are left in place.
func (o *Orchestrator) Deploy(ctx context.Context) ([]UnitResult, error) {
	ordered, err := stacks.Plan(o.units)
	if err != nil {
		return nil, apperrors.NewConfigurationFailure("invalid unit graph", err)
	}

	inputs := stacks.Inputs{Endpoints: make(map[string]stacks.EndpointReference)}
	results := make([]UnitResult, 0, len(ordered))

	for _, unit := range ordered {
		// Ordering invariant: every predecessor's URL must be resolved
		// and non-empty before this unit's configuration is constructed.
		for _, dep := range unit.DependsOn() {
			if _, ok := inputs.Endpoint(dep); !ok {
				return results, apperrors.NewProvisioningFailure(unit.Name(),
					fmt.Sprintf("output of predecessor %s is not resolved", dep), nil)
			}
		}

		result, err := o.deployUnit(ctx, unit, inputs)
		if err != nil {
			return results, err
		}

		inputs.Endpoints[unit.Name()] = result.Endpoint
		results = append(results, *result)
	}

	return results, nil
}

func (o *Orchestrator) deployUnit(
	ctx context.Context,
	unit stacks.Unit,
	inputs stacks.Inputs,
) (*UnitResult, error) {
	stackName := o.cfg.StackName(unit.Name())
	o.logger.Info("deploying unit", "unit", unit.Name(), "stack", stackName)

	tmpl, err := unit.Template(inputs)
	if err != nil {
		return nil, apperrors.NewProvisioningFailure(unit.Name(), "failed to build template", err)
	}
	body, err := tmpl.Marshal()
	if err != nil {
		return nil, apperrors.NewProvisioningFailure(unit.Name(), "failed to render template", err)
	}

	stackResult, err := o.deployer.Deploy(ctx, stackName, string(body))
	if err != nil {
		return nil, apperrors.NewProvisioningFailure(unit.Name(), "stack deployment failed", err)
	}

	url := stackResult.Outputs[unit.EndpointOutput()]
	if url == "" {
		return nil, apperrors.NewProvisioningFailure(unit.Name(),
			fmt.Sprintf("stack output %s is missing or empty", unit.EndpointOutput()), nil)
	}

	result := &UnitResult{
		Unit:      unit.Name(),
		StackName: stackName,
		Operation: stackResult.OperationType,
		NoChanges: stackResult.NoChanges,
		Outputs:   stackResult.Outputs,
		Endpoint:  stacks.EndpointReference{Unit: unit.Name(), URL: url},
	}

	o.inspectHealth(ctx, unit, result)
	o.createTriggerIfDisconnected(ctx, unit, result)

	return result, nil
}

// inspectHealth checks the unit's ECS service after provisioning. A
// degraded service is recorded on the result, never returned as an error:
// there is no automatic rollback beyond the platform's task replacement.
func (o *Orchestrator) inspectHealth(ctx context.Context, unit stacks.Unit, result *UnitResult) {
	if o.ecs == nil {
		return
	}
	cluster, service := result.Outputs["ClusterName"], result.Outputs["ServiceName"]
	if cluster == "" || service == "" {
		return
	}

	if err := CheckServiceHealth(ctx, o.ecs, unit.Name(), cluster, service); err != nil {
		o.logger.Warn("service is degraded", "unit", unit.Name(), "error", err)
		result.Degraded = err.Error()
	}
}

// createTriggerIfDisconnected creates the manual build trigger for a
// frontend provisioned without a repository binding. Trigger creation
// failures are warnings: the application shell is already provisioned.
func (o *Orchestrator) createTriggerIfDisconnected(ctx context.Context, unit stacks.Unit, result *UnitResult) {
	frontend, ok := unit.(*stacks.FrontendUnit)
	if !ok || frontend.Connected() || o.amplify == nil {
		return
	}

	appID := result.Outputs[stacks.AppIDOutput]
	if appID == "" {
		o.logger.Warn("cannot create build trigger without an app ID", "unit", unit.Name())
		return
	}

	url, err := CreateBuildTrigger(ctx, o.amplify, appID, constants.FrontendBranchName)
	if err != nil {
		o.logger.Warn("failed to create build trigger", "unit", unit.Name(), "error", err)
		return
	}
	result.TriggerURL = url
}

// Destroy tears units down in strict reverse dependency order. Absent
// stacks are reported and skipped; a deletion failure aborts the
// remaining teardown since predecessors may still be referenced.
func (o *Orchestrator) Destroy(ctx context.Context) ([]DestroyUnitResult, error) {
	ordered, err := stacks.Plan(o.units)
	if err != nil {
		return nil, apperrors.NewConfigurationFailure("invalid unit graph", err)
	}

	results := make([]DestroyUnitResult, 0, len(ordered))
	for _, unit := range stacks.Reverse(ordered) {
		stackName := o.cfg.StackName(unit.Name())
		o.logger.Info("destroying unit", "unit", unit.Name(), "stack", stackName)

		notFound, err := o.deployer.Destroy(ctx, stackName)
		if err != nil {
			return results, apperrors.NewProvisioningFailure(unit.Name(), "stack deletion failed", err)
		}
		results = append(results, DestroyUnitResult{
			Unit:      unit.Name(),
			StackName: stackName,
			NotFound:  notFound,
		})
	}

	return results, nil
}

// Synth renders every unit's template without touching the cloud.
// Cross-unit endpoints are unresolved, so dependent units render their
// offline shape (e.g. the frontend's dry-run flag). Output is
// deterministic for identical inputs.
func (o *Orchestrator) Synth() ([]SynthesizedTemplate, error) {
	ordered, err := stacks.Plan(o.units)
	if err != nil {
		return nil, apperrors.NewConfigurationFailure("invalid unit graph", err)
	}

	inputs := stacks.Inputs{Endpoints: make(map[string]stacks.EndpointReference)}
	templates := make([]SynthesizedTemplate, 0, len(ordered))

	for _, unit := range ordered {
		tmpl, err := unit.Template(inputs)
		if err != nil {
			return nil, apperrors.NewProvisioningFailure(unit.Name(), "failed to build template", err)
		}
		body, err := tmpl.Marshal()
		if err != nil {
			return nil, apperrors.NewProvisioningFailure(unit.Name(), "failed to render template", err)
		}
		templates = append(templates, SynthesizedTemplate{
			Unit:      unit.Name(),
			StackName: o.cfg.StackName(unit.Name()),
			Body:      body,
		})
	}

	return templates, nil
}

// Diff computes per-unit diffs against deployed state. Endpoints are
// resolved from the deployed predecessors' outputs where available, so an
// unchanged deployment diffs clean. The per-stack change set calls run
// concurrently (they are read-only); results come back in unit order.
func (o *Orchestrator) Diff(ctx context.Context) ([]UnitDiff, error) {
	ordered, err := stacks.Plan(o.units)
	if err != nil {
		return nil, apperrors.NewConfigurationFailure("invalid unit graph", err)
	}

	inputs := stacks.Inputs{Endpoints: make(map[string]stacks.EndpointReference)}
	bodies := make([]string, len(ordered))

	for i, unit := range ordered {
		// Resolve the unit's endpoint from its deployed stack, if any, so
		// successors render against the real URLs.
		if outputs, err := o.deployer.StackOutputs(ctx, o.cfg.StackName(unit.Name())); err == nil {
			if url := outputs[unit.EndpointOutput()]; url != "" {
				inputs.Endpoints[unit.Name()] = stacks.EndpointReference{Unit: unit.Name(), URL: url}
			}
		}

		tmpl, err := unit.Template(inputs)
		if err != nil {
			return nil, apperrors.NewProvisioningFailure(unit.Name(), "failed to build template", err)
		}
		body, err := tmpl.Marshal()
		if err != nil {
			return nil, apperrors.NewProvisioningFailure(unit.Name(), "failed to render template", err)
		}
		bodies[i] = string(body)
	}

	diffs := make([]UnitDiff, len(ordered))
	g, gctx := errgroup.WithContext(ctx)
	for i, unit := range ordered {
		g.Go(func() error {
			diff, err := o.deployer.Diff(gctx, o.cfg.StackName(unit.Name()), bodies[i])
			if err != nil {
				return apperrors.NewProvisioningFailure(unit.Name(), "diff failed", err)
			}
			diffs[i] = UnitDiff{Unit: unit.Name(), Diff: diff}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return diffs, nil
}
