// Package stacks defines the three deployment units of a udrctl deployment
// and the dependency ordering between them. Each unit is a pure function
// from resolved inputs to a CloudFormation template; no unit reads ambient
// process state.
package stacks

import (
	"fmt"

	"github.com/udrlabs/udrctl/internal/cfn"
	"github.com/udrlabs/udrctl/internal/config"
)

// Unit names.
const (
	UnitGateway  = "gateway"
	UnitBackend  = "backend"
	UnitFrontend = "frontend"
)

// EndpointReference is a resolved URL produced by one unit and consumed by
// a dependent unit as a provisioning-time input. The value is an immutable
// copy: if the upstream URL later changes, downstream units must be
// re-provisioned to pick it up.
type EndpointReference struct {
	// Unit is the producing unit's name.
	Unit string
	// URL is the resolved endpoint URL.
	URL string
}

// Inputs carries resolved predecessor outputs into a unit's template
// construction. Endpoints are keyed by producing unit name.
type Inputs struct {
	Endpoints map[string]EndpointReference
}

// Endpoint returns the endpoint produced by the named unit, if resolved.
func (in Inputs) Endpoint(unit string) (EndpointReference, bool) {
	ref, ok := in.Endpoints[unit]
	return ref, ok && ref.URL != ""
}

// Unit is one independently provisionable and destroyable bundle of cloud
// resources, realized as a single CloudFormation stack.
type Unit interface {
	// Name returns the unit's short name ("gateway", "backend", "frontend").
	Name() string
	// DependsOn lists predecessor units whose outputs must be resolved
	// before this unit's template is constructed.
	DependsOn() []string
	// Template builds the unit's resource declarations. Unresolved inputs
	// are tolerated (synth without a deployed predecessor); the deploy
	// orchestrator enforces resolution separately.
	Template(in Inputs) (*cfn.Template, error)
	// EndpointOutput names the stack output holding the unit's public URL.
	EndpointOutput() string
}

// DefaultUnits returns the standard three-unit chain in declaration order:
// gateway, backend (depends on gateway), frontend (depends on backend).
func DefaultUnits(cfg *config.Config, binding config.SourceBinding) []Unit {
	return []Unit{
		NewGatewayUnit(cfg),
		NewBackendUnit(cfg),
		NewFrontendUnit(cfg, binding),
	}
}

// Plan orders units so every unit follows all of its predecessors.
// It rejects unknown dependencies and cycles. The order is deterministic:
// among ready units, declaration order wins.
func Plan(units []Unit) ([]Unit, error) {
	byName := make(map[string]Unit, len(units))
	for _, u := range units {
		if _, exists := byName[u.Name()]; exists {
			return nil, fmt.Errorf("duplicate unit: %s", u.Name())
		}
		byName[u.Name()] = u
	}

	for _, u := range units {
		for _, dep := range u.DependsOn() {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("unit %s depends on unknown unit %s", u.Name(), dep)
			}
		}
	}

	ordered := make([]Unit, 0, len(units))
	placed := make(map[string]bool, len(units))

	for len(ordered) < len(units) {
		progressed := false
		for _, u := range units {
			if placed[u.Name()] {
				continue
			}
			ready := true
			for _, dep := range u.DependsOn() {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				ordered = append(ordered, u)
				placed[u.Name()] = true
				progressed = true
			}
		}
		if !progressed {
			return nil, fmt.Errorf("dependency cycle among units")
		}
	}

	return ordered, nil
}

// Reverse returns units in teardown order: the reverse of the plan order,
// since a downstream unit may reference a predecessor's output.
func Reverse(units []Unit) []Unit {
	reversed := make([]Unit, len(units))
	for i, u := range units {
		reversed[len(units)-1-i] = u
	}
	return reversed
}
