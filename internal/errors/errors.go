// Package errors provides error types and handling for udrctl.
// It classifies deployment failures so the CLI can decide which ones
// abort a deployment and which are surfaced as operator warnings.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a deployment error.
type Kind string

// Error kinds.
const (
	// KindProvisioning covers any sub-resource creation failure. Fatal:
	// the unit aborts and dependent units must not start.
	KindProvisioning Kind = "PROVISIONING_FAILURE"
	// KindHealthCheck marks a deployed service failing its health probe.
	// Non-fatal at the provisioning layer; surfaced for operator follow-up.
	KindHealthCheck Kind = "HEALTH_CHECK_FAILURE"
	// KindConfiguration marks missing or malformed inputs. Rejected before
	// any resource creation is attempted.
	KindConfiguration Kind = "CONFIGURATION_FAILURE"
	// KindBuild marks a downstream build pipeline failure, reported
	// asynchronously by the hosting platform. Never fatal here.
	KindBuild Kind = "BUILD_FAILURE"
)

// DeployError represents a deployment error with its classification and
// the deployment unit it originated from.
type DeployError struct {
	// Kind is the error classification for programmatic handling
	Kind Kind
	// Unit is the deployment unit the error originated from (may be empty
	// for configuration errors raised before any unit is selected)
	Unit string
	// Message is a user-friendly error message
	Message string
	// Cause is the underlying error (for error wrapping)
	Cause error
}

// Error implements the error interface.
func (e *DeployError) Error() string {
	msg := e.Message
	if e.Unit != "" {
		msg = fmt.Sprintf("%s: %s", e.Unit, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error for error unwrapping.
func (e *DeployError) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is to match DeployErrors by kind.
func (e *DeployError) Is(target error) bool {
	if t, ok := target.(*DeployError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// IsFatal reports whether the error must abort the deployment. Health check
// and build failures leave the deployment in place and only warn.
func (e *DeployError) IsFatal() bool {
	return e.Kind == KindProvisioning || e.Kind == KindConfiguration
}

// NewProvisioningFailure creates a fatal provisioning error for a unit.
func NewProvisioningFailure(unit, message string, cause error) *DeployError {
	return &DeployError{Kind: KindProvisioning, Unit: unit, Message: message, Cause: cause}
}

// NewHealthCheckFailure creates a degraded-state signal for a unit.
func NewHealthCheckFailure(unit, message string, cause error) *DeployError {
	return &DeployError{Kind: KindHealthCheck, Unit: unit, Message: message, Cause: cause}
}

// NewConfigurationFailure creates an input validation error.
func NewConfigurationFailure(message string, cause error) *DeployError {
	return &DeployError{Kind: KindConfiguration, Message: message, Cause: cause}
}

// NewBuildFailure creates a build pipeline failure signal.
func NewBuildFailure(unit, message string, cause error) *DeployError {
	return &DeployError{Kind: KindBuild, Unit: unit, Message: message, Cause: cause}
}

// GetKind extracts the classification from an error.
// Returns KindProvisioning for errors that are not DeployErrors, since an
// unclassified failure during provisioning must still abort the deployment.
func GetKind(err error) Kind {
	var deployErr *DeployError
	if errors.As(err, &deployErr) {
		return deployErr.Kind
	}
	return KindProvisioning
}

// GetUnit extracts the originating unit name from an error.
// Returns empty string if the error is not a DeployError.
func GetUnit(err error) string {
	var deployErr *DeployError
	if errors.As(err, &deployErr) {
		return deployErr.Unit
	}
	return ""
}

// IsFatal reports whether err must abort the deployment.
// Errors that are not DeployErrors are treated as fatal, matching GetKind's
// classification of unclassified failures as provisioning failures.
func IsFatal(err error) bool {
	var deployErr *DeployError
	if errors.As(err, &deployErr) {
		return deployErr.IsFatal()
	}
	return true
}

// IsConfigurationFailure reports whether err is a configuration error.
func IsConfigurationFailure(err error) bool {
	var deployErr *DeployError
	return errors.As(err, &deployErr) && deployErr.Kind == KindConfiguration
}
