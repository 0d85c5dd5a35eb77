package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
)

const changeSetTimeout = 5 * time.Minute

// ResourceChange is one resource-level difference between the synthesized
// template and the deployed stack.
type ResourceChange struct {
	Action      string // "Add", "Modify", "Remove", ...
	LogicalID   string
	Type        string
	Replacement string // "True", "False", "Conditional" or empty
}

// StackDiff is the result of diffing one unit against deployed state.
type StackDiff struct {
	StackName string
	NewStack  bool // stack does not exist yet; the whole template is new
	NoChanges bool
	Changes   []ResourceChange
}

// Diff computes the resource-level changes the given template would apply
// to the named stack. It is read-only: the change set used to compute the
// diff is deleted before returning.
func (d *Deployer) Diff(ctx context.Context, stackName, templateBody string) (*StackDiff, error) {
	exists, err := d.StackExists(ctx, stackName)
	if err != nil {
		return nil, fmt.Errorf("failed to check stack status: %w", err)
	}
	if !exists {
		return &StackDiff{StackName: stackName, NewStack: true}, nil
	}

	changeSetName := fmt.Sprintf("udrctl-diff-%d", time.Now().UnixNano())
	_, err = d.client.CreateChangeSet(ctx, &cloudformation.CreateChangeSetInput{
		StackName:     aws.String(stackName),
		ChangeSetName: aws.String(changeSetName),
		ChangeSetType: types.ChangeSetTypeUpdate,
		TemplateBody:  aws.String(templateBody),
		Capabilities:  []types.Capability{types.CapabilityCapabilityNamedIam},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create change set: %w", err)
	}
	defer func() {
		// Best effort cleanup; the change set is never executed.
		_, _ = d.client.DeleteChangeSet(context.WithoutCancel(ctx), &cloudformation.DeleteChangeSetInput{
			StackName:     aws.String(stackName),
			ChangeSetName: aws.String(changeSetName),
		})
	}()

	described, err := d.waitForChangeSet(ctx, stackName, changeSetName)
	if err != nil {
		// CloudFormation reports an empty diff as a failed change set.
		if described != nil && emptyChangeSet(described) {
			return &StackDiff{StackName: stackName, NoChanges: true}, nil
		}
		return nil, err
	}

	diff := &StackDiff{StackName: stackName}
	for _, change := range described.Changes {
		rc := change.ResourceChange
		if rc == nil {
			continue
		}
		diff.Changes = append(diff.Changes, ResourceChange{
			Action:      string(rc.Action),
			LogicalID:   aws.ToString(rc.LogicalResourceId),
			Type:        aws.ToString(rc.ResourceType),
			Replacement: string(rc.Replacement),
		})
	}
	diff.NoChanges = len(diff.Changes) == 0

	return diff, nil
}

// waitForChangeSet polls until the change set reaches a terminal state.
func (d *Deployer) waitForChangeSet(
	ctx context.Context,
	stackName, changeSetName string,
) (*cloudformation.DescribeChangeSetOutput, error) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	timeout := time.After(changeSetTimeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, errors.New("timeout waiting for change set")
		case <-ticker.C:
			out, err := d.client.DescribeChangeSet(ctx, &cloudformation.DescribeChangeSetInput{
				StackName:     aws.String(stackName),
				ChangeSetName: aws.String(changeSetName),
			})
			if err != nil {
				return nil, err
			}

			switch out.Status {
			case types.ChangeSetStatusCreateComplete:
				return out, nil
			case types.ChangeSetStatusFailed:
				return out, fmt.Errorf("change set failed: %s", aws.ToString(out.StatusReason))
			default:
				// Still in progress.
			}
		}
	}
}

// emptyChangeSet reports whether a failed change set just means "no
// changes between the template and the deployed stack".
func emptyChangeSet(out *cloudformation.DescribeChangeSetOutput) bool {
	reason := aws.ToString(out.StatusReason)
	return strings.Contains(reason, "didn't contain changes") ||
		strings.Contains(reason, "No updates are to be performed")
}
