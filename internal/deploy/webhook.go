package deploy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/amplify"
)

// AmplifyClient defines the subset of the Amplify API used to create
// manual build triggers. This interface enables mocking for unit tests.
type AmplifyClient interface {
	CreateWebhook(
		ctx context.Context,
		params *amplify.CreateWebhookInput,
		optFns ...func(*amplify.Options),
	) (*amplify.CreateWebhookOutput, error)
}

// CreateBuildTrigger creates a webhook on the hosting application so the
// operator can trigger builds manually. Used on the disconnected
// provisioning path, where no repository pushes builds automatically.
// Returns the trigger URL.
func CreateBuildTrigger(ctx context.Context, client AmplifyClient, appID, branch string) (string, error) {
	out, err := client.CreateWebhook(ctx, &amplify.CreateWebhookInput{
		AppId:       aws.String(appID),
		BranchName:  aws.String(branch),
		Description: aws.String("Manual build trigger created by udrctl"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create build trigger webhook: %w", err)
	}
	if out.Webhook == nil || out.Webhook.WebhookUrl == nil {
		return "", fmt.Errorf("webhook created without a URL")
	}
	return *out.Webhook.WebhookUrl, nil
}
