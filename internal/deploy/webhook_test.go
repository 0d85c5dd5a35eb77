package deploy

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/amplify"
	amplifytypes "github.com/aws/aws-sdk-go-v2/service/amplify/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAmplifyClient struct {
	createWebhookFunc func(
		ctx context.Context,
		params *amplify.CreateWebhookInput,
		optFns ...func(*amplify.Options),
	) (*amplify.CreateWebhookOutput, error)
}

func (m *mockAmplifyClient) CreateWebhook(
	ctx context.Context,
	params *amplify.CreateWebhookInput,
	optFns ...func(*amplify.Options),
) (*amplify.CreateWebhookOutput, error) {
	return m.createWebhookFunc(ctx, params, optFns...)
}

func TestCreateBuildTrigger(t *testing.T) {
	client := &mockAmplifyClient{
		createWebhookFunc: func(
			_ context.Context,
			params *amplify.CreateWebhookInput,
			_ ...func(*amplify.Options),
		) (*amplify.CreateWebhookOutput, error) {
			assert.Equal(t, "d2abc123", *params.AppId)
			assert.Equal(t, "main", *params.BranchName)
			return &amplify.CreateWebhookOutput{
				Webhook: &amplifytypes.Webhook{
					WebhookUrl: aws.String("https://webhooks.amplify.us-east-1.amazonaws.com/prod/webhooks?id=w1"),
				},
			}, nil
		},
	}

	url, err := CreateBuildTrigger(context.Background(), client, "d2abc123", "main")
	require.NoError(t, err)
	assert.Equal(t, "https://webhooks.amplify.us-east-1.amazonaws.com/prod/webhooks?id=w1", url)
}

func TestCreateBuildTriggerAPIError(t *testing.T) {
	client := &mockAmplifyClient{
		createWebhookFunc: func(
			_ context.Context,
			_ *amplify.CreateWebhookInput,
			_ ...func(*amplify.Options),
		) (*amplify.CreateWebhookOutput, error) {
			return nil, errors.New("access denied")
		},
	}

	_, err := CreateBuildTrigger(context.Background(), client, "d2abc123", "main")
	require.Error(t, err)
	assert.ErrorContains(t, err, "access denied")
}

func TestCreateBuildTriggerMissingURL(t *testing.T) {
	client := &mockAmplifyClient{
		createWebhookFunc: func(
			_ context.Context,
			_ *amplify.CreateWebhookInput,
			_ ...func(*amplify.Options),
		) (*amplify.CreateWebhookOutput, error) {
			return &amplify.CreateWebhookOutput{}, nil
		},
	}

	_, err := CreateBuildTrigger(context.Background(), client, "d2abc123", "main")
	require.Error(t, err)
	assert.ErrorContains(t, err, "without a URL")
}
