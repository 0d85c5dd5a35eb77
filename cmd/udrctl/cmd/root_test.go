package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udrlabs/udrctl/internal/config"
)

func TestParseTimeout(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "duration", input: "45m", want: 45 * time.Minute},
		{name: "seconds", input: "600", want: 600 * time.Second},
		{name: "empty defaults", input: "", want: 45 * time.Minute},
		{name: "garbage", input: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTimeout(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := &config.Config{
		Region:      "us-east-1",
		StackPrefix: "udr",
	}

	flagRegion = "eu-west-1"
	flagGatewayImage = "example.com/gateway:v2"
	t.Cleanup(func() {
		flagRegion = ""
		flagGatewayImage = ""
	})

	applyFlagOverrides(cfg)

	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "example.com/gateway:v2", cfg.GatewayImage)
	// Untouched flags leave loaded values alone.
	assert.Equal(t, "udr", cfg.StackPrefix)
}
