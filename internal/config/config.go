// Package config manages configuration for the udrctl CLI.
// It uses Viper for unified configuration management from files and
// environment variables. Units never read ambient process state; they
// receive a resolved Config through their constructors.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/udrlabs/udrctl/internal/constants"
	apperrors "github.com/udrlabs/udrctl/internal/errors"
)

// Config holds every parameter a deployment needs. It is resolved once by
// the CLI and passed explicitly into each unit's constructor.
type Config struct {
	// Account is the target AWS account ID. Resolved via STS when empty.
	Account string `mapstructure:"account" yaml:"account" validate:"omitempty,numeric,len=12"`
	// Region is the target AWS region.
	Region string `mapstructure:"region" yaml:"region" validate:"required"`
	// StackPrefix prefixes the CloudFormation stack name of every unit.
	StackPrefix string `mapstructure:"stack_prefix" yaml:"stack_prefix" validate:"required,hostname_rfc1123"`

	// Repository is the optional source repository for the frontend, in
	// "owner/name" form. Requires RepositoryTokenRef.
	Repository string `mapstructure:"repository" yaml:"repository"`
	// RepositoryTokenRef is the secret store entry name holding the
	// repository access token. Never the token value itself.
	RepositoryTokenRef string `mapstructure:"repository_token_ref" yaml:"repository_token_ref"`

	// GatewayImage and BackendImage are the container images the two
	// service units run. Image builds happen outside udrctl.
	GatewayImage string `mapstructure:"gateway_image" yaml:"gateway_image" validate:"required"`
	BackendImage string `mapstructure:"backend_image" yaml:"backend_image" validate:"required"`

	// ModelName is exported to the backend container as MODEL_NAME.
	ModelName string `mapstructure:"model_name" yaml:"model_name" validate:"required"`
}

// SourceBinding is the frontend source repository decision, made once
// before any resource declaration is built.
type SourceBinding interface {
	isSourceBinding()
}

// ConnectedSource binds the hosting application to a repository using an
// access token looked up from the secret store by name.
type ConnectedSource struct {
	Repository      string
	TokenSecretName string
}

// Disconnected provisions the hosting application without a repository.
// The operator connects one manually through the provider console and
// triggers builds via a webhook URL.
type Disconnected struct{}

func (ConnectedSource) isSourceBinding() {}
func (Disconnected) isSourceBinding()    {}

var validate = validator.New()

// Load resolves configuration from ~/.udrctl/config.yaml and UDRCTL_*
// environment variables. Environment variables take precedence over the
// config file; flag values are applied by the CLI on top of the result.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if err := loadConfigFile(v); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	v.SetEnvPrefix("UDRCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the fully resolved configuration (after flag overlay).
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return apperrors.NewConfigurationFailure("config validation failed", err)
	}
	if _, err := c.ResolveSourceBinding(); err != nil {
		return err
	}
	return nil
}

// ResolveSourceBinding decides the frontend provisioning path. Supplying
// exactly one of repository and token ref is a configuration failure; the
// disconnected path is chosen only when both are absent.
func (c *Config) ResolveSourceBinding() (SourceBinding, error) {
	hasRepo := c.Repository != ""
	hasToken := c.RepositoryTokenRef != ""

	switch {
	case hasRepo && hasToken:
		return ConnectedSource{Repository: c.Repository, TokenSecretName: c.RepositoryTokenRef}, nil
	case hasRepo:
		return nil, apperrors.NewConfigurationFailure(
			"repository supplied without --repository-token-ref", nil)
	case hasToken:
		return nil, apperrors.NewConfigurationFailure(
			"repository token ref supplied without --repository", nil)
	default:
		return Disconnected{}, nil
	}
}

// StackName returns the CloudFormation stack name for a unit.
func (c *Config) StackName(unit string) string {
	return c.StackPrefix + "-" + unit
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("region", constants.DefaultRegion)
	v.SetDefault("stack_prefix", constants.DefaultStackPrefix)
	v.SetDefault("model_name", constants.DefaultModelName)
}

func loadConfigFile(v *viper.Viper) error {
	home, err := os.UserHomeDir()
	if err != nil {
		// No home directory: env-only configuration.
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(home, "."+constants.ProjectName))

	return v.ReadInConfig()
}

// bindEnvVars binds every config key explicitly so AutomaticEnv picks up
// variables even before the key appears in a config file.
func bindEnvVars(v *viper.Viper) {
	keys := []string{
		"account",
		"region",
		"stack_prefix",
		"repository",
		"repository_token_ref",
		"gateway_image",
		"backend_image",
		"model_name",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}
