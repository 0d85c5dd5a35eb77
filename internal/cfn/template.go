package cfn

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Template is a CloudFormation template under construction.
type Template struct {
	AWSTemplateFormatVersion string               `yaml:"AWSTemplateFormatVersion"`
	Description              string               `yaml:"Description,omitempty"`
	Parameters               map[string]Parameter `yaml:"Parameters,omitempty"`
	Resources                map[string]Resource  `yaml:"Resources"`
	Outputs                  map[string]Output    `yaml:"Outputs,omitempty"`
}

// Parameter defines a CloudFormation template parameter.
type Parameter struct {
	Type        string `yaml:"Type"`
	Description string `yaml:"Description,omitempty"`
	Default     any    `yaml:"Default,omitempty"`
	NoEcho      bool   `yaml:"NoEcho,omitempty"`
}

// Resource is a single declarative resource in a template.
type Resource struct {
	Type           string         `yaml:"Type"`
	Properties     map[string]any `yaml:"Properties,omitempty"`
	DependsOn      []string       `yaml:"DependsOn,omitempty"`
	DeletionPolicy string         `yaml:"DeletionPolicy,omitempty"`
}

// Output is a stack output value.
type Output struct {
	Description string `yaml:"Description,omitempty"`
	Value       any    `yaml:"Value"`
}

// NewTemplate creates an empty template with the standard format version.
func NewTemplate(description string) *Template {
	return &Template{
		AWSTemplateFormatVersion: "2010-09-09",
		Description:              description,
		Parameters:               make(map[string]Parameter),
		Resources:                make(map[string]Resource),
		Outputs:                  make(map[string]Output),
	}
}

// AddResource registers a resource under the given logical ID. Duplicate
// logical IDs are a programming error.
func (t *Template) AddResource(logicalID string, res Resource) error {
	if _, exists := t.Resources[logicalID]; exists {
		return fmt.Errorf("duplicate logical resource ID: %s", logicalID)
	}
	t.Resources[logicalID] = res
	return nil
}

// Marshal renders the template as YAML. Map keys are sorted by the YAML
// encoder, so output is deterministic for identical inputs.
func (t *Template) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template: %w", err)
	}
	return data, nil
}
