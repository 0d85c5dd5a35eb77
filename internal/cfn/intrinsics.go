// Package cfn provides a minimal typed model of CloudFormation templates.
// Templates are assembled in Go and marshaled to YAML; map keys are emitted
// in sorted order, so synthesizing the same inputs twice produces identical
// bytes.
package cfn

// Ref represents a CloudFormation Ref intrinsic function.
//
//	Ref{"TaskRole"} → {"Ref": "TaskRole"}
type Ref struct {
	Logical string
}

// MarshalYAML implements yaml.Marshaler.
func (r Ref) MarshalYAML() (any, error) {
	return map[string]string{"Ref": r.Logical}, nil
}

// Sub represents a CloudFormation Fn::Sub intrinsic function.
//
//	Sub{"${AWS::StackName}-cluster"} → {"Fn::Sub": "${AWS::StackName}-cluster"}
type Sub struct {
	Expr string
}

// MarshalYAML implements yaml.Marshaler.
func (s Sub) MarshalYAML() (any, error) {
	return map[string]string{"Fn::Sub": s.Expr}, nil
}

// GetAtt represents a CloudFormation Fn::GetAtt intrinsic function.
//
//	GetAtt{"LoadBalancer", "DNSName"} → {"Fn::GetAtt": ["LoadBalancer", "DNSName"]}
type GetAtt struct {
	Logical   string
	Attribute string
}

// MarshalYAML implements yaml.Marshaler.
func (g GetAtt) MarshalYAML() (any, error) {
	return map[string][]string{"Fn::GetAtt": {g.Logical, g.Attribute}}, nil
}

// Join represents a CloudFormation Fn::Join intrinsic function.
type Join struct {
	Delimiter string
	Values    []any
}

// MarshalYAML implements yaml.Marshaler.
func (j Join) MarshalYAML() (any, error) {
	return map[string][]any{"Fn::Join": {j.Delimiter, j.Values}}, nil
}

// Select represents a CloudFormation Fn::Select intrinsic function.
type Select struct {
	Index  int
	Values any
}

// MarshalYAML implements yaml.Marshaler.
func (s Select) MarshalYAML() (any, error) {
	return map[string][]any{"Fn::Select": {s.Index, s.Values}}, nil
}

// GetAZs represents a CloudFormation Fn::GetAZs intrinsic function. An
// empty region resolves to the region of the stack.
type GetAZs struct {
	Region string
}

// MarshalYAML implements yaml.Marshaler.
func (g GetAZs) MarshalYAML() (any, error) {
	return map[string]string{"Fn::GetAZs": g.Region}, nil
}

// Tag represents a CloudFormation resource tag.
type Tag struct {
	Key   string `yaml:"Key"`
	Value any    `yaml:"Value"`
}
