// Package description defines the declarative form of a graph: graph inputs
// and outputs, node instantiations and connections between them. A
// description is compiled by the compiler package.
package description

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pipelined.dev/graph/param"
)

// Mode selects how a description is compiled.
type Mode string

// Compilation modes.
const (
	Dynamic Mode = "dynamic"
	Static  Mode = "static"
)

// Description of a graph.
type Description struct {
	Name string `yaml:"name" validate:"required,ident"`
	// Package of the generated code in static mode.
	Package     string       `yaml:"package,omitempty" validate:"omitempty,ident"`
	Mode        Mode         `yaml:"mode,omitempty" validate:"omitempty,oneof=static dynamic"`
	SampleRate  float32      `yaml:"sample_rate,omitempty" validate:"gte=0"`
	Inputs      []Input      `yaml:"inputs,omitempty" validate:"dive"`
	Outputs     []Output     `yaml:"outputs,omitempty" validate:"dive"`
	Nodes       []Node       `yaml:"nodes,omitempty" validate:"dive"`
	Connections []Connection `yaml:"connections,omitempty" validate:"dive"`
}

// Input is a graph-level input.
type Input struct {
	Name    string    `yaml:"name" validate:"required,ident"`
	Kind    string    `yaml:"kind" validate:"required,oneof=stream value event"`
	Default *float32  `yaml:"default,omitempty"`
	Range   []float32 `yaml:"range,omitempty" validate:"omitempty,len=2"`
	Curve   string    `yaml:"curve,omitempty" validate:"omitempty,oneof=linear log logarithmic"`
	Ramp    int       `yaml:"ramp,omitempty" validate:"gte=0"`
}

// Spec returns shaping of the input.
func (in Input) Spec() (param.Spec, error) {
	curve, err := param.ParseCurve(in.Curve)
	if err != nil {
		return param.Spec{}, err
	}
	s := param.Spec{Curve: curve, Ramp: in.Ramp}
	if len(in.Range) == 2 {
		s.Min, s.Max, s.Bounded = in.Range[0], in.Range[1], true
	}
	return s, s.Validate()
}

// Output is a graph-level output.
type Output struct {
	Name string `yaml:"name" validate:"required,ident"`
	Kind string `yaml:"kind" validate:"required,oneof=stream value event"`
}

// Node is an instantiation of a node type. Count above zero declares an
// array of identical nodes addressed as name[i].
type Node struct {
	Name  string    `yaml:"name" validate:"required,ident"`
	Type  string    `yaml:"type" validate:"required"`
	Args  []float32 `yaml:"args,omitempty"`
	Count int       `yaml:"count,omitempty" validate:"gte=0,lte=256"`
}

// Connection feeds destination endpoint To with expression From. In YAML
// it is written as "from -> to".
type Connection struct {
	From string `validate:"required"`
	To   string `validate:"required"`
}

// Connect returns connection from expression to destination.
func Connect(from, to string) Connection {
	return Connection{From: from, To: to}
}

func (c Connection) String() string {
	return c.From + " -> " + c.To
}

// UnmarshalYAML decodes "from -> to" strings.
func (c *Connection) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	conn, err := ParseConnection(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*c = conn
	return nil
}

// MarshalYAML encodes connection as "from -> to".
func (c Connection) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// Parse decodes YAML description.
func Parse(data []byte) (*Description, error) {
	var d Description
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse description: %w", err)
	}
	return &d, nil
}

// Load reads and validates YAML description from file.
func Load(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load description: %w", err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := Validate(d); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// CompileMode returns the mode with dynamic as default.
func (d *Description) CompileMode() Mode {
	if d.Mode == "" {
		return Dynamic
	}
	return d.Mode
}
