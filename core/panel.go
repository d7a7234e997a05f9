package core

import (
	"math/rand/v2"

	"pkt.systems/smallrhost/schema"
)

// PanelSpec defines a demo panel: its default program, tunable parameters,
// data generation and the structured-value contract of its results.
type PanelSpec interface {
	Kind() schema.PanelKind
	DefaultSource() string
	Parameters() []schema.ParameterSpec
	// Generates reports whether the panel produces upstream data.
	Generates() bool
	// Generate builds fresh upstream data from the current parameters.
	Generate(params schema.Parameters, rng *rand.Rand) (schema.Dataset, error)
	// Parse converts a successful evaluation into the panel's shape. A missing
	// or mistyped field is reported as a contract mismatch.
	Parse(in ParseInput) (schema.PanelShape, error)
}

// ParseInput is everything a panel may consult when parsing a result.
type ParseInput struct {
	Result     schema.Success
	Parameters schema.Parameters
	Data       schema.Dataset
}

// PanelCatalog resolves panel kinds to their specs.
type PanelCatalog interface {
	Lookup(kind schema.PanelKind) (PanelSpec, bool)
	Kinds() []schema.PanelKind
}

// DefaultParameters returns the default value of every parameter.
func DefaultParameters(spec PanelSpec) schema.Parameters {
	params := make(schema.Parameters)
	for _, p := range spec.Parameters() {
		params[p.Name] = p.Default
	}
	return params
}

// ParameterSpecFor returns the spec of the named parameter.
func ParameterSpecFor(spec PanelSpec, name string) (schema.ParameterSpec, bool) {
	for _, p := range spec.Parameters() {
		if p.Name == name {
			return p, true
		}
	}
	return schema.ParameterSpec{}, false
}
