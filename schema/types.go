package schema

// PanelID identifies a panel instance.
type PanelID string

// PanelKind identifies the demo a panel implements.
type PanelKind string

const (
	// PanelPlayground is the free-form editor panel.
	PanelPlayground PanelKind = "playground"
	// PanelRegression fits a line through generated points.
	PanelRegression PanelKind = "regression"
	// PanelStats computes summary statistics.
	PanelStats PanelKind = "stats"
	// PanelDataFrame renders a tabular result.
	PanelDataFrame PanelKind = "dataframe"
	// PanelStrings shows string and functional operations.
	PanelStrings PanelKind = "strings"
	// PanelTimeSeries computes a moving average over a generated series.
	PanelTimeSeries PanelKind = "timeseries"
)

// RunToken identifies an accepted trigger. Tokens are minted in increasing
// order; zero means "no run".
type RunToken uint64

// TriggerReason explains why a recompute was requested.
type TriggerReason string

const (
	// TriggerRun is an explicit user run on unchanged data.
	TriggerRun TriggerReason = "run"
	// TriggerParameter follows a parameter change.
	TriggerParameter TriggerReason = "parameter"
	// TriggerBoot is the initial run after the evaluator loaded.
	TriggerBoot TriggerReason = "boot"
	// TriggerRegenerate requests fresh data with unchanged parameters.
	TriggerRegenerate TriggerReason = "regenerate"
	// TriggerEdit follows a (debounced) source edit.
	TriggerEdit TriggerReason = "edit"
)

// Regenerates reports whether the reason requires freshly generated data.
func (r TriggerReason) Regenerates() bool {
	switch r {
	case TriggerParameter, TriggerBoot, TriggerRegenerate:
		return true
	default:
		return false
	}
}

// Binding is a single prelude statement `Name <- Literal`.
type Binding struct {
	Name    string
	Literal string
}

// Prelude is an ordered list of bindings.
type Prelude []Binding

// Series is a named numeric sequence produced by data generation.
type Series struct {
	Name   string
	Values []float64
}

// Dataset is the generated upstream data of a panel, in binding order.
type Dataset []Series

// Lookup returns the values of the named series.
func (d Dataset) Lookup(name string) ([]float64, bool) {
	for _, series := range d {
		if series.Name == name {
			return series.Values, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the dataset.
func (d Dataset) Clone() Dataset {
	if d == nil {
		return nil
	}
	out := make(Dataset, 0, len(d))
	for _, series := range d {
		out = append(out, Series{Name: series.Name, Values: append([]float64(nil), series.Values...)})
	}
	return out
}

// Parameters maps parameter names to values.
type Parameters map[string]float64

// Clone returns a copy of the parameters.
func (p Parameters) Clone() Parameters {
	out := make(Parameters, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ParameterSpec describes a tunable panel parameter.
type ParameterSpec struct {
	Name    string  `json:"name" yaml:"name"`
	Label   string  `json:"label" yaml:"label"`
	Default float64 `json:"default" yaml:"default"`
	Min     float64 `json:"min" yaml:"min"`
	Max     float64 `json:"max" yaml:"max"`
	Step    float64 `json:"step" yaml:"step"`
	Integer bool    `json:"integer,omitempty" yaml:"integer,omitempty"`
	// Bind emits the parameter as a prelude binding.
	Bind bool `json:"bind,omitempty" yaml:"bind,omitempty"`
}
