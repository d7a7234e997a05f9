package panels

import (
	"math/rand/v2"

	"pkt.systems/smallrhost/core"
	"pkt.systems/smallrhost/schema"
)

var regressionSource = mustScript(schema.PanelRegression)

var regressionParams = []schema.ParameterSpec{
	{Name: "n", Label: "points", Default: 80, Min: 5, Max: 500, Step: 1, Integer: true},
	{Name: "slope", Label: "true slope", Default: 2, Min: -5, Max: 5, Step: 0.1},
	{Name: "intercept", Label: "true intercept", Default: 1, Min: -10, Max: 10, Step: 0.5},
	{Name: "noise", Label: "noise", Default: 1.5, Min: 0, Max: 10, Step: 0.1},
}

// Regression fits a line through points sampled around a known line.
type Regression struct{}

func (Regression) Kind() schema.PanelKind             { return schema.PanelRegression }
func (Regression) DefaultSource() string              { return regressionSource }
func (Regression) Parameters() []schema.ParameterSpec { return regressionParams }
func (Regression) Generates() bool                    { return true }

// Generate samples x uniformly from [0, 10) and adds gaussian noise to the
// line intercept + slope*x.
func (Regression) Generate(params schema.Parameters, rng *rand.Rand) (schema.Dataset, error) {
	n := int(params["n"])
	slope, intercept, noise := params["slope"], params["intercept"], params["noise"]
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = rng.Float64() * 10
		y[i] = intercept + slope*x[i] + rng.NormFloat64()*noise
	}
	return schema.Dataset{{Name: "x", Values: x}, {Name: "y", Values: y}}, nil
}

func (Regression) Parse(in core.ParseInput) (schema.PanelShape, error) {
	fields, err := newFieldSet(in.Result, "intercept", "slope", "r2", "yhat")
	if err != nil {
		return nil, err
	}
	var shape schema.RegressionShape
	if shape.Intercept, err = fields.Number("intercept"); err != nil {
		return nil, err
	}
	if shape.Slope, err = fields.Number("slope"); err != nil {
		return nil, err
	}
	if shape.R2, err = fields.Number("r2"); err != nil {
		return nil, err
	}
	if shape.Yhat, err = fields.Numbers("yhat"); err != nil {
		return nil, err
	}
	shape.X, _ = in.Data.Lookup("x")
	shape.Y, _ = in.Data.Lookup("y")
	return shape, nil
}
