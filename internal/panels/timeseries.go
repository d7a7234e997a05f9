package panels

import (
	"math"
	"math/rand/v2"

	"pkt.systems/smallrhost/core"
	"pkt.systems/smallrhost/schema"
)

var timeSeriesSource = mustScript(schema.PanelTimeSeries)

var timeSeriesParams = []schema.ParameterSpec{
	{Name: "points", Label: "points", Default: 120, Min: 10, Max: 500, Step: 1, Integer: true},
	{Name: "window", Label: "MA window", Default: 10, Min: 2, Max: 50, Step: 1, Integer: true, Bind: true},
}

const timeSeriesStart = 50.0

// TimeSeries smooths a random walk with a moving average.
type TimeSeries struct{}

func (TimeSeries) Kind() schema.PanelKind             { return schema.PanelTimeSeries }
func (TimeSeries) DefaultSource() string              { return timeSeriesSource }
func (TimeSeries) Parameters() []schema.ParameterSpec { return timeSeriesParams }
func (TimeSeries) Generates() bool                    { return true }

// Generate walks from 50 with a uniform jitter plus a slow sine drift.
func (TimeSeries) Generate(params schema.Parameters, rng *rand.Rand) (schema.Dataset, error) {
	n := int(params["points"])
	data := make([]float64, n)
	val := timeSeriesStart
	for i := 0; i < n; i++ {
		val += (rng.Float64()-0.5)*5 + math.Sin(float64(i)/10)*3
		data[i] = val
	}
	return schema.Dataset{{Name: "data", Values: data}}, nil
}

func (TimeSeries) Parse(in core.ParseInput) (schema.PanelShape, error) {
	fields, err := newFieldSet(in.Result, "original", "ma")
	if err != nil {
		return nil, err
	}
	shape := schema.TimeSeriesShape{Window: int(in.Parameters["window"])}
	if shape.Original, err = fields.Numbers("original"); err != nil {
		return nil, err
	}
	if shape.MA, err = fields.Numbers("ma"); err != nil {
		return nil, err
	}
	lo, hi := minMax(shape.Original)
	if shape.Mean, err = fields.OptionalNumber("mean", mean(shape.Original)); err != nil {
		return nil, err
	}
	if shape.SD, err = fields.OptionalNumber("sd", sampleSD(shape.Original)); err != nil {
		return nil, err
	}
	if shape.Min, err = fields.OptionalNumber("min", lo); err != nil {
		return nil, err
	}
	if shape.Max, err = fields.OptionalNumber("max", hi); err != nil {
		return nil, err
	}
	return shape, nil
}
