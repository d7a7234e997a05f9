package panels

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"pkt.systems/smallrhost/core"
	"pkt.systems/smallrhost/schema"
)

var statsSource = mustScript(schema.PanelStats)

// Stats charts a vector against its mean.
type Stats struct{}

func (Stats) Kind() schema.PanelKind             { return schema.PanelStats }
func (Stats) DefaultSource() string              { return statsSource }
func (Stats) Parameters() []schema.ParameterSpec { return nil }
func (Stats) Generates() bool                    { return false }

func (Stats) Generate(schema.Parameters, *rand.Rand) (schema.Dataset, error) {
	return nil, nil
}

func (Stats) Parse(in core.ParseInput) (schema.PanelShape, error) {
	fields, err := newFieldSet(in.Result, "values", "mean", "sd")
	if err != nil {
		return nil, err
	}
	var shape schema.StatsShape
	if shape.Values, err = fields.Numbers("values"); err != nil {
		return nil, err
	}
	if shape.Mean, err = fields.Number("mean"); err != nil {
		return nil, err
	}
	if shape.SD, err = fields.Number("sd"); err != nil {
		return nil, err
	}
	if fields.has("sorted") {
		if shape.Sorted, err = fields.Numbers("sorted"); err != nil {
			return nil, err
		}
	} else {
		shape.Sorted = slices.Clone(shape.Values)
		slices.Sort(shape.Sorted)
	}
	if fields.has("labels") {
		if shape.Labels, err = fields.Strings("labels"); err != nil {
			return nil, err
		}
		if len(shape.Labels) != len(shape.Values) {
			return nil, fields.mismatch("labels", "must match the length of values")
		}
	} else {
		shape.Labels = make([]string, len(shape.Values))
		for i := range shape.Labels {
			shape.Labels[i] = fmt.Sprintf("x%d", i+1)
		}
	}
	return shape, nil
}
