package panels

import (
	"math/rand/v2"

	"pkt.systems/smallrhost/core"
	"pkt.systems/smallrhost/schema"
)

var dataFrameSource = mustScript(schema.PanelDataFrame)

// DataFrame renders parallel columns as table rows.
type DataFrame struct{}

func (DataFrame) Kind() schema.PanelKind             { return schema.PanelDataFrame }
func (DataFrame) DefaultSource() string              { return dataFrameSource }
func (DataFrame) Parameters() []schema.ParameterSpec { return nil }
func (DataFrame) Generates() bool                    { return false }

func (DataFrame) Generate(schema.Parameters, *rand.Rand) (schema.Dataset, error) {
	return nil, nil
}

func (DataFrame) Parse(in core.ParseInput) (schema.PanelShape, error) {
	fields, err := newFieldSet(in.Result, "name", "age", "score", "pass")
	if err != nil {
		return nil, err
	}
	names, err := fields.Strings("name")
	if err != nil {
		return nil, err
	}
	ages, err := fields.Numbers("age")
	if err != nil {
		return nil, err
	}
	scores, err := fields.Numbers("score")
	if err != nil {
		return nil, err
	}
	pass, err := fields.Bools("pass")
	if err != nil {
		return nil, err
	}
	if len(ages) != len(names) {
		return nil, fields.mismatch("age", "must have one value per name")
	}
	if len(scores) != len(names) {
		return nil, fields.mismatch("score", "must have one value per name")
	}
	if len(pass) != len(names) {
		return nil, fields.mismatch("pass", "must have one value per name")
	}
	shape := schema.DataFrameShape{Rows: make([]schema.DataFrameRow, len(names))}
	for i := range names {
		shape.Rows[i] = schema.DataFrameRow{Name: names[i], Age: ages[i], Score: scores[i], Pass: pass[i]}
	}
	if shape.MeanScore, err = fields.OptionalNumber("mean_score", mean(scores)); err != nil {
		return nil, err
	}
	if shape.MeanAge, err = fields.OptionalNumber("mean_age", mean(ages)); err != nil {
		return nil, err
	}
	return shape, nil
}
