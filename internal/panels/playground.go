package panels

import (
	"encoding/json"
	"math/rand/v2"

	"pkt.systems/smallrhost/core"
	"pkt.systems/smallrhost/schema"
)

var playgroundSource = mustScript(schema.PanelPlayground)

// Playground runs free-form code. Any result is accepted.
type Playground struct{}

func (Playground) Kind() schema.PanelKind             { return schema.PanelPlayground }
func (Playground) DefaultSource() string              { return playgroundSource }
func (Playground) Parameters() []schema.ParameterSpec { return nil }
func (Playground) Generates() bool                    { return false }

func (Playground) Generate(schema.Parameters, *rand.Rand) (schema.Dataset, error) {
	return nil, nil
}

func (Playground) Parse(in core.ParseInput) (schema.PanelShape, error) {
	shape := schema.PlaygroundShape{
		Structured:    in.Result.Structured,
		HasStructured: in.Result.HasStructured,
		Value:         in.Result.PrintedValue,
	}
	if in.Result.HasStructured {
		data, err := json.MarshalIndent(in.Result.Structured, "", "  ")
		if err != nil {
			return nil, schema.NewEvalError(schema.FailureMalformedResult, "malformed result: "+err.Error(), err)
		}
		shape.JSON = string(data)
	}
	return shape, nil
}
