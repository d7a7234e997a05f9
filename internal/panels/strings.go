package panels

import (
	"math/rand/v2"
	"strings"

	"pkt.systems/smallrhost/core"
	"pkt.systems/smallrhost/schema"
)

var stringsSource = mustScript(schema.PanelStrings)

// Strings shows console output only; the structured value is ignored.
type Strings struct{}

func (Strings) Kind() schema.PanelKind             { return schema.PanelStrings }
func (Strings) DefaultSource() string              { return stringsSource }
func (Strings) Parameters() []schema.ParameterSpec { return nil }
func (Strings) Generates() bool                    { return false }

func (Strings) Generate(schema.Parameters, *rand.Rand) (schema.Dataset, error) {
	return nil, nil
}

func (Strings) Parse(in core.ParseInput) (schema.PanelShape, error) {
	text := strings.TrimRight(in.Result.ConsoleText, "\n")
	if text == "" {
		return schema.TextShape{}, nil
	}
	return schema.TextShape{Lines: strings.Split(text, "\n")}, nil
}
