package core

import (
	"strings"

	"pkt.systems/smallrhost/internal/rvec"
	"pkt.systems/smallrhost/schema"
)

// Compose renders the prelude bindings followed by the user code verbatim.
// Bindings are emitted in caller order without validation.
func Compose(prelude schema.Prelude, userCode string) string {
	var b strings.Builder
	for _, binding := range prelude {
		b.WriteString(binding.Name)
		b.WriteString(" <- ")
		b.WriteString(binding.Literal)
		b.WriteByte('\n')
	}
	b.WriteString(userCode)
	return b.String()
}

// BuildPrelude binds generated series in dataset order, then the panel's
// bound parameters in declaration order.
func BuildPrelude(params []schema.ParameterSpec, values schema.Parameters, data schema.Dataset) schema.Prelude {
	prelude := make(schema.Prelude, 0, len(data)+len(params))
	for _, series := range data {
		prelude = append(prelude, schema.Binding{Name: series.Name, Literal: rvec.Format(series.Values)})
	}
	for _, param := range params {
		if !param.Bind {
			continue
		}
		value, ok := values[param.Name]
		if !ok {
			value = param.Default
		}
		prelude = append(prelude, schema.Binding{Name: param.Name, Literal: rvec.FormatNumber(value)})
	}
	return prelude
}
