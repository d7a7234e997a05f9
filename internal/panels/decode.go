package panels

import (
	"fmt"
	"math"
	"strings"

	"pkt.systems/smallrhost/schema"
)

// fieldSet reads named fields from a structured value, reporting contract
// mismatches against the panel's required field list.
type fieldSet struct {
	required []string
	fields   map[string]any
}

func newFieldSet(result schema.Success, required ...string) (fieldSet, error) {
	fs := fieldSet{required: required}
	if !result.HasStructured {
		return fs, fs.mismatch("", "no structured value was returned")
	}
	fields, ok := result.Structured.(map[string]any)
	if !ok {
		return fs, fs.mismatch("", "the result is not a named list")
	}
	fs.fields = fields
	return fs, nil
}

func (fs fieldSet) mismatch(field, problem string) error {
	msg := "expected fields " + strings.Join(fs.required, ", ")
	switch {
	case field != "":
		msg += fmt.Sprintf(" (%s %s)", field, problem)
	case problem != "":
		msg += " (" + problem + ")"
	}
	return schema.NewContractMismatch(msg)
}

func (fs fieldSet) has(name string) bool {
	_, ok := fs.fields[name]
	return ok
}

// Number reads a numeric scalar. null decodes to NaN.
func (fs fieldSet) Number(name string) (float64, error) {
	raw, ok := fs.fields[name]
	if !ok {
		return 0, fs.mismatch(name, "is missing")
	}
	if list, ok := raw.([]any); ok && len(list) == 1 {
		raw = list[0]
	}
	v, ok := asNumber(raw)
	if !ok {
		return 0, fs.mismatch(name, "is not numeric")
	}
	return v, nil
}

// OptionalNumber reads a numeric scalar, falling back when absent.
func (fs fieldSet) OptionalNumber(name string, fallback float64) (float64, error) {
	if !fs.has(name) {
		return fallback, nil
	}
	return fs.Number(name)
}

// Numbers reads a numeric sequence. A scalar is promoted to length one.
func (fs fieldSet) Numbers(name string) ([]float64, error) {
	raw, ok := fs.fields[name]
	if !ok {
		return nil, fs.mismatch(name, "is missing")
	}
	list, ok := raw.([]any)
	if !ok {
		if raw == nil {
			return nil, fs.mismatch(name, "is not a numeric sequence")
		}
		list = []any{raw}
	}
	out := make([]float64, 0, len(list))
	for _, item := range list {
		v, ok := asNumber(item)
		if !ok {
			return nil, fs.mismatch(name, "is not a numeric sequence")
		}
		out = append(out, v)
	}
	return out, nil
}

// Strings reads a character sequence. A scalar is promoted to length one.
func (fs fieldSet) Strings(name string) ([]string, error) {
	raw, ok := fs.fields[name]
	if !ok {
		return nil, fs.mismatch(name, "is missing")
	}
	list, ok := raw.([]any)
	if !ok {
		list = []any{raw}
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case nil:
			out = append(out, "NA")
		default:
			return nil, fs.mismatch(name, "is not a character sequence")
		}
	}
	return out, nil
}

// Bools reads a logical sequence. A scalar is promoted to length one.
func (fs fieldSet) Bools(name string) ([]bool, error) {
	raw, ok := fs.fields[name]
	if !ok {
		return nil, fs.mismatch(name, "is missing")
	}
	list, ok := raw.([]any)
	if !ok {
		list = []any{raw}
	}
	out := make([]bool, 0, len(list))
	for _, item := range list {
		v, ok := item.(bool)
		if !ok {
			return nil, fs.mismatch(name, "is not a logical sequence")
		}
		out = append(out, v)
	}
	return out, nil
}

func asNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case nil:
		return math.NaN(), true
	default:
		return 0, false
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleSD is the n-1 standard deviation.
func sampleSD(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	m := mean(values)
	ss := 0.0
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

func minMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return math.NaN(), math.NaN()
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
