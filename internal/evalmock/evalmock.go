// Package evalmock is a deterministic stand-in for the smallR evaluator. It
// speaks the evaluator wire format but only understands leading literal
// bindings:
//
//   - x and y: a least-squares line fit
//   - data and window: a trailing moving average
//   - a stop("...") call anywhere: an evaluation error
//   - anything else: a named list of the bindings
package evalmock

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"pkt.systems/smallrhost/internal/rvec"
	"pkt.systems/smallrhost/schema"
)

var (
	bindingPattern = regexp.MustCompile(`^\s*([A-Za-z.][A-Za-z0-9._]*)\s*<-\s*(.+?)\s*$`)
	stopPattern    = regexp.MustCompile(`^\s*stop\(\s*"((?:[^"\\]|\\.)*)"\s*\)`)
)

// Evaluator serves programs in-process.
type Evaluator struct {
	// Latency delays every call; cancellation of ctx interrupts the delay.
	Latency time.Duration
}

// Eval implements core.Evaluator.
func (e Evaluator) Eval(ctx context.Context, source string) (schema.EvalResponse, error) {
	if e.Latency > 0 {
		timer := time.NewTimer(e.Latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return schema.EvalResponse{}, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return schema.EvalResponse{}, err
	}
	return Evaluate(source), nil
}

type binding struct {
	name   string
	values []float64
}

// Evaluate runs source under the mock semantics.
func Evaluate(source string) schema.EvalResponse {
	var out strings.Builder
	var bindings []binding
	inPrelude := true
	for _, line := range strings.Split(source, "\n") {
		if m := stopPattern.FindStringSubmatch(line); m != nil {
			return schema.EvalResponse{Error: unescape(m[1]), Output: out.String()}
		}
		if !inPrelude {
			continue
		}
		m := bindingPattern.FindStringSubmatch(line)
		if m == nil {
			inPrelude = false
			continue
		}
		values, err := rvec.Parse(m[2])
		if err != nil {
			inPrelude = false
			continue
		}
		bindings = append(bindings, binding{name: m[1], values: values})
		fmt.Fprintf(&out, "%s: %d value(s)\n", m[1], len(values))
	}

	lookup := func(name string) ([]float64, bool) {
		for i := len(bindings) - 1; i >= 0; i-- {
			if bindings[i].name == name {
				return bindings[i].values, true
			}
		}
		return nil, false
	}

	x, hasX := lookup("x")
	y, hasY := lookup("y")
	if hasX && hasY {
		fields, err := fitLine(x, y)
		if err != nil {
			return schema.EvalResponse{Error: err.Error(), Output: out.String()}
		}
		fmt.Fprintf(&out, "slope: %s intercept: %s\n", rvec.FormatNumber(fields["slope"].(float64)), rvec.FormatNumber(fields["intercept"].(float64)))
		return respond(out.String(), fields, []string{"intercept", "slope", "r2", "yhat"})
	}

	data, hasData := lookup("data")
	window, hasWindow := lookup("window")
	if hasData && hasWindow {
		fields, err := movingAverage(data, window)
		if err != nil {
			return schema.EvalResponse{Error: err.Error(), Output: out.String()}
		}
		fmt.Fprintf(&out, "Points: %d\nMA window: %s\n", len(data), rvec.FormatNumber(window[0]))
		return respond(out.String(), fields, []string{"original", "ma", "mean", "sd", "min", "max"})
	}

	if len(bindings) == 0 {
		return schema.EvalResponse{Output: out.String(), Value: "NULL"}
	}
	fields := make(map[string]any, len(bindings))
	order := make([]string, 0, len(bindings))
	for _, b := range bindings {
		if _, seen := fields[b.name]; !seen {
			order = append(order, b.name)
		}
		fields[b.name] = b.values
	}
	return respond(out.String(), fields, order)
}

func fitLine(x, y []float64) (map[string]any, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("x and y lengths differ (%d vs %d)", len(x), len(y))
	}
	if len(x) < 2 {
		return nil, fmt.Errorf("need at least 2 points, got %d", len(x))
	}
	mx, my := mean(x), mean(y)
	var sxy, sxx float64
	for i := range x {
		sxy += (x[i] - mx) * (y[i] - my)
		sxx += (x[i] - mx) * (x[i] - mx)
	}
	slope := sxy / sxx
	intercept := my - slope*mx
	yhat := make([]float64, len(x))
	var ssTot, ssRes float64
	for i := range x {
		yhat[i] = intercept + slope*x[i]
		ssTot += (y[i] - my) * (y[i] - my)
		ssRes += (y[i] - yhat[i]) * (y[i] - yhat[i])
	}
	r2 := 1.0
	if ssRes != 0 {
		r2 = 1 - ssRes/ssTot
	}
	return map[string]any{"intercept": intercept, "slope": slope, "r2": r2, "yhat": yhat}, nil
}

func movingAverage(data, window []float64) (map[string]any, error) {
	if len(window) != 1 {
		return nil, fmt.Errorf("window must be a single number")
	}
	w := int(window[0])
	if w < 1 || float64(w) != window[0] {
		return nil, fmt.Errorf("invalid window %s", rvec.FormatNumber(window[0]))
	}
	if w > len(data) {
		return nil, fmt.Errorf("window %d exceeds series length %d", w, len(data))
	}
	ma := make([]float64, 0, len(data)-w+1)
	for i := w; i <= len(data); i++ {
		ma = append(ma, mean(data[i-w:i]))
	}
	lo, hi := data[0], data[0]
	for _, v := range data[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return map[string]any{
		"original": data,
		"ma":       ma,
		"mean":     round4(mean(data)),
		"sd":       round4(sampleSD(data)),
		"min":      round4(lo),
		"max":      round4(hi),
	}, nil
}

// respond encodes fields the way the evaluator does: length-1 vectors become
// scalars and non-finite numbers become null.
func respond(output string, fields map[string]any, order []string) schema.EvalResponse {
	encoded := make(map[string]any, len(fields))
	var value strings.Builder
	for _, name := range order {
		encoded[name] = toJSONValue(fields[name])
		fmt.Fprintf(&value, "$%s\n%s\n\n", name, printValue(fields[name]))
	}
	data, err := json.Marshal(encoded)
	if err != nil {
		return schema.EvalResponse{Error: "serialize result: " + err.Error(), Output: output}
	}
	return schema.EvalResponse{
		Output: output,
		Value:  strings.TrimRight(value.String(), "\n"),
		JSON:   string(data),
	}
}

func toJSONValue(v any) any {
	switch val := v.(type) {
	case float64:
		return finiteOrNil(val)
	case []float64:
		if len(val) == 1 {
			return finiteOrNil(val[0])
		}
		out := make([]any, len(val))
		for i, f := range val {
			out[i] = finiteOrNil(f)
		}
		return out
	default:
		return val
	}
}

func printValue(v any) string {
	switch val := v.(type) {
	case float64:
		return "[1] " + rvec.FormatNumber(val)
	case []float64:
		parts := make([]string, len(val))
		for i, f := range val {
			parts[i] = rvec.FormatNumber(f)
		}
		return "[1] " + strings.Join(parts, " ")
	default:
		return fmt.Sprint(val)
	}
}

func finiteOrNil(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

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

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func unescape(s string) string {
	return strings.NewReplacer(`\"`, `"`, `\\`, `\`, `\n`, "\n").Replace(s)
}
