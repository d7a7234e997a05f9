// Package rvec renders host-side numbers as evaluator source literals.
package rvec

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NA is the evaluator's missing-value token.
const NA = "NA"

// precision is the number of fractional digits rendered before trimming.
const precision = 6

// Format renders values as a `c(...)` call literal. Non-finite values render
// as NA. An empty slice renders as `c()`.
func Format(values []float64) string {
	var b strings.Builder
	b.Grow(len(values)*8 + 3)
	b.WriteString("c(")
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(FormatNumber(v))
	}
	b.WriteByte(')')
	return b.String()
}

// FormatNumber renders a single value with fixed precision, trimmed of
// trailing zeros and a dangling decimal point.
func FormatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NA
	}
	s := strconv.FormatFloat(v, 'f', precision, 64)
	if strings.IndexByte(s, '.') >= 0 {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		return "0"
	}
	return s
}

// Parse reads a literal produced by Format or FormatNumber: `c(...)`, a bare
// number, or NA. NA entries decode to NaN.
func Parse(literal string) ([]float64, error) {
	text := strings.TrimSpace(literal)
	if text == "" {
		return nil, errors.New("empty literal")
	}
	if !strings.HasPrefix(text, "c(") {
		v, err := parseElement(text)
		if err != nil {
			return nil, err
		}
		return []float64{v}, nil
	}
	if !strings.HasSuffix(text, ")") {
		return nil, fmt.Errorf("unterminated literal %q", literal)
	}
	body := strings.TrimSpace(text[2 : len(text)-1])
	if body == "" {
		return []float64{}, nil
	}
	parts := strings.Split(body, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := parseElement(part)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseElement(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == NA {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid element %q", s)
	}
	return v, nil
}
