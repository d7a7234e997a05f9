package schema

import (
	"fmt"
	"math"
	"strings"
)

// AllPanelKinds lists the known panel kinds in display order.
var AllPanelKinds = []PanelKind{
	PanelPlayground,
	PanelRegression,
	PanelStats,
	PanelDataFrame,
	PanelStrings,
	PanelTimeSeries,
}

// NormalizePanelKind validates and normalizes a panel kind.
func NormalizePanelKind(value string) (PanelKind, error) {
	trimmed := PanelKind(strings.ToLower(strings.TrimSpace(value)))
	for _, kind := range AllPanelKinds {
		if kind == trimmed {
			return kind, nil
		}
	}
	return "", ErrInvalidPanel
}

// ValidatePanelID ensures a panel id matches [a-z0-9._-] with no normalization.
func ValidatePanelID(panelID PanelID) error {
	raw := string(panelID)
	if raw == "" {
		return ErrInvalidPanel
	}
	for _, r := range raw {
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '.' || r == '_' || r == '-' {
			continue
		}
		return ErrInvalidPanel
	}
	return nil
}

// NormalizeParameter clamps nothing: out-of-range values are rejected, and
// integer parameters are rounded to the nearest whole number.
func NormalizeParameter(spec ParameterSpec, value float64) (float64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %s must be finite", ErrInvalidParameter, spec.Name)
	}
	if spec.Integer {
		value = math.Round(value)
	}
	if value < spec.Min || value > spec.Max {
		return 0, fmt.Errorf("%w: %s must be within [%g, %g]", ErrInvalidParameter, spec.Name, spec.Min, spec.Max)
	}
	return value, nil
}
