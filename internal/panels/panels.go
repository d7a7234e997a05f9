// Package panels defines the demo panels: their default programs, tunable
// parameters, data generation and result contracts.
package panels

import (
	"fmt"

	"pkt.systems/smallrhost/core"
	"pkt.systems/smallrhost/schema"
)

// New returns the spec for kind.
func New(kind schema.PanelKind) (core.PanelSpec, error) {
	switch kind {
	case schema.PanelPlayground:
		return Playground{}, nil
	case schema.PanelRegression:
		return Regression{}, nil
	case schema.PanelStats:
		return Stats{}, nil
	case schema.PanelDataFrame:
		return DataFrame{}, nil
	case schema.PanelStrings:
		return Strings{}, nil
	case schema.PanelTimeSeries:
		return TimeSeries{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", schema.ErrInvalidPanel, kind)
	}
}

// Catalog is the set of enabled panel specs.
type Catalog struct {
	specs map[schema.PanelKind]core.PanelSpec
	kinds []schema.PanelKind
}

// NewCatalog enables the listed kinds, or all kinds when none are given.
func NewCatalog(enabled ...schema.PanelKind) (*Catalog, error) {
	if len(enabled) == 0 {
		enabled = schema.AllPanelKinds
	}
	c := &Catalog{specs: make(map[schema.PanelKind]core.PanelSpec, len(enabled))}
	for _, raw := range enabled {
		kind, err := schema.NormalizePanelKind(string(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, raw)
		}
		if _, dup := c.specs[kind]; dup {
			continue
		}
		spec, err := New(kind)
		if err != nil {
			return nil, err
		}
		c.specs[kind] = spec
		c.kinds = append(c.kinds, kind)
	}
	return c, nil
}

// Lookup returns the spec for kind if it is enabled.
func (c *Catalog) Lookup(kind schema.PanelKind) (core.PanelSpec, bool) {
	spec, ok := c.specs[kind]
	return spec, ok
}

// Kinds returns the enabled kinds in configuration order.
func (c *Catalog) Kinds() []schema.PanelKind {
	return append([]schema.PanelKind(nil), c.kinds...)
}
