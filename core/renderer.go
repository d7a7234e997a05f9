package core

import "pkt.systems/smallrhost/schema"

// Renderer consumes published panel updates. Publish is called with the
// pipeline's lock held, so implementations must not call back into it.
type Renderer interface {
	Publish(update schema.PanelUpdate)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(update schema.PanelUpdate)

// Publish calls f.
func (f RendererFunc) Publish(update schema.PanelUpdate) {
	f(update)
}

type nopRenderer struct{}

func (nopRenderer) Publish(schema.PanelUpdate) {}
