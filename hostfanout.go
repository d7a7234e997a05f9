package smallrhost

import (
	"pkt.systems/smallrhost/core"
	"pkt.systems/smallrhost/schema"
)

type rendererFanout struct {
	renderers []core.Renderer
}

func (f rendererFanout) Publish(update schema.PanelUpdate) {
	for _, r := range f.renderers {
		if r == nil {
			continue
		}
		r.Publish(update)
	}
}
