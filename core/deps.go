package core

import "pkt.systems/pslog"

// ServiceDeps captures dependencies for the core service. Invoker and Panels
// are required.
type ServiceDeps struct {
	Invoker  Invoker
	Panels   PanelCatalog
	Renderer Renderer
	Observer Observer
	Clock    Clock
	Logger   pslog.Logger
}
