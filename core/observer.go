package core

import (
	"time"

	"pkt.systems/smallrhost/schema"
)

// Observer receives pipeline telemetry. Implementations must be safe for
// concurrent use.
type Observer interface {
	// ObserveLoad reports an evaluator load attempt.
	ObserveLoad(duration time.Duration, err error)
	// ObserveInvoke reports a bridge invocation; failure is empty on success.
	ObserveInvoke(duration time.Duration, failure schema.FailureKind)
	// ObserveSuperseded reports a pending trigger replaced before it fired.
	ObserveSuperseded(panelID schema.PanelID)
	// ObserveStale reports a result discarded because a newer run started.
	ObserveStale(panelID schema.PanelID)
	// ObservePublish reports a published update.
	ObservePublish(update schema.PanelUpdate)
}

// NopObserver discards all observations.
type NopObserver struct{}

func (NopObserver) ObserveLoad(time.Duration, error)                {}
func (NopObserver) ObserveInvoke(time.Duration, schema.FailureKind) {}
func (NopObserver) ObserveSuperseded(schema.PanelID)                {}
func (NopObserver) ObserveStale(schema.PanelID)                     {}
func (NopObserver) ObservePublish(schema.PanelUpdate)               {}
