package eventbus

import (
	"context"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/smallrhost/schema"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventUpdate carries a published panel update.
	EventUpdate EventType = "update"
	// EventEvaluator carries an evaluator load outcome.
	EventEvaluator EventType = "evaluator"
)

// AllPanels subscribes to every panel.
const AllPanels schema.PanelID = ""

// EvaluatorEvent reports the end of an evaluator load.
type EvaluatorEvent struct {
	Ready    bool
	Err      string
	Duration time.Duration
}

// Event represents a UI-facing event emitted by the host.
type Event struct {
	Type      EventType
	Update    schema.PanelUpdate
	Evaluator EvaluatorEvent
}

// Bus fans events out to per-panel subscribers.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.PanelID]map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.PanelID]map[chan Event]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for one panel, or for all panels with
// AllPanels, and returns a channel + cancel.
func (b *Bus) Subscribe(panelID schema.PanelID) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	panelSubs := b.subs[panelID]
	if panelSubs == nil {
		panelSubs = make(map[chan Event]struct{})
		b.subs[panelID] = panelSubs
	}
	panelSubs[ch] = struct{}{}
	count := len(panelSubs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.With("panel", string(panelID)).Debug("eventbus subscribe", "subs", count)
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[panelID]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, panelID)
				}
			}
			close(ch)
			b.mu.Unlock()
			if b.log != nil {
				b.log.With("panel", string(panelID)).Debug("eventbus unsubscribe")
			}
		})
	}
}

// Publish implements core.Renderer.
func (b *Bus) Publish(update schema.PanelUpdate) {
	b.publish(update.PanelID, Event{Type: EventUpdate, Update: update})
}

// OnEvaluator publishes an evaluator load outcome to every subscriber.
func (b *Bus) OnEvaluator(event EvaluatorEvent) {
	if b == nil {
		return
	}
	b.mu.Lock()
	dropped := 0
	for _, subs := range b.subs {
		dropped += offer(subs, Event{Type: EventEvaluator, Evaluator: event})
	}
	b.mu.Unlock()
	if dropped > 0 && b.log != nil {
		b.log.Trace("eventbus dropped", "count", dropped)
	}
}

// Subscribers reports how many subscribers would receive an update for panelID.
func (b *Bus) Subscribers(panelID schema.PanelID) int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	count := len(b.subs[AllPanels])
	if panelID != AllPanels {
		count += len(b.subs[panelID])
	}
	return count
}

// publish never blocks; sends happen under the lock so cancel cannot close a
// channel mid-send.
func (b *Bus) publish(panelID schema.PanelID, event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	dropped := offer(b.subs[panelID], event)
	if panelID != AllPanels {
		dropped += offer(b.subs[AllPanels], event)
	}
	b.mu.Unlock()
	if dropped > 0 && b.log != nil {
		b.log.With("panel", string(panelID)).Trace("eventbus dropped", "count", dropped)
	}
}

func offer(subs map[chan Event]struct{}, event Event) int {
	dropped := 0
	for sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	return dropped
}
