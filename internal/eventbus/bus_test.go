package eventbus

import (
	"testing"
	"time"

	"pkt.systems/smallrhost/core"
	"pkt.systems/smallrhost/schema"
)

var _ core.Renderer = (*Bus)(nil)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case got := <-ch:
		return got
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for event")
	}
	return Event{}
}

func TestSubscribeAndPublish(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe("regression")
	defer cancel()

	update := schema.PanelUpdate{PanelID: "regression", Token: 4, Outcome: schema.OutcomeSucceeded}
	bus.Publish(update)

	got := receive(t, ch)
	if got.Type != EventUpdate {
		t.Fatalf("expected update event, got %v", got.Type)
	}
	if got.Update.PanelID != update.PanelID || got.Update.Token != update.Token {
		t.Fatalf("unexpected payload: %+v", got.Update)
	}
}

func TestPublishRoutesByPanel(t *testing.T) {
	bus := New(nil)
	stats, cancelStats := bus.Subscribe("stats")
	defer cancelStats()
	all, cancelAll := bus.Subscribe(AllPanels)
	defer cancelAll()

	bus.Publish(schema.PanelUpdate{PanelID: "regression", Token: 1})
	if got := receive(t, all); got.Update.PanelID != "regression" {
		t.Fatalf("expected all-panels subscriber to see regression, got %+v", got)
	}
	select {
	case got := <-stats:
		t.Fatalf("stats subscriber received %+v", got)
	default:
	}
	if n := bus.Subscribers("stats"); n != 2 {
		t.Fatalf("expected 2 subscribers for stats, got %d", n)
	}
}

func TestEvaluatorEventReachesEveryone(t *testing.T) {
	bus := New(nil)
	a, cancelA := bus.Subscribe("stats")
	defer cancelA()
	b, cancelB := bus.Subscribe(AllPanels)
	defer cancelB()
	bus.OnEvaluator(EvaluatorEvent{Ready: true})
	for _, ch := range []<-chan Event{a, b} {
		if got := receive(t, ch); got.Type != EventEvaluator || !got.Evaluator.Ready {
			t.Fatalf("unexpected event %+v", got)
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe("stats")
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
	bus.Publish(schema.PanelUpdate{PanelID: "stats"})
}

func TestPublishDoesNotBlockWhenFull(t *testing.T) {
	bus := New(nil)
	bus.depth = 1
	_, cancel := bus.Subscribe("stats")
	defer cancel()

	var sendCh chan Event
	bus.mu.Lock()
	for ch := range bus.subs["stats"] {
		sendCh = ch
		break
	}
	bus.mu.Unlock()
	if sendCh == nil {
		t.Fatalf("expected subscriber channel")
	}
	sendCh <- Event{Type: EventUpdate}
	done := make(chan struct{})
	go func() {
		bus.Publish(schema.PanelUpdate{PanelID: "stats"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("publish blocked on full channel")
	}
}
