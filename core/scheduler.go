package core

import (
	"sync"
	"time"

	"pkt.systems/smallrhost/schema"
)

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

// Clock abstracts time for the scheduler.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

type systemClock struct{}

// SystemClock returns a Clock backed by the time package.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

type pendingTrigger struct {
	token schema.RunToken
	timer Timer
}

// Scheduler mints run tokens and coalesces rapid triggers per panel.
// Tokens increase across all panels.
type Scheduler struct {
	clock    Clock
	observer Observer

	mu      sync.Mutex
	last    schema.RunToken
	pending map[schema.PanelID]*pendingTrigger
	stopped bool
}

// NewScheduler returns a scheduler using clock for timers.
func NewScheduler(clock Clock, observer Observer) *Scheduler {
	if clock == nil {
		clock = SystemClock()
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Scheduler{
		clock:    clock,
		observer: observer,
		pending:  make(map[schema.PanelID]*pendingTrigger),
	}
}

// Issue mints a token for an immediate run. Pending triggers are untouched.
func (s *Scheduler) Issue() schema.RunToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.last
}

// Schedule replaces any pending trigger for the panel with a new one that
// fires fn after quiet. It returns the new token, or zero once stopped.
func (s *Scheduler) Schedule(panelID schema.PanelID, quiet time.Duration, fn func(schema.RunToken)) schema.RunToken {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return 0
	}
	superseded := false
	if prev := s.pending[panelID]; prev != nil {
		prev.timer.Stop()
		superseded = true
	}
	s.last++
	token := s.last
	entry := &pendingTrigger{token: token}
	s.pending[panelID] = entry
	entry.timer = s.clock.AfterFunc(quiet, func() {
		if !s.claim(panelID, token) {
			return
		}
		fn(token)
	})
	s.mu.Unlock()
	if superseded {
		s.observer.ObserveSuperseded(panelID)
	}
	return token
}

// claim removes the pending entry if it still holds token.
func (s *Scheduler) claim(panelID schema.PanelID, token schema.RunToken) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.pending[panelID]
	if entry == nil || entry.token != token {
		return false
	}
	delete(s.pending, panelID)
	return true
}

// Cancel drops the pending trigger for the panel.
func (s *Scheduler) Cancel(panelID schema.PanelID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.pending[panelID]
	if entry == nil {
		return false
	}
	entry.timer.Stop()
	delete(s.pending, panelID)
	return true
}

// Pending returns the token of the panel's not-yet-fired trigger.
func (s *Scheduler) Pending(panelID schema.PanelID) (schema.RunToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.pending[panelID]
	if entry == nil {
		return 0, false
	}
	return entry.token, true
}

// Stop cancels every pending trigger and rejects new schedules.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, entry := range s.pending {
		entry.timer.Stop()
		delete(s.pending, id)
	}
}
