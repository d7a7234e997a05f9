package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/smallrhost/schema"
)

// HandleState is the lifecycle state of an EvaluatorHandle.
type HandleState string

const (
	// HandleUnavailable means no evaluator is loaded.
	HandleUnavailable HandleState = "unavailable"
	// HandleLoading means a load is in progress.
	HandleLoading HandleState = "loading"
	// HandleAvailable means calls may be made.
	HandleAvailable HandleState = "available"
)

// EvaluatorHandle gates access to the process-wide evaluator. A failed load
// returns the handle to unavailable so it can be retried.
type EvaluatorHandle struct {
	loader   Loader
	observer Observer

	mu        sync.Mutex
	state     HandleState
	evaluator Evaluator
	lastErr   error
	ready     chan struct{}
}

// NewEvaluatorHandle returns an unavailable handle backed by loader.
func NewEvaluatorHandle(loader Loader, observer Observer) *EvaluatorHandle {
	if observer == nil {
		observer = NopObserver{}
	}
	return &EvaluatorHandle{
		loader:   loader,
		observer: observer,
		state:    HandleUnavailable,
		ready:    make(chan struct{}),
	}
}

// NewAvailableHandle wraps an already loaded evaluator.
func NewAvailableHandle(evaluator Evaluator) *EvaluatorHandle {
	h := NewEvaluatorHandle(nil, nil)
	h.state = HandleAvailable
	h.evaluator = evaluator
	close(h.ready)
	return h
}

// Load loads the evaluator synchronously. Loading an available handle is a
// no-op; loading while another load runs returns schema.ErrEvaluatorLoading.
func (h *EvaluatorHandle) Load(ctx context.Context) error {
	h.mu.Lock()
	switch h.state {
	case HandleAvailable:
		h.mu.Unlock()
		return nil
	case HandleLoading:
		h.mu.Unlock()
		return schema.ErrEvaluatorLoading
	}
	if h.loader == nil {
		h.mu.Unlock()
		return errors.New("evaluator loader not configured")
	}
	h.state = HandleLoading
	h.mu.Unlock()

	log := pslog.Ctx(ctx)
	log.Info("evaluator load start")
	started := time.Now()
	evaluator, err := h.loader.Load(ctx)
	if err == nil && evaluator == nil {
		err = errors.New("evaluator loader returned nil")
	}
	elapsed := time.Since(started)
	h.observer.ObserveLoad(elapsed, err)

	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.state = HandleUnavailable
		h.lastErr = err
		log.Warn("evaluator load failed", "err", err, "duration_ms", elapsed.Milliseconds())
		return err
	}
	h.state = HandleAvailable
	h.evaluator = evaluator
	h.lastErr = nil
	close(h.ready)
	log.Info("evaluator loaded", "duration_ms", elapsed.Milliseconds())
	return nil
}

// Start loads the evaluator in the background. The returned channel receives
// the load result and is then closed.
func (h *EvaluatorHandle) Start(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- h.Load(ctx)
	}()
	return done
}

// Acquire returns the evaluator, or schema.ErrNotReady when it is not
// available. It never blocks on a load.
func (h *EvaluatorHandle) Acquire() (Evaluator, error) {
	if h == nil {
		return nil, schema.ErrNotReady
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != HandleAvailable {
		return nil, schema.ErrNotReady
	}
	return h.evaluator, nil
}

// State reports the current lifecycle state.
func (h *EvaluatorHandle) State() HandleState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Ready is closed once the evaluator becomes available.
func (h *EvaluatorHandle) Ready() <-chan struct{} {
	return h.ready
}

// LastError returns the error of the most recent failed load.
func (h *EvaluatorHandle) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}
