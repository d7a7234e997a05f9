package core

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"pkt.systems/smallrhost/schema"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward and runs due callbacks in order on the
// calling goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.fn()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// recordingRenderer keeps every published update.
type recordingRenderer struct {
	mu      sync.Mutex
	updates []schema.PanelUpdate
}

func (r *recordingRenderer) Publish(update schema.PanelUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update)
}

func (r *recordingRenderer) Updates() []schema.PanelUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]schema.PanelUpdate(nil), r.updates...)
}

// recordingObserver counts observations.
type recordingObserver struct {
	mu         sync.Mutex
	loads      int
	invokes    []schema.FailureKind
	superseded int
	stale      int
	published  int
}

func (o *recordingObserver) ObserveLoad(time.Duration, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loads++
}

func (o *recordingObserver) ObserveInvoke(_ time.Duration, failure schema.FailureKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.invokes = append(o.invokes, failure)
}

func (o *recordingObserver) ObserveSuperseded(schema.PanelID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.superseded++
}

func (o *recordingObserver) ObserveStale(schema.PanelID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stale++
}

func (o *recordingObserver) ObservePublish(schema.PanelUpdate) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.published++
}

// recordingInvoker answers every program with a fixed result and keeps the
// programs it saw.
type recordingInvoker struct {
	mu       sync.Mutex
	programs []string
	result   schema.EvaluationResult
}

func (i *recordingInvoker) Invoke(_ context.Context, source string) schema.EvaluationResult {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.programs = append(i.programs, source)
	return i.result
}

func (i *recordingInvoker) Programs() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.programs...)
}

// gatedInvoker blocks each call until the test releases it.
type gatedInvoker struct {
	calls chan gatedCall
}

type gatedCall struct {
	source  string
	release chan schema.EvaluationResult
}

func newGatedInvoker() *gatedInvoker {
	return &gatedInvoker{calls: make(chan gatedCall)}
}

func (g *gatedInvoker) Invoke(ctx context.Context, source string) schema.EvaluationResult {
	call := gatedCall{source: source, release: make(chan schema.EvaluationResult, 1)}
	select {
	case g.calls <- call:
	case <-ctx.Done():
		return schema.Failure{Kind: schema.FailureEvaluation, Message: "evaluation canceled"}
	}
	return <-call.release
}

// fakeSpec is a minimal panel: it binds a generated series `x` of length n
// and a bound scalar `k`, and expects a structured {"total": number}.
type fakeSpec struct {
	generates bool
	genCalls  atomic.Int64
	genErr    error
}

func (s *fakeSpec) Kind() schema.PanelKind { return schema.PanelStats }
func (s *fakeSpec) DefaultSource() string  { return "sum(x) * k" }

func (s *fakeSpec) Parameters() []schema.ParameterSpec {
	return []schema.ParameterSpec{
		{Name: "n", Default: 3, Min: 1, Max: 10, Step: 1, Integer: true},
		{Name: "k", Default: 2, Min: 0, Max: 5, Step: 0.5, Bind: true},
	}
}

func (s *fakeSpec) Generates() bool { return s.generates }

func (s *fakeSpec) Generate(params schema.Parameters, rng *rand.Rand) (schema.Dataset, error) {
	s.genCalls.Add(1)
	if s.genErr != nil {
		return nil, s.genErr
	}
	n := int(params["n"])
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(rng.IntN(100))
	}
	return schema.Dataset{{Name: "x", Values: values}}, nil
}

func (s *fakeSpec) Parse(in ParseInput) (schema.PanelShape, error) {
	fields, ok := in.Result.Structured.(map[string]any)
	if !ok {
		return nil, errors.New("expected fields total")
	}
	total, ok := fields["total"].(float64)
	if !ok {
		return nil, schema.NewContractMismatch("expected fields total")
	}
	return schema.StatsShape{Values: []float64{total}, Mean: total}, nil
}

type fakeCatalog struct {
	specs map[schema.PanelKind]PanelSpec
}

func newFakeCatalog(spec PanelSpec) fakeCatalog {
	return fakeCatalog{specs: map[schema.PanelKind]PanelSpec{spec.Kind(): spec}}
}

func (c fakeCatalog) Lookup(kind schema.PanelKind) (PanelSpec, bool) {
	spec, ok := c.specs[kind]
	return spec, ok
}

func (c fakeCatalog) Kinds() []schema.PanelKind {
	kinds := make([]schema.PanelKind, 0, len(c.specs))
	for kind := range c.specs {
		kinds = append(kinds, kind)
	}
	return kinds
}

func structuredSuccess(total float64) schema.Success {
	return schema.Success{
		ConsoleText:   "ok\n",
		PrintedValue:  "[1] total",
		Structured:    map[string]any{"total": total},
		HasStructured: true,
	}
}
