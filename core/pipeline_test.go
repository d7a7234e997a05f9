package core

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"pkt.systems/smallrhost/schema"
)

func newTestPipeline(t *testing.T, spec PanelSpec, invoker Invoker, renderer Renderer, observer Observer) *Pipeline {
	t.Helper()
	p, err := NewPipeline(PipelineConfig{
		ID:       "p1",
		Spec:     spec,
		Invoker:  invoker,
		Renderer: renderer,
		Observer: observer,
		Rand:     rand.New(rand.NewPCG(1, 2)),
		NewRunID: func() string { return "run" },
	})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func TestPipelinePublishesSuccess(t *testing.T) {
	spec := &fakeSpec{generates: true}
	invoker := &recordingInvoker{result: structuredSuccess(12)}
	renderer := &recordingRenderer{}
	p := newTestPipeline(t, spec, invoker, renderer, nil)

	update, published := p.Trigger(context.Background(), schema.TriggerBoot, 1)
	if !published {
		t.Fatalf("expected publish")
	}
	if !update.Succeeded() {
		t.Fatalf("expected success, got %+v", update)
	}
	shape, ok := update.Shape.(schema.StatsShape)
	if !ok || shape.Mean != 12 {
		t.Fatalf("unexpected shape %#v", update.Shape)
	}
	programs := invoker.Programs()
	if len(programs) != 1 {
		t.Fatalf("expected one program, got %d", len(programs))
	}
	if !strings.HasPrefix(programs[0], "x <- c(") || !strings.Contains(programs[0], "\nk <- 2\nsum(x) * k") {
		t.Fatalf("unexpected program %q", programs[0])
	}
	if got := renderer.Updates(); len(got) != 1 || got[0].Token != 1 {
		t.Fatalf("unexpected renderer updates %+v", got)
	}
	snap := p.Snapshot()
	if snap.LastResult == nil || snap.LastResult.Token != 1 || snap.Status != schema.PanelStatusIdle {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestPipelineRegeneratesOnlyWhenNeeded(t *testing.T) {
	spec := &fakeSpec{generates: true}
	p := newTestPipeline(t, spec, &recordingInvoker{result: structuredSuccess(1)}, nil, nil)
	ctx := context.Background()

	p.Trigger(ctx, schema.TriggerRun, 1)
	if spec.genCalls.Load() != 1 {
		t.Fatalf("expected generation when no data exists, got %d", spec.genCalls.Load())
	}
	first := p.Snapshot().Generated
	p.Trigger(ctx, schema.TriggerRun, 2)
	p.Trigger(ctx, schema.TriggerEdit, 3)
	if spec.genCalls.Load() != 1 {
		t.Fatalf("expected run and edit to reuse data, got %d generations", spec.genCalls.Load())
	}
	p.Trigger(ctx, schema.TriggerRegenerate, 4)
	if spec.genCalls.Load() != 2 {
		t.Fatalf("expected regenerate to generate, got %d", spec.genCalls.Load())
	}
	if _, err := p.SetParameter("n", 5); err != nil {
		t.Fatalf("set parameter: %v", err)
	}
	p.Trigger(ctx, schema.TriggerRun, 5)
	if spec.genCalls.Load() != 3 {
		t.Fatalf("expected stale data to regenerate on run, got %d", spec.genCalls.Load())
	}
	values, _ := p.Snapshot().Generated.Lookup("x")
	if len(values) != 5 {
		t.Fatalf("expected 5 generated values, got %d", len(values))
	}
	if len(first) != 1 {
		t.Fatalf("expected a single series, got %+v", first)
	}
}

func TestPipelineStaleResultIsDiscarded(t *testing.T) {
	invoker := newGatedInvoker()
	renderer := &recordingRenderer{}
	observer := &recordingObserver{}
	p := newTestPipeline(t, &fakeSpec{}, invoker, renderer, observer)
	ctx := context.Background()

	type outcome struct {
		update    schema.PanelUpdate
		published bool
	}
	older := make(chan outcome, 1)
	newer := make(chan outcome, 1)
	go func() {
		u, ok := p.Trigger(ctx, schema.TriggerRun, 1)
		older <- outcome{u, ok}
	}()
	firstCall := <-invoker.calls
	go func() {
		u, ok := p.Trigger(ctx, schema.TriggerRun, 2)
		newer <- outcome{u, ok}
	}()
	secondCall := <-invoker.calls

	if p.Snapshot().Status != schema.PanelStatusRunning {
		t.Fatalf("expected running status while calls are in flight")
	}

	secondCall.release <- structuredSuccess(2)
	got := <-newer
	if !got.published || got.update.Token != 2 {
		t.Fatalf("expected newer run to publish, got %+v", got)
	}
	firstCall.release <- structuredSuccess(1)
	got = <-older
	if got.published {
		t.Fatalf("expected older run to be discarded")
	}

	updates := renderer.Updates()
	if len(updates) != 1 || updates[0].Token != 2 {
		t.Fatalf("expected only token 2 published, got %+v", updates)
	}
	if last := p.Snapshot().LastResult; last == nil || last.Token != 2 {
		t.Fatalf("expected last result token 2, got %+v", last)
	}
	if observer.stale != 1 || observer.published != 1 {
		t.Fatalf("unexpected observations stale=%d published=%d", observer.stale, observer.published)
	}
}

func TestPipelineOlderTokenStartedLateIsRejected(t *testing.T) {
	invoker := newGatedInvoker()
	renderer := &recordingRenderer{}
	observer := &recordingObserver{}
	p := newTestPipeline(t, &fakeSpec{}, invoker, renderer, observer)
	ctx := context.Background()

	newer := make(chan bool, 1)
	go func() {
		_, ok := p.Trigger(ctx, schema.TriggerRun, 2)
		newer <- ok
	}()
	call := <-invoker.calls

	update, published := p.Trigger(ctx, schema.TriggerRun, 1)
	if published {
		t.Fatalf("expected older token to be rejected")
	}
	if update.Token != 1 || !strings.Contains(update.Message, "superseded by run 2") {
		t.Fatalf("unexpected rejected update %+v", update)
	}
	select {
	case extra := <-invoker.calls:
		t.Fatalf("older token reached the evaluator: %q", extra.source)
	default:
	}

	call.release <- structuredSuccess(2)
	if !<-newer {
		t.Fatalf("expected newer token to publish")
	}
	updates := renderer.Updates()
	if len(updates) != 1 || updates[0].Token != 2 {
		t.Fatalf("expected only token 2 published, got %+v", updates)
	}
	if last := p.Snapshot().LastResult; last == nil || last.Token != 2 {
		t.Fatalf("expected last result token 2, got %+v", last)
	}
	if observer.stale != 1 || observer.published != 1 {
		t.Fatalf("unexpected observations stale=%d published=%d", observer.stale, observer.published)
	}
}

func TestPipelineEvaluationErrorPublishesFailureWithoutShape(t *testing.T) {
	invoker := &recordingInvoker{result: schema.Failure{Kind: schema.FailureEvaluation, Message: "boom", ConsoleText: "partial"}}
	renderer := &recordingRenderer{}
	p := newTestPipeline(t, &fakeSpec{}, invoker, renderer, nil)

	update, published := p.Trigger(context.Background(), schema.TriggerRun, 1)
	if !published || update.Succeeded() {
		t.Fatalf("expected published failure, got %+v", update)
	}
	if update.Shape != nil {
		t.Fatalf("failure must not carry a shape")
	}
	if update.FailureKind != schema.FailureEvaluation || update.Message != "boom" || update.ConsoleText != "partial" {
		t.Fatalf("unexpected failure update %+v", update)
	}
}

func TestPipelineContractMismatch(t *testing.T) {
	cases := []schema.EvaluationResult{
		schema.Success{Structured: map[string]any{"other": 1.0}, HasStructured: true},
		schema.Success{},
	}
	for _, result := range cases {
		p := newTestPipeline(t, &fakeSpec{}, &recordingInvoker{result: result}, nil, nil)
		update, _ := p.Trigger(context.Background(), schema.TriggerRun, 1)
		if update.FailureKind != schema.FailureContractMismatch {
			t.Fatalf("expected contract mismatch, got %+v", update)
		}
		if !strings.Contains(update.Message, "total") {
			t.Fatalf("expected message to name the field, got %q", update.Message)
		}
	}
}

func TestPipelineNotReadyPublishesFailure(t *testing.T) {
	bridge := NewBridge(NewEvaluatorHandle(nil, nil), nil)
	p := newTestPipeline(t, &fakeSpec{}, bridge, nil, nil)
	update, published := p.Trigger(context.Background(), schema.TriggerBoot, 1)
	if !published || update.FailureKind != schema.FailureNotReady {
		t.Fatalf("expected not_ready failure, got %+v", update)
	}
}

func TestPipelineGenerateErrorFailsRun(t *testing.T) {
	spec := &fakeSpec{generates: true, genErr: errors.New("no entropy")}
	invoker := &recordingInvoker{result: structuredSuccess(1)}
	p := newTestPipeline(t, spec, invoker, nil, nil)
	update, _ := p.Trigger(context.Background(), schema.TriggerBoot, 1)
	if update.Succeeded() || !strings.Contains(update.Message, "no entropy") {
		t.Fatalf("expected generation failure, got %+v", update)
	}
	if len(invoker.Programs()) != 0 {
		t.Fatalf("expected no evaluator call")
	}
}

func TestPipelineSetParameterValidates(t *testing.T) {
	p := newTestPipeline(t, &fakeSpec{}, &recordingInvoker{}, nil, nil)
	if _, err := p.SetParameter("missing", 1); !errors.Is(err, schema.ErrUnknownParameter) {
		t.Fatalf("expected ErrUnknownParameter, got %v", err)
	}
	if _, err := p.SetParameter("n", 11); !errors.Is(err, schema.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	value, err := p.SetParameter("n", 4.4)
	if err != nil || value != 4 {
		t.Fatalf("expected rounded value 4, got %v %v", value, err)
	}
}

func TestPipelineCloseDiscardsInFlight(t *testing.T) {
	invoker := newGatedInvoker()
	renderer := &recordingRenderer{}
	p := newTestPipeline(t, &fakeSpec{}, invoker, renderer, nil)
	done := make(chan bool, 1)
	go func() {
		_, published := p.Trigger(context.Background(), schema.TriggerRun, 1)
		done <- published
	}()
	call := <-invoker.calls
	p.Close()
	call.release <- structuredSuccess(1)
	select {
	case published := <-done:
		if published {
			t.Fatalf("expected closed pipeline not to publish")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("trigger did not return")
	}
	if len(renderer.Updates()) != 0 {
		t.Fatalf("expected no updates after close")
	}
}
