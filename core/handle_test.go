package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"pkt.systems/smallrhost/schema"
)

func TestEvaluatorHandleLifecycle(t *testing.T) {
	release := make(chan struct{})
	evaluator := EvaluatorFunc(func(context.Context, string) (schema.EvalResponse, error) {
		return schema.EvalResponse{}, nil
	})
	observer := &recordingObserver{}
	handle := NewEvaluatorHandle(LoaderFunc(func(context.Context) (Evaluator, error) {
		<-release
		return evaluator, nil
	}), observer)

	if handle.State() != HandleUnavailable {
		t.Fatalf("expected unavailable, got %q", handle.State())
	}
	done := handle.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for handle.State() != HandleLoading {
		if time.Now().After(deadline) {
			t.Fatalf("handle never entered loading")
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := handle.Acquire(); !errors.Is(err, schema.ErrNotReady) {
		t.Fatalf("expected ErrNotReady while loading, got %v", err)
	}
	if err := handle.Load(context.Background()); !errors.Is(err, schema.ErrEvaluatorLoading) {
		t.Fatalf("expected ErrEvaluatorLoading, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("load: %v", err)
	}
	select {
	case <-handle.Ready():
	default:
		t.Fatalf("expected ready channel closed")
	}
	if _, err := handle.Acquire(); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if observer.loads != 1 {
		t.Fatalf("expected one load observation, got %d", observer.loads)
	}
}

func TestEvaluatorHandleFailedLoadReturnsToUnavailable(t *testing.T) {
	attempts := 0
	handle := NewEvaluatorHandle(LoaderFunc(func(context.Context) (Evaluator, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("binary missing")
		}
		return EvaluatorFunc(func(context.Context, string) (schema.EvalResponse, error) {
			return schema.EvalResponse{}, nil
		}), nil
	}), nil)

	if err := handle.Load(context.Background()); err == nil {
		t.Fatalf("expected first load to fail")
	}
	if handle.State() != HandleUnavailable {
		t.Fatalf("expected unavailable after failure, got %q", handle.State())
	}
	if handle.LastError() == nil {
		t.Fatalf("expected last error recorded")
	}
	if err := handle.Load(context.Background()); err != nil {
		t.Fatalf("retry load: %v", err)
	}
	if handle.State() != HandleAvailable || handle.LastError() != nil {
		t.Fatalf("expected available with cleared error, got %q %v", handle.State(), handle.LastError())
	}
	if err := handle.Load(context.Background()); err != nil {
		t.Fatalf("load on available handle: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected loader called twice, got %d", attempts)
	}
}
