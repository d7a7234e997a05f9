package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/smallrhost/schema"
)

// Bridge is the single call surface to the evaluator. It normalizes wire
// responses into schema.EvaluationResult values.
type Bridge struct {
	handle   *EvaluatorHandle
	observer Observer
	now      func() time.Time
}

// NewBridge returns a bridge bound to handle.
func NewBridge(handle *EvaluatorHandle, observer Observer) *Bridge {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Bridge{handle: handle, observer: observer, now: time.Now}
}

// Invoke runs a complete program. It never blocks waiting for the evaluator
// to load: an unavailable handle yields a not_ready failure immediately.
func (b *Bridge) Invoke(ctx context.Context, source string) schema.EvaluationResult {
	log := pslog.Ctx(ctx)
	started := b.now()
	evaluator, err := b.handle.Acquire()
	if err != nil {
		failure := schema.Failure{Kind: schema.FailureNotReady, Message: "evaluator is not loaded yet"}
		b.observer.ObserveInvoke(0, failure.Kind)
		log.Debug("bridge invoke rejected", "err", err)
		return failure
	}
	resp, err := evaluator.Eval(ctx, source)
	elapsed := b.now().Sub(started)
	var result schema.EvaluationResult
	if err != nil {
		result = transportFailure(err, resp.Output)
	} else {
		result = Normalize(resp)
	}
	switch r := result.(type) {
	case schema.Success:
		b.observer.ObserveInvoke(elapsed, "")
		log.Debug("bridge invoke done", "duration_ms", elapsed.Milliseconds(), "structured", r.HasStructured)
	case schema.Failure:
		b.observer.ObserveInvoke(elapsed, r.Kind)
		log.Debug("bridge invoke failed", "duration_ms", elapsed.Milliseconds(), "kind", r.Kind, "err", r.Message)
	}
	return result
}

// Normalize converts a wire response into a result variant.
func Normalize(resp schema.EvalResponse) schema.EvaluationResult {
	if resp.Error != "" {
		message := resp.Error
		if resp.Output != "" {
			message += "\n\nOutput:\n" + resp.Output
		}
		return schema.Failure{Kind: schema.FailureEvaluation, Message: message, ConsoleText: resp.Output}
	}
	success := schema.Success{ConsoleText: resp.Output, PrintedValue: resp.Value}
	if resp.JSON == "" {
		return success
	}
	var structured any
	if err := json.Unmarshal([]byte(resp.JSON), &structured); err != nil {
		return schema.Failure{
			Kind:        schema.FailureMalformedResult,
			Message:     "malformed result: " + err.Error(),
			ConsoleText: resp.Output,
		}
	}
	if structured != nil {
		success.Structured = structured
		success.HasStructured = true
	}
	return success
}

func transportFailure(err error, output string) schema.Failure {
	if errors.Is(err, context.Canceled) {
		return schema.Failure{Kind: schema.FailureEvaluation, Message: "evaluation canceled", ConsoleText: output}
	}
	return schema.Failure{Kind: schema.FailureEvaluation, Message: "evaluator call failed: " + err.Error(), ConsoleText: output}
}
