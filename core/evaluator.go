package core

import (
	"context"

	"pkt.systems/smallrhost/schema"
)

// Evaluator executes a complete program and returns the evaluator's wire
// response. A non-nil error means the call itself failed (process died,
// timeout); evaluation errors are reported in the response.
type Evaluator interface {
	Eval(ctx context.Context, source string) (schema.EvalResponse, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, source string) (schema.EvalResponse, error)

// Eval calls f.
func (f EvaluatorFunc) Eval(ctx context.Context, source string) (schema.EvalResponse, error) {
	return f(ctx, source)
}

// Loader prepares an evaluator. Loading may be slow.
type Loader interface {
	Load(ctx context.Context) (Evaluator, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) (Evaluator, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context) (Evaluator, error) {
	return f(ctx)
}

// Invoker is the call surface pipelines use to run programs.
type Invoker interface {
	Invoke(ctx context.Context, source string) schema.EvaluationResult
}
