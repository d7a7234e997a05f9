package schema

// EvalResponse is the wire shape returned by an evaluator entry point.
// A non-empty Error marks a failed evaluation; JSON, when non-empty, is the
// serialized structured form of the final value.
type EvalResponse struct {
	Error  string `json:"error,omitempty"`
	Output string `json:"output,omitempty"`
	Value  string `json:"value,omitempty"`
	JSON   string `json:"json,omitempty"`
}

// EvaluationResult is either a Success or a Failure.
type EvaluationResult interface {
	isEvaluationResult()
}

// Success is a completed evaluation.
type Success struct {
	ConsoleText  string
	PrintedValue string
	// Structured is the decoded structured value; valid when HasStructured is set.
	Structured    any
	HasStructured bool
}

// Failure is a failed evaluation.
type Failure struct {
	Kind        FailureKind
	Message     string
	ConsoleText string
}

func (Success) isEvaluationResult() {}
func (Failure) isEvaluationResult() {}

// Err converts the failure into a classified error.
func (f Failure) Err() error {
	return &EvalError{Kind: f.Kind, Message: f.Message, Console: f.ConsoleText}
}

// FailureFromError converts an error into a failure variant. Unclassified
// errors become evaluation failures.
func FailureFromError(err error) Failure {
	if err == nil {
		return Failure{Kind: FailureEvaluation, Message: "unknown error"}
	}
	if evalErr, ok := err.(*EvalError); ok && evalErr != nil {
		kind := evalErr.Kind
		if kind == "" {
			kind = FailureEvaluation
		}
		return Failure{Kind: kind, Message: evalErr.Error(), ConsoleText: evalErr.Console}
	}
	return Failure{Kind: FailureEvaluation, Message: err.Error()}
}
