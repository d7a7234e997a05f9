package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidPanel indicates an invalid panel identifier or kind.
	ErrInvalidPanel = errors.New("invalid panel")
	// ErrPanelNotFound indicates a requested panel could not be found.
	ErrPanelNotFound = errors.New("panel not found")
	// ErrPanelExists indicates a panel id is already in use.
	ErrPanelExists = errors.New("panel already exists")
	// ErrUnknownParameter indicates a parameter the panel does not define.
	ErrUnknownParameter = errors.New("unknown parameter")
	// ErrInvalidParameter indicates a parameter value outside its range.
	ErrInvalidParameter = errors.New("invalid parameter value")
	// ErrEvaluatorLoading indicates a load is already in progress.
	ErrEvaluatorLoading = errors.New("evaluator load in progress")
	// ErrServiceClosed indicates the service no longer accepts triggers.
	ErrServiceClosed = errors.New("service closed")

	// ErrNotReady indicates the evaluator has not finished loading.
	ErrNotReady = errors.New("evaluator not ready")
	// ErrEvaluation indicates the evaluator rejected or failed on a program.
	ErrEvaluation = errors.New("evaluation failed")
	// ErrContractMismatch indicates the structured value lacks required fields.
	ErrContractMismatch = errors.New("contract mismatch")
	// ErrMalformedResult indicates the evaluator returned an unparsable structured value.
	ErrMalformedResult = errors.New("malformed result")
)

// FailureKind classifies evaluation failures.
type FailureKind string

const (
	// FailureNotReady is reported when the evaluator is not loaded.
	FailureNotReady FailureKind = "not_ready"
	// FailureEvaluation is an evaluator-level failure of the submitted program.
	FailureEvaluation FailureKind = "evaluation"
	// FailureContractMismatch is a missing or mistyped structured field.
	FailureContractMismatch FailureKind = "contract_mismatch"
	// FailureMalformedResult is an internal-contract violation by the evaluator.
	FailureMalformedResult FailureKind = "malformed_result"
)

// Sentinel returns the sentinel error matching the failure kind.
func (k FailureKind) Sentinel() error {
	switch k {
	case FailureNotReady:
		return ErrNotReady
	case FailureContractMismatch:
		return ErrContractMismatch
	case FailureMalformedResult:
		return ErrMalformedResult
	default:
		return ErrEvaluation
	}
}

// Label is a short human-readable description of the kind.
func (k FailureKind) Label() string {
	switch k {
	case FailureNotReady:
		return "not ready"
	case FailureContractMismatch:
		return "contract mismatch"
	case FailureMalformedResult:
		return "malformed result"
	default:
		return "evaluation error"
	}
}

// EvalError wraps a classified evaluation failure.
type EvalError struct {
	Kind    FailureKind
	Message string
	Console string
	Err     error
}

// NewEvalError constructs a classified evaluation error.
func NewEvalError(kind FailureKind, message string, err error) *EvalError {
	return &EvalError{Kind: kind, Message: message, Err: err}
}

// NewContractMismatch reports missing or mistyped structured fields.
func NewContractMismatch(message string) *EvalError {
	return &EvalError{Kind: FailureContractMismatch, Message: message}
}

func (e *EvalError) Error() string {
	if e == nil {
		return "evaluation error"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Label()
}

func (e *EvalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the sentinel error of the failure kind.
func (e *EvalError) Is(target error) bool {
	if e == nil {
		return false
	}
	return target == e.Kind.Sentinel()
}
