package schema

import (
	"errors"
	"fmt"
	"testing"
)

func TestEvalErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewContractMismatch("regression panel: expected fields intercept, slope"))
	if !errors.Is(err, ErrContractMismatch) {
		t.Fatalf("expected contract mismatch sentinel")
	}
	if errors.Is(err, ErrMalformedResult) {
		t.Fatalf("did not expect malformed result sentinel")
	}
}

func TestFailureRoundTripsThroughError(t *testing.T) {
	failure := Failure{Kind: FailureMalformedResult, Message: "malformed result: bad json", ConsoleText: "partial"}
	err := failure.Err()
	if !errors.Is(err, ErrMalformedResult) {
		t.Fatalf("expected malformed result sentinel, got %v", err)
	}
	back := FailureFromError(err)
	if back != failure {
		t.Fatalf("unexpected failure: %+v", back)
	}
}

func TestFailureFromPlainError(t *testing.T) {
	failure := FailureFromError(errors.New("boom"))
	if failure.Kind != FailureEvaluation || failure.Message != "boom" {
		t.Fatalf("unexpected failure: %+v", failure)
	}
}
