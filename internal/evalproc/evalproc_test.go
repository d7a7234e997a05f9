package evalproc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"pkt.systems/smallrhost/internal/evalmock"
)

// TestHelperProcess is the evaluator binary used by the tests below.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("EVALPROC_HELPER_MODE") {
	case "mock":
		fmt.Println("loading runtime")
		if err := evalmock.ServeStdio(context.Background(), evalmock.Evaluator{}, os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "garbage":
		fmt.Println("not json")
	case "silent":
	case "fail":
		fmt.Fprintln(os.Stderr, "runtime exploded")
		os.Exit(3)
	case "sleep":
		time.Sleep(10 * time.Second)
	case "probe-error":
		fmt.Println(`{"error":"no runtime"}`)
	}
	os.Exit(0)
}

func helperConfig(mode string) Config {
	return Config{
		BinaryPath:  os.Args[0],
		ExtraArgs:   []string{"-test.run=TestHelperProcess", "--"},
		Env:         []string{"GO_WANT_HELPER_PROCESS=1", "EVALPROC_HELPER_MODE=" + mode},
		CallTimeout: 5 * time.Second,
	}
}

func TestEvalRoundTrip(t *testing.T) {
	e := NewEvaluator(helperConfig("mock"))
	resp, err := e.Eval(context.Background(), "x <- c(0,1)\ny <- c(1,3)\n")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	want := evalmock.Evaluate("x <- c(0,1)\ny <- c(1,3)\n")
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Fatalf("unexpected response (-want +got):\n%s", diff)
	}
}

func TestEvalReportsEvaluationErrorsInResponse(t *testing.T) {
	e := NewEvaluator(helperConfig("mock"))
	resp, err := e.Eval(context.Background(), `stop("boom")`)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if resp.Error != "boom" {
		t.Fatalf("expected evaluation error in response, got %+v", resp)
	}
}

func TestEvalGarbageOutput(t *testing.T) {
	_, err := NewEvaluator(helperConfig("garbage")).Eval(context.Background(), "1")
	var decodeErr *responseDecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if string(decodeErr.Line()) != "not json" {
		t.Fatalf("unexpected line %q", decodeErr.Line())
	}
}

func TestEvalNoOutput(t *testing.T) {
	_, err := NewEvaluator(helperConfig("silent")).Eval(context.Background(), "1")
	if !errors.Is(err, ErrNoResponse) {
		t.Fatalf("expected ErrNoResponse, got %v", err)
	}
}

func TestEvalExitFailureIncludesStderr(t *testing.T) {
	_, err := NewEvaluator(helperConfig("fail")).Eval(context.Background(), "1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "evaluator exited") || !strings.Contains(err.Error(), "runtime exploded") {
		t.Fatalf("unexpected error %q", err)
	}
}

func TestEvalTimeout(t *testing.T) {
	cfg := helperConfig("sleep")
	cfg.CallTimeout = 200 * time.Millisecond
	start := time.Now()
	_, err := NewEvaluator(cfg).Eval(context.Background(), "1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("timeout did not interrupt the call")
	}
}

func TestEvalCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEvaluator(helperConfig("mock")).Eval(ctx, "1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestLoaderProbes(t *testing.T) {
	evaluator, err := NewLoader(helperConfig("mock")).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	resp, err := evaluator.Eval(context.Background(), "a <- 2\n")
	if err != nil || resp.JSON != `{"a":2}` {
		t.Fatalf("unexpected probe-loaded evaluator result %+v %v", resp, err)
	}
}

func TestLoaderErrors(t *testing.T) {
	if _, err := NewLoader(Config{BinaryPath: "smallr-eval-does-not-exist"}).Load(context.Background()); err == nil {
		t.Fatalf("expected resolve error")
	}
	_, err := NewLoader(helperConfig("probe-error")).Load(context.Background())
	if err == nil || !strings.Contains(err.Error(), "no runtime") {
		t.Fatalf("expected probe error, got %v", err)
	}
}

func TestMergeEnvOverrides(t *testing.T) {
	got := mergeEnv([]string{"A=1", "B=2"}, []string{"B=3", "C=4"})
	want := []string{"A=1", "B=3", "C=4"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected env (-want +got):\n%s", diff)
	}
}

