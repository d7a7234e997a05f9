// Package evalproc runs programs through an external evaluator binary. Each
// call starts one child process, writes the program to its stdin and reads a
// single JSON response line from its stdout.
package evalproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/smallrhost/core"
	"pkt.systems/smallrhost/schema"
)

// DefaultBinary is the evaluator looked up on PATH when none is configured.
const DefaultBinary = "smallr-eval-mock"

// DefaultCallTimeout bounds a single evaluation.
const DefaultCallTimeout = 30 * time.Second

// ProbeProgram is evaluated once by the loader to verify the binary speaks
// the protocol.
const ProbeProgram = "probe <- 1\n"

const stderrPreview = 400

// Config controls how the evaluator binary is invoked.
type Config struct {
	BinaryPath  string
	ExtraArgs   []string
	Env         []string
	CallTimeout time.Duration
}

// Evaluator implements core.Evaluator on top of a child process.
type Evaluator struct {
	cfg Config
}

// NewEvaluator constructs a process evaluator without probing the binary.
func NewEvaluator(cfg Config) *Evaluator {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = DefaultBinary
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	return &Evaluator{cfg: cfg}
}

// Eval runs source in a fresh evaluator process.
func (e *Evaluator) Eval(ctx context.Context, source string) (schema.EvalResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	log := pslog.Ctx(ctx)
	cmd := exec.CommandContext(ctx, e.cfg.BinaryPath, e.cfg.ExtraArgs...)
	cmd.Env = mergeEnv(os.Environ(), e.cfg.Env)
	cmd.Stdin = strings.NewReader(source)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	started := time.Now()
	runErr := cmd.Run()
	fields := []any{
		"binary", e.cfg.BinaryPath,
		"source_len", len(source),
		"duration_ms", time.Since(started).Milliseconds(),
	}
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if log != nil {
				log.Warn("evaluator call interrupted", append(fields, "err", ctxErr)...)
			}
			return schema.EvalResponse{}, ctxErr
		}
		exitCode, signal := exitStatus(runErr)
		if exitCode < 0 && signal == "" {
			if log != nil {
				log.Error("evaluator start failed", append(fields, "err", runErr)...)
			}
			return schema.EvalResponse{}, runErr
		}
		fields = append(fields, "exit_code", exitCode)
		if signal != "" {
			fields = append(fields, "signal", signal)
		}
	}

	resp, decodeErr := decodeResponse(stdout.Bytes())
	if decodeErr != nil {
		err := describeFailure(runErr, decodeErr, stderr.String())
		if log != nil {
			log.Warn("evaluator call failed", append(fields, "err", err)...)
		}
		return schema.EvalResponse{}, err
	}
	if log != nil {
		log.Debug("evaluator call finished", append(fields, "stderr_len", stderr.Len(), "error", resp.Error != "")...)
	}
	return resp, nil
}

func describeFailure(runErr, decodeErr error, stderr string) error {
	detail := strings.TrimSpace(stderr)
	if len(detail) > stderrPreview {
		detail = detail[:stderrPreview] + "..."
	}
	var err error
	if runErr != nil {
		err = fmt.Errorf("evaluator exited: %w", runErr)
	} else {
		err = decodeErr
	}
	if detail != "" {
		err = fmt.Errorf("%w: %s", err, detail)
	}
	return err
}

func exitStatus(err error) (int, string) {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return -1, ""
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return exitErr.ExitCode(), status.Signal().String()
	}
	return exitErr.ExitCode(), ""
}

// Loader resolves the binary and probes it once.
type Loader struct {
	cfg Config
}

// NewLoader constructs a loader for cfg.
func NewLoader(cfg Config) *Loader {
	return &Loader{cfg: cfg}
}

// Load implements core.Loader.
func (l *Loader) Load(ctx context.Context) (core.Evaluator, error) {
	cfg := l.cfg
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = DefaultBinary
	}
	path, err := exec.LookPath(cfg.BinaryPath)
	if err != nil {
		return nil, fmt.Errorf("resolve evaluator %q: %w", cfg.BinaryPath, err)
	}
	cfg.BinaryPath = path
	evaluator := NewEvaluator(cfg)
	resp, err := evaluator.Eval(ctx, ProbeProgram)
	if err != nil {
		return nil, fmt.Errorf("probe evaluator: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("probe evaluator: %s", resp.Error)
	}
	if log := pslog.Ctx(ctx); log != nil {
		log.Info("evaluator probed", "binary", path)
	}
	return evaluator, nil
}

// mergeEnv appends overrides to base, dropping base entries they replace.
func mergeEnv(base, overrides []string) []string {
	out := base
	for _, entry := range overrides {
		key, _, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		out = filterEnv(out, key)
	}
	return append(out, overrides...)
}

func filterEnv(env []string, key string) []string {
	if len(env) == 0 {
		return env
	}
	prefix := key + "="
	out := make([]string, 0, len(env))
	for _, entry := range env {
		if strings.HasPrefix(entry, prefix) {
			continue
		}
		out = append(out, entry)
	}
	return out
}
