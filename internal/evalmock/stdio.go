package evalmock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// ServeStdio reads one program from in and writes one JSON response line to
// out, matching the process evaluator protocol.
func ServeStdio(ctx context.Context, e Evaluator, in io.Reader, out io.Writer) error {
	program, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read program: %w", err)
	}
	resp, err := e.Eval(ctx, string(program))
	if err != nil {
		return err
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	data = append(data, '\n')
	_, err = out.Write(data)
	return err
}
