package evalproc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"

	"pkt.systems/smallrhost/schema"
)

// ErrNoResponse is returned when the evaluator printed nothing decodable.
var ErrNoResponse = errors.New("evaluator returned no response")

type responseDecodeError struct {
	line []byte
	err  error
}

// Line is the stdout line that failed to decode.
func (e *responseDecodeError) Line() []byte {
	return e.line
}

func (e *responseDecodeError) Error() string {
	return "decode evaluator response: " + e.err.Error()
}

func (e *responseDecodeError) Unwrap() error {
	return e.err
}

// decodeResponse decodes the last non-blank stdout line. Earlier lines are
// stray prints from the evaluator runtime.
func decodeResponse(stdout []byte) (schema.EvalResponse, error) {
	var last []byte
	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 64<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) > 0 {
			last = append(last[:0], line...)
		}
	}
	if err := scanner.Err(); err != nil {
		return schema.EvalResponse{}, err
	}
	if len(last) == 0 {
		return schema.EvalResponse{}, ErrNoResponse
	}
	var resp schema.EvalResponse
	if err := json.Unmarshal(last, &resp); err != nil {
		return schema.EvalResponse{}, &responseDecodeError{line: last, err: err}
	}
	return resp, nil
}
