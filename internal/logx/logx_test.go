package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"pkt.systems/pslog"
	"pkt.systems/smallrhost/schema"
)

func newCaptureLogger(capture *logCapture) pslog.Logger {
	return pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
}

func TestWithPanelAddsField(t *testing.T) {
	capture := &logCapture{}
	ctx := pslog.ContextWithLogger(context.Background(), newCaptureLogger(capture))
	WithPanel(ctx, "regression").Info("hello")

	entry := capture.firstEntry(t)
	if entry["panel"] != "regression" {
		t.Fatalf("expected panel field, got %+v", entry)
	}
}

func TestWithPanelSkipsDuplicateMarker(t *testing.T) {
	capture := &logCapture{}
	ctx := pslog.ContextWithLogger(context.Background(), newCaptureLogger(capture))
	log := WithPanel(ctx, "stats")
	ctx = ContextWithPanelLogger(ctx, log, "stats")
	WithPanel(ctx, "stats").Info("hello")

	line := capture.buf.String()
	if n := bytes.Count([]byte(line), []byte(`"panel"`)); n != 1 {
		t.Fatalf("expected a single panel field, got %d in %s", n, line)
	}
}

func TestWithRunAddsFields(t *testing.T) {
	capture := &logCapture{}
	WithRun(newCaptureLogger(capture), 7, "run-1").Info("hello")

	entry := capture.firstEntry(t)
	if entry["run"] != "run-1" {
		t.Fatalf("expected run field, got %+v", entry)
	}
	if fmt.Sprint(entry["token"]) != "7" {
		t.Fatalf("expected token field, got %+v", entry)
	}
}

func TestCopyContextFieldsCarriesPanel(t *testing.T) {
	src := ContextWithPanel(context.Background(), "ts")
	dst := CopyContextFields(context.Background(), src)
	if got, ok := dst.Value(panelKey).(schema.PanelID); !ok || got != "ts" {
		t.Fatalf("expected panel marker ts, got %v", dst.Value(panelKey))
	}
	if CopyContextFields(dst, nil) != dst {
		t.Fatalf("expected nil source to leave context unchanged")
	}
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
