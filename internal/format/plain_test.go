package format

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"pkt.systems/smallrhost/core"
	"pkt.systems/smallrhost/schema"
)

var _ core.Renderer = (*ConsoleRenderer)(nil)

func TestFormatRegressionUpdate(t *testing.T) {
	update := schema.PanelUpdate{
		PanelID:     "regression",
		Token:       3,
		Reason:      schema.TriggerBoot,
		Outcome:     schema.OutcomeSucceeded,
		ConsoleText: "fitting\n",
		Duration:    12 * time.Millisecond,
		Shape: schema.RegressionShape{
			Intercept: 0.5, Slope: 2, R2: 0.98765, Yhat: []float64{1, 2, 3},
		},
	}
	got := Text(NewPlainRenderer().FormatUpdate(update))
	want := "[regression] run 3 (boot) ok 12ms\n" +
		"> fitting\n" +
		"y = 0.5 + 2 * x\n" +
		"r2 = 0.98765 over 3 points\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected output (-want +got):\n%s", diff)
	}
}

func TestFormatFailureOmitsShape(t *testing.T) {
	update := schema.PanelUpdate{
		PanelID:     "stats",
		Token:       1,
		Reason:      schema.TriggerRun,
		Outcome:     schema.OutcomeFailed,
		FailureKind: schema.FailureContractMismatch,
		Message:     "expected fields values, mean, sd",
	}
	lines := (&PlainRenderer{}).FormatUpdate(update)
	want := []Line{
		{Role: RoleHeader, Text: "[stats] run 1 (run) failed: contract mismatch"},
		{Role: RoleError, Text: "expected fields values, mean, sd"},
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Fatalf("unexpected lines (-want +got):\n%s", diff)
	}
}

func TestFormatTruncatesLongSeries(t *testing.T) {
	p := &PlainRenderer{MaxRows: 3}
	if got := p.preview([]float64{1, 2, 3, 4, 5}); got != "1 2 3 ... (5 total)" {
		t.Fatalf("unexpected preview %q", got)
	}
	rows := make([]schema.DataFrameRow, 5)
	lines := p.formatTable(schema.DataFrameShape{Rows: rows})
	if !strings.HasPrefix(lines[4], "... 2 more rows") {
		t.Fatalf("expected truncation marker, got %v", lines)
	}
}

func TestConsoleRendererWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleRenderer(&buf, ColorNever)
	r.SetShowConsole(false)
	r.Publish(schema.PanelUpdate{
		PanelID: "strings",
		Token:   2,
		Reason:  schema.TriggerEdit,
		Outcome: schema.OutcomeSucceeded,
		Shape:   schema.TextShape{Lines: []string{"HELLO"}},
	})
	want := "[strings] run 2 (edit) ok\nHELLO\n"
	if buf.String() != want {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestConsoleRendererForcedColor(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleRenderer(&buf, ColorAlways)
	r.Publish(schema.PanelUpdate{PanelID: "stats", Outcome: schema.OutcomeFailed, Message: "boom"})
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("expected ANSI escapes, got %q", buf.String())
	}
}

func TestUseColorAutoOnBuffer(t *testing.T) {
	if UseColor(&bytes.Buffer{}, ColorAuto) {
		t.Fatalf("expected no color for non-terminal writer")
	}
}
