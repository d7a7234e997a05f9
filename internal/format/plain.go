package format

import (
	"fmt"
	"strings"
	"time"

	"pkt.systems/smallrhost/internal/rvec"
	"pkt.systems/smallrhost/schema"
)

// Role tags a formatted line for styling.
type Role int

const (
	// RoleHeader is the first line of an update.
	RoleHeader Role = iota
	// RoleConsole is evaluator console output.
	RoleConsole
	// RoleSummary is the parsed panel shape.
	RoleSummary
	// RoleError is a failure message.
	RoleError
)

// Line is one formatted output line.
type Line struct {
	Role Role
	Text string
}

// PlainRenderer formats panel updates as plain text lines.
type PlainRenderer struct {
	// ShowConsole includes the evaluator console transcript.
	ShowConsole bool
	// MaxRows bounds table and series previews; zero means 10.
	MaxRows int
}

// NewPlainRenderer returns a default plain-text renderer.
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{ShowConsole: true}
}

// FormatUpdate converts a PanelUpdate into user-facing lines.
func (p *PlainRenderer) FormatUpdate(update schema.PanelUpdate) []Line {
	lines := []Line{{Role: RoleHeader, Text: header(update)}}
	if p.ShowConsole {
		for _, text := range splitLines(update.ConsoleText) {
			lines = append(lines, Line{Role: RoleConsole, Text: "> " + text})
		}
	}
	if !update.Succeeded() {
		for _, text := range splitLines(update.Message) {
			lines = append(lines, Line{Role: RoleError, Text: text})
		}
		return lines
	}
	for _, text := range p.formatShape(update.Shape) {
		lines = append(lines, Line{Role: RoleSummary, Text: text})
	}
	return lines
}

// Text flattens lines into newline-terminated text.
func Text(lines []Line) string {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

func header(update schema.PanelUpdate) string {
	status := "ok"
	if !update.Succeeded() {
		status = "failed: " + update.FailureKind.Label()
	}
	text := fmt.Sprintf("[%s] run %d (%s) %s", update.PanelID, update.Token, update.Reason, status)
	if update.Duration > 0 {
		text += " " + update.Duration.Round(time.Millisecond).String()
	}
	return text
}

func (p *PlainRenderer) maxRows() int {
	if p.MaxRows > 0 {
		return p.MaxRows
	}
	return 10
}

func (p *PlainRenderer) formatShape(shape schema.PanelShape) []string {
	switch s := shape.(type) {
	case schema.RegressionShape:
		return []string{
			fmt.Sprintf("y = %s + %s * x", num(s.Intercept), num(s.Slope)),
			fmt.Sprintf("r2 = %s over %d points", num(s.R2), len(s.Yhat)),
		}
	case schema.StatsShape:
		return []string{
			fmt.Sprintf("mean = %s, sd = %s", num(s.Mean), num(s.SD)),
			"values: " + p.preview(s.Values),
			"sorted: " + p.preview(s.Sorted),
		}
	case schema.DataFrameShape:
		return p.formatTable(s)
	case schema.TextShape:
		return s.Lines
	case schema.TimeSeriesShape:
		return []string{
			fmt.Sprintf("%d points, window %d, %d averages", len(s.Original), s.Window, len(s.MA)),
			fmt.Sprintf("mean = %s, sd = %s, range = [%s, %s]", num(s.Mean), num(s.SD), num(s.Min), num(s.Max)),
			"ma: " + p.preview(s.MA),
		}
	case schema.PlaygroundShape:
		if s.HasStructured && s.JSON != "" {
			return splitLines(s.JSON)
		}
		return splitLines(s.Value)
	case nil:
		return nil
	default:
		return []string{fmt.Sprintf("%s result", shape.ShapeKind())}
	}
}

func (p *PlainRenderer) formatTable(s schema.DataFrameShape) []string {
	lines := []string{fmt.Sprintf("%-12s %6s %6s %5s", "name", "age", "score", "pass")}
	for i, row := range s.Rows {
		if i == p.maxRows() {
			lines = append(lines, fmt.Sprintf("... %d more rows", len(s.Rows)-i))
			break
		}
		lines = append(lines, fmt.Sprintf("%-12s %6s %6s %5t", row.Name, num(row.Age), num(row.Score), row.Pass))
	}
	lines = append(lines, fmt.Sprintf("mean score = %s, mean age = %s", num(s.MeanScore), num(s.MeanAge)))
	return lines
}

func (p *PlainRenderer) preview(values []float64) string {
	limit := p.maxRows()
	parts := make([]string, 0, min(len(values), limit)+1)
	for i, v := range values {
		if i == limit {
			parts = append(parts, fmt.Sprintf("... (%d total)", len(values)))
			break
		}
		parts = append(parts, num(v))
	}
	return strings.Join(parts, " ")
}

func num(v float64) string {
	return rvec.FormatNumber(v)
}

func splitLines(text string) []string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
