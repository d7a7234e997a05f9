package core

import (
	"fmt"
	"strings"
	"sync"

	"pkt.systems/smallrhost/schema"
)

const defaultMaxLines = schema.DefaultConsoleMaxLines

// consoleView is a snapshot of the trailing transcript lines.
type consoleView struct {
	Lines      []string
	TotalLines int
}

// console is a bounded transcript of a panel's published runs. It has its
// own lock because it is appended to from inside Renderer.Publish.
type console struct {
	mu       sync.Mutex
	lines    []string
	maxLines int
}

func newConsole(maxLines int) *console {
	if maxLines <= 0 {
		maxLines = defaultMaxLines
	}
	return &console{maxLines: maxLines}
}

// Append adds lines, dropping the oldest beyond the limit.
func (c *console) Append(lines ...string) {
	if len(lines) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, lines...)
	if len(c.lines) > c.maxLines {
		c.lines = append([]string(nil), c.lines[len(c.lines)-c.maxLines:]...)
	}
}

// Record appends the transcript of a published update.
func (c *console) Record(update schema.PanelUpdate) {
	lines := []string{fmt.Sprintf("## run %d (%s)", update.Token, update.Reason)}
	if text := strings.TrimRight(update.ConsoleText, "\n"); text != "" {
		lines = append(lines, strings.Split(text, "\n")...)
	}
	if update.Succeeded() {
		if update.PrintedValue != "" {
			lines = append(lines, strings.Split(strings.TrimRight(update.PrintedValue, "\n"), "\n")...)
		}
	} else {
		lines = append(lines, fmt.Sprintf("Error (%s): %s", update.FailureKind.Label(), firstLine(update.Message)))
	}
	c.Append(lines...)
}

// Snapshot returns up to limit trailing lines; limit <= 0 returns all.
func (c *console) Snapshot(limit int) consoleView {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := len(c.lines)
	if limit <= 0 || limit > total {
		limit = total
	}
	lines := make([]string, limit)
	copy(lines, c.lines[total-limit:])
	return consoleView{Lines: lines, TotalLines: total}
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return text[:idx]
	}
	return text
}
