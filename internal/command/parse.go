package command

import (
	"strings"
)

// Command represents a parsed slash command.
type Command struct {
	Name      string
	Args      []string
	Raw       string
	Remainder string
}

// Parse parses a line and returns a Command if it starts with "/".
func Parse(input string) (Command, bool) {
	trimmed := strings.TrimLeft(input, " \t")
	if !strings.HasPrefix(trimmed, "/") {
		return Command{}, false
	}
	raw := strings.TrimSpace(trimmed[1:])
	if raw == "" {
		return Command{Name: "", Raw: ""}, true
	}
	fields := strings.Fields(raw)
	name := strings.ToLower(fields[0])
	args := []string{}
	if len(fields) > 1 {
		args = fields[1:]
	}
	return Command{
		Name:      name,
		Args:      args,
		Raw:       raw,
		Remainder: remainderAfterTokens(raw, 1),
	}, true
}

func remainderAfterTokens(raw string, count int) string {
	i := 0
	remaining := count
	for remaining > 0 && i < len(raw) {
		for i < len(raw) && isSpace(raw[i]) {
			i++
		}
		for i < len(raw) && !isSpace(raw[i]) {
			i++
		}
		remaining--
	}
	if i >= len(raw) {
		return ""
	}
	return strings.TrimSpace(raw[i:])
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// Complete reports whether src has balanced (), {} and [] outside string
// literals and comments. Unmatched closers are ignored.
func Complete(src string) bool {
	var depth [3]int
	var quote byte
	escaped := false
	comment := false
	for i := 0; i < len(src); i++ {
		ch := src[i]
		switch {
		case comment:
			if ch == '\n' {
				comment = false
			}
			continue
		case quote != 0:
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == quote:
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'', '`':
			quote = ch
		case '#':
			comment = true
		case '(', '{', '[':
			depth[strings.IndexByte("({[", ch)]++
		case ')', '}', ']':
			if idx := strings.IndexByte(")}]", ch); depth[idx] > 0 {
				depth[idx]--
			}
		}
	}
	return quote == 0 && depth == [3]int{}
}

// Buffer accumulates input lines until they form a complete program.
type Buffer struct {
	lines []string
}

// Add appends a line and returns the program once it is complete.
func (b *Buffer) Add(line string) (string, bool) {
	b.lines = append(b.lines, line)
	src := strings.Join(b.lines, "\n")
	if strings.TrimSpace(src) == "" {
		b.lines = nil
		return "", false
	}
	if !Complete(src) {
		return "", false
	}
	b.lines = nil
	return src + "\n", true
}

// Pending reports whether a partial program is buffered.
func (b *Buffer) Pending() bool {
	return len(b.lines) > 0
}

// Reset discards buffered input.
func (b *Buffer) Reset() {
	b.lines = nil
}
