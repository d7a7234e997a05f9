package format

import (
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"pkt.systems/smallrhost/schema"
)

// ColorMode selects when the console renderer emits ANSI colors.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ConsoleRenderer writes formatted updates to a writer. It implements
// core.Renderer.
type ConsoleRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	plain  *PlainRenderer
	styles map[Role]*color.Color
	ok     *color.Color
}

// NewConsoleRenderer constructs a renderer writing to out.
func NewConsoleRenderer(out io.Writer, mode ColorMode) *ConsoleRenderer {
	r := &ConsoleRenderer{
		out:   out,
		plain: NewPlainRenderer(),
		styles: map[Role]*color.Color{
			RoleHeader:  color.New(color.FgRed, color.Bold),
			RoleConsole: color.New(color.Faint),
			RoleSummary: color.New(color.FgCyan),
			RoleError:   color.New(color.FgRed),
		},
		ok: color.New(color.FgGreen, color.Bold),
	}
	enabled := UseColor(out, mode)
	for _, c := range r.allColors() {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

// UseColor resolves mode against out.
func UseColor(out io.Writer, mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (r *ConsoleRenderer) allColors() []*color.Color {
	out := []*color.Color{r.ok}
	for _, c := range r.styles {
		out = append(out, c)
	}
	return out
}

// SetShowConsole toggles the console transcript in rendered updates.
func (r *ConsoleRenderer) SetShowConsole(show bool) {
	r.mu.Lock()
	r.plain.ShowConsole = show
	r.mu.Unlock()
}

// Publish implements core.Renderer.
func (r *ConsoleRenderer) Publish(update schema.PanelUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range r.plain.FormatUpdate(update) {
		style := r.styles[line.Role]
		if line.Role == RoleHeader && update.Succeeded() {
			style = r.ok
		}
		_, _ = io.WriteString(r.out, style.Sprint(line.Text)+"\n")
	}
}

// Println writes a plain informational line.
func (r *ConsoleRenderer) Println(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = io.WriteString(r.out, text+"\n")
}
