package panels

import (
	"embed"
	"fmt"
	"io/fs"

	"pkt.systems/smallrhost/schema"
)

//go:embed scripts/*.R
var embeddedScripts embed.FS

// DefaultScript returns the embedded default program for kind.
func DefaultScript(kind schema.PanelKind) (string, error) {
	data, err := fs.ReadFile(embeddedScripts, "scripts/"+string(kind)+".R")
	if err != nil {
		return "", fmt.Errorf("read embedded script %s: %w", kind, err)
	}
	return string(data), nil
}

func mustScript(kind schema.PanelKind) string {
	script, err := DefaultScript(kind)
	if err != nil {
		panic(err)
	}
	return script
}
