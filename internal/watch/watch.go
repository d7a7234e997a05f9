// Package watch feeds script files from a directory into panels. A file
// named <panel>.R holds the source of the panel with that id.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"pkt.systems/pslog"
	"pkt.systems/smallrhost/schema"
)

// ScriptExt is the extension of watched script files.
const ScriptExt = ".R"

// Handler receives the new source of a panel.
type Handler func(ctx context.Context, panelID schema.PanelID, source string) error

// Watcher watches one directory for script changes.
type Watcher struct {
	dir     string
	handler Handler

	mu   sync.Mutex
	last map[schema.PanelID]string
}

// New constructs a watcher over dir.
func New(dir string, handler Handler) (*Watcher, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("watch directory is required")
	}
	if handler == nil {
		return nil, errors.New("watch handler is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	return &Watcher{dir: dir, handler: handler, last: make(map[schema.PanelID]string)}, nil
}

// ScriptPath is the file holding panelID's source under dir.
func ScriptPath(dir string, panelID schema.PanelID) string {
	return filepath.Join(dir, string(panelID)+ScriptExt)
}

// PanelForPath maps a script path to its panel id.
func PanelForPath(path string) (schema.PanelID, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ScriptExt) || strings.HasPrefix(base, ".") {
		return "", false
	}
	id := schema.PanelID(strings.TrimSuffix(base, ScriptExt))
	if schema.ValidatePanelID(id) != nil {
		return "", false
	}
	return id, true
}

// Scan delivers every script currently in the directory, in name order.
func (w *Watcher) Scan(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if err := w.deliver(ctx, filepath.Join(w.dir, name)); err != nil {
			return err
		}
	}
	return nil
}

// Run watches the directory until ctx is done. Handler errors are logged
// and do not stop the watch.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()
	if err := fsw.Add(w.dir); err != nil {
		return err
	}
	log := pslog.Ctx(ctx)
	if log != nil {
		log.Info("script watch started", "dir", w.dir)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := w.deliver(ctx, event.Name); err != nil && log != nil {
				log.Warn("script update rejected", "path", event.Name, "err", err)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			if log != nil {
				log.Warn("script watch error", "err", err)
			}
		}
	}
}

// deliver reads path and hands it to the handler unless the content is
// unchanged since the last delivery.
func (w *Watcher) deliver(ctx context.Context, path string) error {
	panelID, ok := PanelForPath(path)
	if !ok {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	source := string(data)
	w.mu.Lock()
	if prev, seen := w.last[panelID]; seen && prev == source {
		w.mu.Unlock()
		return nil
	}
	w.last[panelID] = source
	w.mu.Unlock()
	if log := pslog.Ctx(ctx); log != nil {
		log.Debug("script changed", "panel", string(panelID), "bytes", len(data))
	}
	return w.handler(ctx, panelID, source)
}

// WriteMissing seeds dir with a script for each panel that has none.
func WriteMissing(dir string, sources map[schema.PanelID]string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(sources))
	for id := range sources {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	var written []string
	for _, id := range ids {
		path := ScriptPath(dir, schema.PanelID(id))
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(sources[schema.PanelID(id)]), 0o644); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}
