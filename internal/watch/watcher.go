package watch

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op is the kind of change seen on a document file.
type Op string

const (
	OpChanged Op = "changed"
	OpRemoved Op = "removed"
)

// DefaultDebounce coalesces the burst of events a single save produces.
const DefaultDebounce = 150 * time.Millisecond

// ChangeHandler is called once per document after its events settle.
type ChangeHandler func(documentID string, op Op)

// StoreWatcher reports changes made to the document directory by other
// processes (an MCP server in standalone mode, a sync tool, an editor).
// Temp files written during a save are ignored; the rename that follows
// is reported as a change of the target document.
type StoreWatcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	onChange ChangeHandler
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
	done    chan struct{}
}

// New starts watching dir. debounce <= 0 uses DefaultDebounce.
func New(dir string, debounce time.Duration, onChange ChangeHandler, logger *slog.Logger) (*StoreWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &StoreWatcher{
		dir:      dir,
		watcher:  watcher,
		onChange: onChange,
		debounce: debounce,
		logger:   logger.With("component", "watcher"),
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	go w.watchLoop()
	return w, nil
}

// Close stops the watcher and drops changes that have not fired yet.
func (w *StoreWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for id, t := range w.pending {
		t.Stop()
		delete(w.pending, id)
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *StoreWatcher) watchLoop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *StoreWatcher) handle(event fsnotify.Event) {
	id, ok := documentID(event.Name)
	if !ok {
		return
	}
	var op Op
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		op = OpRemoved
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		op = OpChanged
	default:
		return
	}
	w.schedule(id, op)
}

// schedule (re)arms the per-document timer. The last op in a burst wins.
func (w *StoreWatcher) schedule(id string, op Op) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.pending[id]; ok {
		t.Stop()
	}
	w.pending[id] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			return
		}
		delete(w.pending, id)
		w.mu.Unlock()

		w.logger.Debug("document changed on disk", "document", id, "op", op)
		if w.onChange != nil {
			w.onChange(id, op)
		}
	})
}

func documentID(path string) (string, bool) {
	name := filepath.Base(path)
	if filepath.Ext(name) != ".json" {
		return "", false
	}
	id := strings.TrimSuffix(name, ".json")
	if id == "" || strings.HasPrefix(id, ".") {
		return "", false
	}
	return id, true
}
