package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	events map[string]Op
	ch     chan struct{}
}

func newRecorder() *recorder {
	return &recorder{events: map[string]Op{}, ch: make(chan struct{}, 16)}
}

func (r *recorder) handle(id string, op Op) {
	r.mu.Lock()
	r.events[id] = op
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a change")
	}
}

func (r *recorder) get(id string) (Op, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.events[id]
	return op, ok
}

func TestStoreWatcher_ReportsRenamedSave(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	w, err := New(dir, 20*time.Millisecond, rec.handle, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	tmp := filepath.Join(dir, "doc-1.json.tmp")
	os.WriteFile(tmp, []byte("{}"), 0o644)
	if err := os.Rename(tmp, filepath.Join(dir, "doc-1.json")); err != nil {
		t.Fatal(err)
	}
	rec.wait(t)

	if op, ok := rec.get("doc-1"); !ok || op != OpChanged {
		t.Fatalf("expected doc-1 changed, got %q %v", op, ok)
	}
	if _, ok := rec.get("doc-1.json"); ok {
		t.Fatal("temp file reported as a document")
	}
}

func TestStoreWatcher_ReportsRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc-2.json")
	os.WriteFile(path, []byte("{}"), 0o644)

	rec := newRecorder()
	w, err := New(dir, 20*time.Millisecond, rec.handle, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	os.Remove(path)
	rec.wait(t)
	if op, _ := rec.get("doc-2"); op != OpRemoved {
		t.Fatalf("expected removed, got %q", op)
	}
}

func TestStoreWatcher_MissingDir(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "nope"), 0, nil, nil); err == nil {
		t.Fatal("expected an error for a missing directory")
	}
}

func TestStoreWatcher_CloseTwice(t *testing.T) {
	w, err := New(t.TempDir(), 0, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestDocumentID(t *testing.T) {
	tests := []struct {
		path string
		id   string
		ok   bool
	}{
		{"/d/abc.json", "abc", true},
		{"/d/abc.json.tmp", "", false},
		{"/d/.hidden.json", "", false},
		{"/d/notes.txt", "", false},
	}
	for _, tt := range tests {
		id, ok := documentID(tt.path)
		if id != tt.id || ok != tt.ok {
			t.Errorf("documentID(%q) = %q, %v", tt.path, id, ok)
		}
	}
}
