package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

type recordingHandler struct {
	mu    sync.Mutex
	calls []map[string]fsnotify.Op
}

func (r *recordingHandler) OnChanges(files map[string]fsnotify.Op) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, files)
}

func (r *recordingHandler) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		n += len(c)
	}
	return n
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestWatcher_DetectsFileWrite(t *testing.T) {
	dir := t.TempDir()

	h := &recordingHandler{}
	w, err := New(Config{Paths: []string{dir}, DebounceDelay: 50 * time.Millisecond}, h)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	target := filepath.Join(dir, "main.go")
	if err := os.WriteFile(target, []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	waitUntil(t, 2*time.Second, func() bool { return h.total() > 0 })
}

func TestWatcher_IgnoresDotfilesAndTemp(t *testing.T) {
	dir := t.TempDir()

	h := &recordingHandler{}
	w, err := New(Config{Paths: []string{dir}, DebounceDelay: 50 * time.Millisecond}, h)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scratch.swp"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// Give the debounce window time to fire, then confirm nothing landed.
	time.Sleep(300 * time.Millisecond)
	if n := h.total(); n != 0 {
		t.Fatalf("expected ignored files to produce no changes, got %d", n)
	}
}

func TestWatcher_DebouncesBurstIntoSingleCall(t *testing.T) {
	dir := t.TempDir()

	h := &recordingHandler{}
	w, err := New(Config{Paths: []string{dir}, DebounceDelay: 150 * time.Millisecond}, h)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		path := filepath.Join(dir, "burst.go")
		if err := os.WriteFile(path, []byte("package main\n"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	waitUntil(t, 2*time.Second, func() bool { return h.total() > 0 })

	h.mu.Lock()
	calls := len(h.calls)
	h.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected a single debounced call, got %d", calls)
	}
}

func TestIsRemove(t *testing.T) {
	if !IsRemove(fsnotify.Remove) {
		t.Fatal("expected Remove op to report true")
	}
	if IsRemove(fsnotify.Write) {
		t.Fatal("expected Write op to report false")
	}
}
