// Package watch watches a project tree for file changes and triggers
// re-analysis of the changed documents, debouncing bursts of events
// the way editors and build tools tend to produce them.
package watch

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codesentry/codesentry/pkg/workspace"
)

var watchLog = log.New(os.Stderr, "[sentry:watch] ", log.Ltime)

// DefaultDebounceDelay is how long the watcher waits after the first
// change in a burst before notifying handlers; every change queued
// within that window is delivered in the same call. Later changes do
// not extend the window.
const DefaultDebounceDelay = 500 * time.Millisecond

// Config configures a Watcher.
type Config struct {
	Paths         []string
	DebounceDelay time.Duration
	Ignore        *workspace.Matcher
}

// ChangeHandler is notified with a path->operation map once a debounce
// window closes.
type ChangeHandler interface {
	OnChanges(files map[string]fsnotify.Op)
}

// ChangeHandlerFunc adapts a plain function to ChangeHandler.
type ChangeHandlerFunc func(files map[string]fsnotify.Op)

func (f ChangeHandlerFunc) OnChanges(files map[string]fsnotify.Op) { f(files) }

// Watcher watches a set of root paths and debounces filesystem events
// before handing them to its handlers.
type Watcher struct {
	fsw      *fsnotify.Watcher
	config   Config
	handlers []ChangeHandler

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu           sync.Mutex
	pending      map[string]fsnotify.Op
	debounceOnce sync.Once

	root        string
	dirsWatched int
	startTime   time.Time
}

// New creates a Watcher for config. If config.Ignore is nil, a
// default-only workspace.Matcher is used.
func New(config Config, handlers ...ChangeHandler) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if config.DebounceDelay == 0 {
		config.DebounceDelay = DefaultDebounceDelay
	}
	if config.Ignore == nil {
		config.Ignore = workspace.NewFromDefaults()
	}

	return &Watcher{
		fsw:      fsw,
		config:   config,
		handlers: handlers,
		stop:     make(chan struct{}),
		pending:  make(map[string]fsnotify.Op),
	}, nil
}

func (w *Watcher) AddHandler(h ChangeHandler) {
	w.handlers = append(w.handlers, h)
}

// Start walks config.Paths, registering every non-ignored directory
// with fsnotify, and begins processing events in the background.
func (w *Watcher) Start() error {
	paths := w.config.Paths
	if len(paths) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		paths = []string{cwd}
	}

	root := paths[0]
	w.root = root

	for _, p := range paths {
		err := filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() {
				return nil
			}
			if w.config.Ignore.ShouldIgnoreDir(relTo(root, path)) {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(path); err == nil {
				w.dirsWatched++
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	w.startTime = time.Now()
	w.wg.Add(1)
	go w.processEvents()

	watchLog.Printf("watching %d directories under %v (debounce: %v)", w.dirsWatched, paths, w.config.DebounceDelay)
	return nil
}

func relTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}

// Stop halts event processing and releases the underlying fsnotify
// watcher.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() { close(w.stop) })
	w.wg.Wait()
	return w.fsw.Close()
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stop:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					rel := relTo(w.root, event.Name)
					if !w.config.Ignore.ShouldIgnoreDir(rel) {
						if err := w.fsw.Add(event.Name); err == nil {
							w.dirsWatched++
							watchLog.Printf("watching new directory: %s", event.Name)
						}
					}
					continue
				}
			}

			name := filepath.Base(event.Name)
			if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") ||
				strings.HasSuffix(name, ".swp") || strings.HasSuffix(name, ".tmp") {
				continue
			}
			if w.config.Ignore.ShouldIgnoreFile(relTo(w.root, event.Name)) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				w.queueChange(event.Name, event.Op)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			watchLog.Printf("error: %v", err)
		}
	}
}

func (w *Watcher) queueChange(path string, op fsnotify.Op) {
	w.mu.Lock()
	w.pending[path] = op
	w.debounceOnce.Do(func() {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			select {
			case <-time.After(w.config.DebounceDelay):
				w.flushPending()
			case <-w.stop:
				return
			}
		}()
	})
	w.mu.Unlock()
}

func (w *Watcher) flushPending() {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.debounceOnce = sync.Once{}
	w.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	watchLog.Printf("processing %d file changes", len(pending))
	for _, h := range w.handlers {
		h.OnChanges(pending)
	}
}

// IsRemove reports whether op represents a file removal.
func IsRemove(op fsnotify.Op) bool {
	return op&fsnotify.Remove != 0
}
