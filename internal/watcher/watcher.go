// Package watcher surfaces external filesystem changes for linked
// resources. It wraps fsnotify with recursive registration and debouncing
// so editor-style save bursts coalesce into single events.
package watcher

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherClosed is returned for operations on a closed watcher.
var ErrWatcherClosed = errors.New("watcher is closed")

// Op is the kind of filesystem change.
type Op int

const (
	// OpCreate means a file or directory appeared.
	OpCreate Op = iota
	// OpWrite means a file's content changed.
	OpWrite
	// OpRemove means a file or directory disappeared.
	OpRemove
	// OpRename means a file or directory was renamed away.
	OpRename
)

// Event is a debounced filesystem change.
type Event struct {
	Path string
	Op   Op
	Time time.Time
}

const (
	defaultDebounce = 100 * time.Millisecond
	defaultBuffer   = 128
)

// Watcher watches directory trees and emits debounced events.
type Watcher struct {
	fsw      *fsnotify.Watcher
	log      *zap.Logger
	debounce time.Duration
	events   chan Event

	mu      sync.Mutex
	pending map[string]Event
	order   []string
	timer   *time.Timer
	closed  bool

	done chan struct{}
	wg   sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger for watch registration and stream errors.
func WithLogger(log *zap.Logger) Option {
	return func(w *Watcher) {
		w.log = log
	}
}

// WithDebounce sets the quiet period before buffered events flush.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithBuffer sets the outgoing event channel buffer.
func WithBuffer(n int) Option {
	return func(w *Watcher) {
		w.events = make(chan Event, n)
	}
}

// New creates a watcher. Callers must Close it to release the underlying
// OS watches.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		log:      zap.NewNop(),
		debounce: defaultDebounce,
		pending:  make(map[string]Event),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.events == nil {
		w.events = make(chan Event, defaultBuffer)
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// WatchRecursive registers root and every directory below it. Directories
// created later under a watched tree are registered automatically.
func (w *Watcher) WatchRecursive(root string) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	w.mu.Unlock()

	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	return filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			w.log.Warn("watch registration failed",
				zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

// Events returns the debounced event stream. The channel closes when the
// watcher is closed.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Close stops watching and closes the event stream.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	close(w.events)
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch stream error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	var op Op
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
		// New directories under a watched tree get watched too.
		_ = w.fsw.Add(ev.Name)
	case ev.Has(fsnotify.Write):
		op = OpWrite
	case ev.Has(fsnotify.Remove):
		op = OpRemove
	case ev.Has(fsnotify.Rename):
		op = OpRename
	default:
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if _, seen := w.pending[ev.Name]; !seen {
		w.order = append(w.order, ev.Name)
	}
	w.pending[ev.Name] = Event{Path: ev.Name, Op: op, Time: time.Now()}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

// flush emits pending events in arrival order. Events that do not fit the
// buffer are dropped; consumers are expected to re-scan, not replay.
//
// flush joins the wait group under the same lock that guards closed, so
// Close cannot close the event channel while a flush is still sending.
func (w *Watcher) flush() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.wg.Add(1)
	defer w.wg.Done()
	events := make([]Event, 0, len(w.order))
	for _, path := range w.order {
		events = append(events, w.pending[path])
	}
	w.pending = make(map[string]Event)
	w.order = nil
	w.mu.Unlock()

	for _, ev := range events {
		select {
		case w.events <- ev:
		case <-w.done:
			return
		default:
			w.log.Warn("event buffer full, dropping",
				zap.String("path", ev.Path))
		}
	}
}
