package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// waitFor blocks until an event for path arrives or the timeout expires.
func waitFor(t *testing.T, events <-chan Event, path string, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("event channel closed while waiting")
			}
			if ev.Path == path {
				return ev
			}
		case <-deadline:
			t.Fatalf("no event for %s within %v", path, timeout)
		}
	}
}

func TestWatcher_Write(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(target, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := New(WithDebounce(20 * time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.WatchRecursive(dir); err != nil {
		t.Fatalf("WatchRecursive error: %v", err)
	}

	if err := os.WriteFile(target, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}

	ev := waitFor(t, w.Events(), target, 5*time.Second)
	if ev.Op != OpWrite && ev.Op != OpCreate {
		t.Errorf("op = %v, want write or create", ev.Op)
	}
}

func TestWatcher_DebounceCoalesces(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "burst.txt")

	w, err := New(WithDebounce(50 * time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.WatchRecursive(dir); err != nil {
		t.Fatal(err)
	}

	// A save burst: create plus several rapid writes.
	if err := os.WriteFile(target, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(target, []byte("bb"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	waitFor(t, w.Events(), target, 5*time.Second)

	// The burst must have coalesced into a single pending entry, so no
	// second event for the same path arrives in the next quiet period.
	select {
	case ev := <-w.Events():
		if ev.Path == target {
			t.Errorf("burst produced a second event: %v", ev)
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_NewDirectoryAutoWatched(t *testing.T) {
	dir := t.TempDir()

	w, err := New(WithDebounce(20 * time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.WatchRecursive(dir); err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	waitFor(t, w.Events(), sub, 5*time.Second)

	// The new directory was registered, so files inside it are seen.
	inner := filepath.Join(sub, "inner.txt")
	if err := os.WriteFile(inner, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, w.Events(), inner, 5*time.Second)
}

func TestWatcher_CloseDuringFlush(t *testing.T) {
	for i := 0; i < 200; i++ {
		w, err := New(WithBuffer(1))
		if err != nil {
			t.Fatal(err)
		}

		// Seed a large pending batch so the flush send loop is still
		// running when Close shuts the event channel.
		w.mu.Lock()
		for j := 0; j < 64; j++ {
			p := fmt.Sprintf("/f%d", j)
			w.pending[p] = Event{Path: p, Op: OpWrite, Time: time.Now()}
			w.order = append(w.order, p)
		}
		w.mu.Unlock()

		flushed := make(chan struct{})
		go func() {
			w.flush()
			close(flushed)
		}()

		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
		<-flushed
	}
}

func TestWatcher_Close(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	if _, ok := <-w.Events(); ok {
		t.Error("event channel should be closed")
	}
	if err := w.WatchRecursive(t.TempDir()); err != ErrWatcherClosed {
		t.Errorf("WatchRecursive after close = %v, want ErrWatcherClosed", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}
