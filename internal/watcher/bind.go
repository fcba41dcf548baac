package watcher

import (
	"sync"

	"github.com/sparklabs/sparkfs/internal/resource"
)

// Bind forwards write events for watched paths to the workspace as Changed
// events on resources that resolve by path. Creates, removes and renames
// are ignored here; relinking the affected root is the caller's call.
//
// The returned stop function detaches the forwarder; it does not close the
// watcher.
func Bind(ws *resource.Workspace, w *Watcher) (stop func()) {
	quit := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case <-quit:
				return
			case ev, ok := <-w.Events():
				if !ok {
					return
				}
				if ev.Op != OpWrite {
					continue
				}
				if r, found := ws.ResolvePath(ev.Path); found {
					ws.MarkChanged(r)
				}
			}
		}
	}()

	return func() {
		once.Do(func() { close(quit) })
	}
}
