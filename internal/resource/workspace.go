package resource

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/sync/errgroup"

	"github.com/sparklabs/sparkfs/internal/event"
	"github.com/sparklabs/sparkfs/internal/prefs"
	"github.com/sparklabs/sparkfs/internal/storage"
)

// Common errors.
var (
	ErrNilEntry        = errors.New("nil storage entry")
	ErrNotLinked       = errors.New("resource is not linked")
	ErrForeignResource = errors.New("resource belongs to a different workspace")
)

// PrefWorkspaceRoots is the preference key holding the retained-entry
// tokens of the workspace's top-level resources, as a JSON array.
const PrefWorkspaceRoots = "workspaceRoots"

// Workspace is the root container for one editing session. It holds a flat
// list of top-level resources (loose files and project roots) and owns the
// change bus every mutation publishes to.
type Workspace struct {
	mu       sync.RWMutex
	provider storage.Provider
	prefs    prefs.Store
	bus      *event.Bus[ChangeEvent]
	children []Resource
	byPath   map[string]Resource

	// restoring suppresses root persistence while Initialize relinks
	// the previous session.
	restoring bool
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithPrefs sets the preference store used to persist session roots.
func WithPrefs(store prefs.Store) Option {
	return func(w *Workspace) {
		w.prefs = store
	}
}

// WithEventBuffer sets the per-subscriber event channel buffer.
func WithEventBuffer(n int) Option {
	return func(w *Workspace) {
		w.bus = event.NewBus[ChangeEvent](event.WithBuffer(n))
	}
}

// NewWorkspace creates a workspace over the given storage provider.
func NewWorkspace(provider storage.Provider, opts ...Option) *Workspace {
	w := &Workspace{
		provider: provider,
		byPath:   make(map[string]Resource),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.bus == nil {
		w.bus = event.NewBus[ChangeEvent]()
	}
	return w
}

// Name returns the empty string; the workspace is the unnamed root.
func (w *Workspace) Name() string { return "" }

// Kind returns KindWorkspace.
func (w *Workspace) Kind() Kind { return KindWorkspace }

// Entry returns nil; the workspace has no backing entry.
func (w *Workspace) Entry() storage.Entry { return nil }

// Parent returns nil by definition.
func (w *Workspace) Parent() Container { return nil }

// Project returns nil; the workspace is never inside a project.
func (w *Workspace) Project() *Project { return nil }

// Provider returns the storage provider the tree is linked against.
func (w *Workspace) Provider() storage.Provider { return w.provider }

// Children returns the top-level resources in link order.
func (w *Workspace) Children() []Resource {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]Resource, len(w.children))
	copy(out, w.children)
	return out
}

// Files returns the loose files among the top-level children, in link
// order. It does not recurse.
func (w *Workspace) Files() []*File {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var files []*File
	for _, c := range w.children {
		if f, ok := c.(*File); ok {
			files = append(files, f)
		}
	}
	return files
}

// Projects returns the project roots among the top-level children, in link
// order. It does not recurse.
func (w *Workspace) Projects() []*Project {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var projects []*Project
	for _, c := range w.children {
		if p, ok := c.(*Project); ok {
			projects = append(projects, p)
		}
	}
	return projects
}

// Subscribe registers a listener on the change bus. Events arrive in
// emission order; past events are not replayed.
func (w *Workspace) Subscribe() *event.Subscription[ChangeEvent] {
	return w.bus.Subscribe()
}

// Unsubscribe cancels a subscription.
func (w *Workspace) Unsubscribe(sub *event.Subscription[ChangeEvent]) {
	w.bus.Unsubscribe(sub)
}

// Close shuts down the change bus. The tree itself stays readable.
func (w *Workspace) Close() {
	w.bus.Close()
}

// Initialize restores the previous session's top-level resources from the
// retained tokens persisted in the preference store. Tokens that no longer
// resolve, and roots that fail to repopulate, are skipped silently. It must
// run before the workspace is first used.
func (w *Workspace) Initialize(ctx context.Context) error {
	if w.prefs == nil {
		return nil
	}

	val, ok, err := w.prefs.Get(ctx, PrefWorkspaceRoots)
	if err != nil {
		return fmt.Errorf("restoring workspace roots: %w", err)
	}
	if !ok {
		return nil
	}

	w.mu.Lock()
	w.restoring = true
	w.mu.Unlock()

	for _, tok := range gjson.Parse(val).Array() {
		entry, err := w.provider.Restore(ctx, tok.String())
		if err != nil {
			continue // stale token
		}
		if _, err := w.Link(ctx, entry); err != nil {
			continue // root vanished mid-restore
		}
	}

	w.mu.Lock()
	w.restoring = false
	w.mu.Unlock()

	w.persistRoots(ctx)
	return nil
}

// Link wraps a storage entry as a top-level resource. A file entry becomes
// a File; a directory entry becomes a Project whose full subtree is
// populated before Link returns. Exactly one Added event is published per
// call, ahead of any population; population itself is silent.
//
// If population fails anywhere in the subtree, Link fails as a whole.
// Entries attached before the failure remain attached.
func (w *Workspace) Link(ctx context.Context, entry storage.Entry) (Resource, error) {
	if entry == nil {
		return nil, ErrNilEntry
	}

	if entry.IsDir() {
		p := newProject(w, w, entry)
		w.attach(p)
		w.publish(Added, p)
		if err := w.populate(ctx, p); err != nil {
			return nil, fmt.Errorf("linking %s: %w", entry.Name(), err)
		}
		w.persistRoots(ctx)
		return p, nil
	}

	f := newFile(w, w, entry)
	w.attach(f)
	w.publish(Added, f)
	w.persistRoots(ctx)
	return f, nil
}

// Unlink removes a resource from its parent container and publishes one
// Deleted event at the removed root. Descendants detach with it silently.
func (w *Workspace) Unlink(ctx context.Context, r Resource) error {
	tn, ok := r.(treeNode)
	if !ok || tn.base().ws != w {
		return ErrForeignResource
	}
	parent := r.Parent()
	if parent == nil {
		return ErrNotLinked
	}

	w.mu.Lock()
	removed := w.removeChildLocked(parent, r)
	if removed {
		w.deindexLocked(r)
	}
	w.mu.Unlock()

	if !removed {
		return ErrNotLinked
	}
	w.publish(Deleted, r)

	if _, topLevel := parent.(*Workspace); topLevel {
		w.persistRoots(ctx)
	}
	return nil
}

// MarkChanged publishes a Changed event for a linked resource. The watcher
// uses it to surface external modifications.
func (w *Workspace) MarkChanged(r Resource) {
	tn, ok := r.(treeNode)
	if !ok || tn.base().ws != w {
		return
	}
	w.publish(Changed, r)
}

// ResolvePath returns the linked resource whose backing entry has the
// given filesystem path, if any.
func (w *Workspace) ResolvePath(path string) (Resource, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	r, ok := w.byPath[path]
	return r, ok
}

// populate lists the container's entry and wraps each child, appending in
// listing order, then descends into subdirectories concurrently. The call
// returns once every subtree has settled, failing on the first error while
// leaving already-attached children in place.
func (w *Workspace) populate(ctx context.Context, dir Container) error {
	f := folderOf(dir)
	entries, err := w.provider.List(ctx, f.entry)
	if err != nil {
		return fmt.Errorf("listing %s: %w", f.Name(), err)
	}

	var subs []*Folder
	w.mu.Lock()
	for _, e := range entries {
		if e.IsDir() {
			child := newFolder(w, dir, e)
			f.children = append(f.children, child)
			w.indexLocked(child)
			subs = append(subs, child)
			continue
		}
		child := newFile(w, dir, e)
		f.children = append(f.children, child)
		w.indexLocked(child)
	}
	w.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			return w.populate(gctx, sub)
		})
	}
	return g.Wait()
}

func (w *Workspace) attach(r Resource) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.children = append(w.children, r)
	w.indexLocked(r)
}

func (w *Workspace) indexLocked(r Resource) {
	if p, ok := r.Entry().(storage.Pather); ok {
		w.byPath[p.Path()] = r
	}
}

func (w *Workspace) deindexLocked(r Resource) {
	if p, ok := r.Entry().(storage.Pather); ok {
		delete(w.byPath, p.Path())
	}
	if c, ok := r.(Container); ok {
		if f := folderOf(c); f != nil {
			for _, child := range f.children {
				w.deindexLocked(child)
			}
		}
	}
}

func (w *Workspace) removeChildLocked(parent Container, r Resource) bool {
	var list *[]Resource
	switch t := parent.(type) {
	case *Workspace:
		list = &t.children
	case *Project:
		list = &t.Folder.children
	case *Folder:
		list = &t.children
	default:
		return false
	}

	for i, c := range *list {
		if c == r {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return true
		}
	}
	return false
}

func (w *Workspace) publish(t EventType, r Resource) {
	w.bus.Publish(ChangeEvent{Resource: r, Type: t})
}

// persistRoots records retained tokens for the current top-level resources
// under PrefWorkspaceRoots. Session bookkeeping is advisory; failures are
// not surfaced to the mutation that triggered it.
func (w *Workspace) persistRoots(ctx context.Context) {
	w.mu.RLock()
	skip := w.prefs == nil || w.restoring
	entries := make([]storage.Entry, 0, len(w.children))
	for _, c := range w.children {
		entries = append(entries, c.Entry())
	}
	w.mu.RUnlock()

	if skip {
		return
	}

	doc := "[]"
	for _, e := range entries {
		token, err := w.provider.Retain(ctx, e)
		if err != nil {
			continue
		}
		doc, _ = sjson.Set(doc, "-1", token)
	}
	_ = w.prefs.Set(ctx, PrefWorkspaceRoots, doc)
}

func folderOf(c Container) *Folder {
	switch t := c.(type) {
	case *Project:
		return &t.Folder
	case *Folder:
		return t
	default:
		return nil
	}
}
