package resource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sparklabs/sparkfs/internal/event"
	"github.com/sparklabs/sparkfs/internal/prefs"
	"github.com/sparklabs/sparkfs/internal/storage"
)

// drain returns the events currently buffered on a subscription. All
// publishing in this package is synchronous, so whatever a completed
// operation emitted is already here.
func drain(sub *event.Subscription[ChangeEvent]) []ChangeEvent {
	var events []ChangeEvent
	for {
		select {
		case ev := <-sub.C():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestWorkspace_LinkFiles(t *testing.T) {
	m := storage.NewMemProvider()
	one := m.AddFile("/one.txt", "1")
	two := m.AddFile("/two.txt", "2")

	ws := NewWorkspace(m)
	defer ws.Close()
	ctx := context.Background()

	r1, err := ws.Link(ctx, one)
	if err != nil {
		t.Fatalf("Link(one) error: %v", err)
	}
	r2, err := ws.Link(ctx, two)
	if err != nil {
		t.Fatalf("Link(two) error: %v", err)
	}

	files := ws.Files()
	if len(files) != 2 {
		t.Fatalf("Files() returned %d, want 2", len(files))
	}
	if files[0] != r1 || files[1] != r2 {
		t.Error("Files() should return linked files in call order")
	}
	if files[0].Name() != "one.txt" || files[1].Name() != "two.txt" {
		t.Errorf("Files() names = %q, %q", files[0].Name(), files[1].Name())
	}
	if got := ws.Projects(); len(got) != 0 {
		t.Errorf("Projects() returned %d, want 0", len(got))
	}
	if got := ws.Children(); len(got) != 2 {
		t.Errorf("Children() returned %d, want 2", len(got))
	}
}

func TestWorkspace_LinkProjectPopulates(t *testing.T) {
	m := storage.NewMemProvider()
	m.AddFile("/proj/a.txt", "a")
	m.AddFile("/proj/sub/b.txt", "b")
	m.AddFile("/proj/sub/deep/c.txt", "c")
	dir, _ := m.Lookup("/proj")

	ws := NewWorkspace(m)
	defer ws.Close()

	r, err := ws.Link(context.Background(), dir)
	if err != nil {
		t.Fatalf("Link error: %v", err)
	}

	p, ok := r.(*Project)
	if !ok {
		t.Fatalf("Link returned %T, want *Project", r)
	}
	if p.Name() != "proj" || p.Kind() != KindProject {
		t.Errorf("project = %q kind %v", p.Name(), p.Kind())
	}

	kids := p.Children()
	if len(kids) != 2 {
		t.Fatalf("project has %d children, want 2", len(kids))
	}
	if kids[0].Name() != "a.txt" || kids[0].Kind() != KindFile {
		t.Errorf("children[0] = %q kind %v", kids[0].Name(), kids[0].Kind())
	}
	sub, ok := kids[1].(*Folder)
	if !ok || sub.Name() != "sub" {
		t.Fatalf("children[1] = %T %q, want *Folder sub", kids[1], kids[1].Name())
	}

	subKids := sub.Children()
	if len(subKids) != 2 {
		t.Fatalf("sub has %d children, want 2", len(subKids))
	}
	deep, ok := subKids[1].(*Folder)
	if !ok || deep.Name() != "deep" {
		t.Fatalf("sub children[1] = %T %q, want *Folder deep", subKids[1], subKids[1].Name())
	}
	if got := deep.Children(); len(got) != 1 || got[0].Name() != "c.txt" {
		t.Errorf("deep children = %v", got)
	}
}

func TestWorkspace_OneAddEventPerLink(t *testing.T) {
	m := storage.NewMemProvider()
	m.AddFile("/proj/a.txt", "a")
	m.AddFile("/proj/sub/b.txt", "b")
	dir, _ := m.Lookup("/proj")
	loose := m.AddFile("/loose.txt", "x")

	ws := NewWorkspace(m)
	defer ws.Close()
	sub := ws.Subscribe()
	defer ws.Unsubscribe(sub)
	ctx := context.Background()

	r, err := ws.Link(ctx, dir)
	if err != nil {
		t.Fatalf("Link error: %v", err)
	}
	events := drain(sub)
	if len(events) != 1 {
		t.Fatalf("link emitted %d events, want 1 (population must be silent)", len(events))
	}
	if events[0].Type != Added || events[0].Resource != r {
		t.Errorf("event = %v %v, want Added for returned resource", events[0].Type, events[0].Resource)
	}

	if _, err := ws.Link(ctx, loose); err != nil {
		t.Fatalf("Link(loose) error: %v", err)
	}
	events = drain(sub)
	if len(events) != 1 || events[0].Type != Added {
		t.Fatalf("loose link events = %v", events)
	}
}

func TestResource_ProjectResolution(t *testing.T) {
	m := storage.NewMemProvider()
	m.AddFile("/proj/sub/x.txt", "x")
	dir, _ := m.Lookup("/proj")
	loose := m.AddFile("/loose.txt", "l")

	ws := NewWorkspace(m)
	defer ws.Close()
	ctx := context.Background()

	r, err := ws.Link(ctx, dir)
	if err != nil {
		t.Fatalf("Link error: %v", err)
	}
	p := r.(*Project)

	folder := p.Children()[0].(*Folder)
	file := folder.Children()[0]

	if p.Project() != p {
		t.Error("a project should resolve to itself")
	}
	if folder.Project() != p {
		t.Error("nested folder should resolve to its project root")
	}
	if file.Project() != p {
		t.Error("nested file should resolve to its project root")
	}

	lf, err := ws.Link(ctx, loose)
	if err != nil {
		t.Fatalf("Link(loose) error: %v", err)
	}
	if lf.Project() != nil {
		t.Error("loose file should have no project")
	}
	if ws.Project() != nil {
		t.Error("workspace should have no project")
	}
}

// failingProvider fails directory listings for one directory name.
type failingProvider struct {
	*storage.MemProvider
	failName string
}

func (f *failingProvider) List(ctx context.Context, dir storage.Entry) ([]storage.Entry, error) {
	if dir.Name() == f.failName {
		return nil, fmt.Errorf("listing %s: storage offline", dir.Name())
	}
	return f.MemProvider.List(ctx, dir)
}

func TestWorkspace_PopulationFailure(t *testing.T) {
	m := storage.NewMemProvider()
	m.AddFile("/proj/ok/a.txt", "a")
	m.AddDir("/proj/bad")
	dir, _ := m.Lookup("/proj")

	ws := NewWorkspace(&failingProvider{MemProvider: m, failName: "bad"})
	defer ws.Close()
	sub := ws.Subscribe()
	defer ws.Unsubscribe(sub)

	_, err := ws.Link(context.Background(), dir)
	if err == nil {
		t.Fatal("Link should fail when a subtree listing fails")
	}

	// The top-level project stays attached; the failure is not rolled back.
	projects := ws.Projects()
	if len(projects) != 1 {
		t.Fatalf("Projects() returned %d, want 1", len(projects))
	}

	// The Added event for the root was already emitted.
	events := drain(sub)
	if len(events) != 1 || events[0].Type != Added {
		t.Errorf("events = %v, want single Added", events)
	}
}

func TestWorkspace_Unlink(t *testing.T) {
	m := storage.NewMemProvider()
	m.AddFile("/proj/sub/b.txt", "b")
	dir, _ := m.Lookup("/proj")
	loose := m.AddFile("/loose.txt", "l")

	ws := NewWorkspace(m)
	defer ws.Close()
	ctx := context.Background()

	lf, _ := ws.Link(ctx, loose)
	r, _ := ws.Link(ctx, dir)
	p := r.(*Project)

	sub := ws.Subscribe()
	defer ws.Unsubscribe(sub)

	if err := ws.Unlink(ctx, lf); err != nil {
		t.Fatalf("Unlink(loose) error: %v", err)
	}
	if len(ws.Files()) != 0 {
		t.Error("loose file should be gone after Unlink")
	}

	// Unlinking a container emits a single Deleted at the root.
	if err := ws.Unlink(ctx, p); err != nil {
		t.Fatalf("Unlink(project) error: %v", err)
	}
	events := drain(sub)
	if len(events) != 2 {
		t.Fatalf("unlink emitted %d events, want 2", len(events))
	}
	for i, want := range []Resource{lf, p} {
		if events[i].Type != Deleted || events[i].Resource != want {
			t.Errorf("events[%d] = %v %v", i, events[i].Type, events[i].Resource)
		}
	}

	if err := ws.Unlink(ctx, p); !errors.Is(err, ErrNotLinked) {
		t.Errorf("second Unlink error = %v, want ErrNotLinked", err)
	}
}

func TestWorkspace_UnlinkNested(t *testing.T) {
	m := storage.NewMemProvider()
	m.AddFile("/proj/sub/b.txt", "b")
	dir, _ := m.Lookup("/proj")

	ws := NewWorkspace(m)
	defer ws.Close()
	ctx := context.Background()

	r, _ := ws.Link(ctx, dir)
	p := r.(*Project)
	folder := p.Children()[0].(*Folder)

	if err := ws.Unlink(ctx, folder); err != nil {
		t.Fatalf("Unlink(nested) error: %v", err)
	}
	if len(p.Children()) != 0 {
		t.Error("nested folder should be removed from its parent")
	}

	other := NewWorkspace(storage.NewMemProvider())
	defer other.Close()
	if err := other.Unlink(ctx, folder); !errors.Is(err, ErrForeignResource) {
		t.Errorf("foreign Unlink error = %v, want ErrForeignResource", err)
	}
}

func TestWorkspace_Initialize(t *testing.T) {
	m := storage.NewMemProvider()
	m.AddFile("/proj/a.txt", "a")
	dir, _ := m.Lookup("/proj")
	loose := m.AddFile("/loose.txt", "l")
	store := prefs.NewMemStore()
	ctx := context.Background()

	first := NewWorkspace(m, WithPrefs(store))
	if _, err := first.Link(ctx, loose); err != nil {
		t.Fatal(err)
	}
	if _, err := first.Link(ctx, dir); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second := NewWorkspace(m, WithPrefs(store))
	defer second.Close()
	if err := second.Initialize(ctx); err != nil {
		t.Fatalf("Initialize error: %v", err)
	}

	kids := second.Children()
	if len(kids) != 2 {
		t.Fatalf("restored %d children, want 2", len(kids))
	}
	if kids[0].Name() != "loose.txt" || kids[1].Name() != "proj" {
		t.Errorf("restored children = %q, %q", kids[0].Name(), kids[1].Name())
	}
	if len(second.Projects()) != 1 {
		t.Error("restored workspace should have one project")
	}
}

func TestWorkspace_InitializeSkipsStaleRoots(t *testing.T) {
	m := storage.NewMemProvider()
	m.AddFile("/proj/a.txt", "a")
	dir, _ := m.Lookup("/proj")
	gone := m.AddFile("/gone.txt", "g")
	store := prefs.NewMemStore()
	ctx := context.Background()

	first := NewWorkspace(m, WithPrefs(store))
	if _, err := first.Link(ctx, gone); err != nil {
		t.Fatal(err)
	}
	if _, err := first.Link(ctx, dir); err != nil {
		t.Fatal(err)
	}
	first.Close()

	m.Remove("/gone.txt")

	second := NewWorkspace(m, WithPrefs(store))
	defer second.Close()
	if err := second.Initialize(ctx); err != nil {
		t.Fatalf("Initialize error: %v", err)
	}

	kids := second.Children()
	if len(kids) != 1 || kids[0].Name() != "proj" {
		t.Errorf("restored children = %d, want just proj", len(kids))
	}
}

func TestWorkspace_ResolvePath(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "proj"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "proj", "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := storage.NewLocalProvider(root)
	if err != nil {
		t.Fatal(err)
	}
	dir, ok := p.EntryAt("proj")
	if !ok {
		t.Fatal("EntryAt(proj) not found")
	}

	ws := NewWorkspace(p)
	defer ws.Close()

	if _, err := ws.Link(context.Background(), dir); err != nil {
		t.Fatalf("Link error: %v", err)
	}

	filePath, _ := p.EntryAt("proj/main.go")
	want := filePath.(storage.Pather).Path()

	r, found := ws.ResolvePath(want)
	if !found {
		t.Fatal("ResolvePath should find linked file")
	}
	if r.Name() != "main.go" {
		t.Errorf("resolved %q", r.Name())
	}

	sub := ws.Subscribe()
	defer ws.Unsubscribe(sub)
	ws.MarkChanged(r)
	events := drain(sub)
	if len(events) != 1 || events[0].Type != Changed || events[0].Resource != r {
		t.Errorf("MarkChanged events = %v", events)
	}
}
