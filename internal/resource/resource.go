// Package resource implements the workspace resource tree: an in-memory,
// observable hierarchy of files, folders and projects layered over a
// storage provider.
//
// The tree is populated asynchronously from storage entries via
// Workspace.Link and mutated through Workspace methods only; every
// mutation is announced on the workspace change bus.
package resource

import (
	"github.com/sparklabs/sparkfs/internal/storage"
)

// Kind identifies a resource variant.
type Kind int

const (
	// KindFile is a leaf file resource.
	KindFile Kind = iota
	// KindFolder is a directory-backed container.
	KindFolder
	// KindProject is a folder designated as a project root.
	KindProject
	// KindWorkspace is the session root container.
	KindWorkspace
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	case KindProject:
		return "project"
	case KindWorkspace:
		return "workspace"
	default:
		return "unknown"
	}
}

// Resource is a node in the workspace tree.
type Resource interface {
	// Name returns the display name derived from the backing entry.
	// The workspace itself has no name.
	Name() string

	// Kind returns the resource variant.
	Kind() Kind

	// Entry returns the backing storage entry. The workspace has none.
	Entry() storage.Entry

	// Parent returns the owning container, or nil for the workspace.
	Parent() Container

	// Project returns the nearest ancestor project, the project itself
	// for a project, or nil for unattached resources.
	Project() *Project
}

// Container is a resource capable of holding ordered children.
type Container interface {
	Resource

	// Children returns the direct children in discovery order. It does
	// not recurse.
	Children() []Resource
}

// node carries the state shared by all tree members.
type node struct {
	entry  storage.Entry
	parent Container
	ws     *Workspace
}

func (n *node) Name() string {
	if n.entry == nil {
		return ""
	}
	return n.entry.Name()
}

func (n *node) Entry() storage.Entry { return n.entry }
func (n *node) Parent() Container    { return n.parent }

func (n *node) Project() *Project {
	for c := n.parent; c != nil; c = c.Parent() {
		if p, ok := c.(*Project); ok {
			return p
		}
	}
	return nil
}

func (n *node) base() *node { return n }

// treeNode is implemented by every concrete resource in this package.
type treeNode interface {
	base() *node
}

// File is a leaf resource backed by a file entry.
type File struct {
	node
}

// Kind returns KindFile.
func (f *File) Kind() Kind { return KindFile }

// Folder is a directory-backed container.
type Folder struct {
	node
	children []Resource
}

// Kind returns KindFolder.
func (f *Folder) Kind() Kind { return KindFolder }

// Children returns the folder's direct children in discovery order.
func (f *Folder) Children() []Resource {
	f.ws.mu.RLock()
	defer f.ws.mu.RUnlock()

	out := make([]Resource, len(f.children))
	copy(out, f.children)
	return out
}

// Project is a folder designated as a project root. Project resolution for
// it and all its descendants stops here.
type Project struct {
	Folder
}

// Kind returns KindProject.
func (p *Project) Kind() Kind { return KindProject }

// Project returns the project itself, shadowing ancestor resolution.
func (p *Project) Project() *Project { return p }

// Compile-time interface checks.
var (
	_ Resource  = (*File)(nil)
	_ Container = (*Folder)(nil)
	_ Container = (*Project)(nil)
	_ Container = (*Workspace)(nil)

	_ treeNode = (*File)(nil)
	_ treeNode = (*Folder)(nil)
	_ treeNode = (*Project)(nil)
)

func newFile(ws *Workspace, parent Container, entry storage.Entry) *File {
	return &File{node: node{entry: entry, parent: parent, ws: ws}}
}

func newFolder(ws *Workspace, parent Container, entry storage.Entry) *Folder {
	return &Folder{node: node{entry: entry, parent: parent, ws: ws}}
}

func newProject(ws *Workspace, parent Container, entry storage.Entry) *Project {
	return &Project{Folder: Folder{node: node{entry: entry, parent: parent, ws: ws}}}
}
