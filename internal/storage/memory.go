package storage

import (
	"context"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemProvider is an in-memory storage provider. It is primarily used for
// testing but can also serve as a staging area.
//
// MemProvider is safe for concurrent use.
type MemProvider struct {
	mu       sync.RWMutex
	files    map[string]*memFile
	dirs     map[string]bool
	retained map[string]memRef
}

type memFile struct {
	content string
	modTime time.Time
}

type memRef struct {
	path string
	dir  bool
}

type memEntry struct {
	owner *MemProvider
	path  string
	dir   bool
}

func (e *memEntry) Name() string { return path.Base(e.path) }
func (e *memEntry) IsDir() bool  { return e.dir }
func (e *memEntry) IsFile() bool { return !e.dir }

// NewMemProvider creates an empty in-memory provider with a root directory.
func NewMemProvider() *MemProvider {
	return &MemProvider{
		files:    make(map[string]*memFile),
		dirs:     map[string]bool{"/": true},
		retained: make(map[string]memRef),
	}
}

// Ensure MemProvider implements Provider.
var _ Provider = (*MemProvider)(nil)

// AddFile creates a file (and any missing parent directories) and returns
// its entry. Intended for test and staging setup.
func (m *MemProvider) AddFile(filePath, content string) Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	filePath = cleanMemPath(filePath)
	m.mkdirAllLocked(path.Dir(filePath))
	m.files[filePath] = &memFile{content: content, modTime: time.Now()}
	return &memEntry{owner: m, path: filePath}
}

// AddDir creates a directory (and any missing parents) and returns its entry.
func (m *MemProvider) AddDir(dirPath string) Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	dirPath = cleanMemPath(dirPath)
	m.mkdirAllLocked(dirPath)
	return &memEntry{owner: m, path: dirPath, dir: true}
}

// Remove deletes a file or a directory subtree, simulating an external
// deletion. Retained tokens pointing into the subtree become stale.
func (m *MemProvider) Remove(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = cleanMemPath(p)
	delete(m.files, p)
	delete(m.dirs, p)
	prefix := p + "/"
	for f := range m.files {
		if strings.HasPrefix(f, prefix) {
			delete(m.files, f)
		}
	}
	for d := range m.dirs {
		if strings.HasPrefix(d, prefix) {
			delete(m.dirs, d)
		}
	}
}

// Lookup returns the entry at a path, if it exists.
func (m *MemProvider) Lookup(p string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p = cleanMemPath(p)
	if _, ok := m.files[p]; ok {
		return &memEntry{owner: m, path: p}, true
	}
	if m.dirs[p] {
		return &memEntry{owner: m, path: p, dir: true}, true
	}
	return nil, false
}

// Root returns the root directory entry.
func (m *MemProvider) Root() Entry {
	return &memEntry{owner: m, path: "/", dir: true}
}

// List returns the immediate children of a directory, sorted by name.
func (m *MemProvider) List(ctx context.Context, dir Entry) ([]Entry, error) {
	e, err := m.own(dir)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.dirs[e.path] {
		return nil, &fs.PathError{Op: "list", Path: e.path, Err: ErrNotFound}
	}
	if !e.dir {
		return nil, &fs.PathError{Op: "list", Path: e.path, Err: ErrNotDirectory}
	}

	var names []string
	kinds := make(map[string]bool)
	for f := range m.files {
		if parentOf(f) == e.path {
			names = append(names, f)
			kinds[f] = false
		}
	}
	for d := range m.dirs {
		if d != "/" && parentOf(d) == e.path {
			names = append(names, d)
			kinds[d] = true
		}
	}
	sort.Strings(names)

	entries := make([]Entry, len(names))
	for i, n := range names {
		entries[i] = &memEntry{owner: m, path: n, dir: kinds[n]}
	}
	return entries, nil
}

// ReadText reads the full content of a file entry.
func (m *MemProvider) ReadText(ctx context.Context, file Entry) (string, error) {
	e, err := m.own(file)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if e.dir {
		return "", &fs.PathError{Op: "read", Path: e.path, Err: ErrNotFile}
	}
	f, ok := m.files[e.path]
	if !ok {
		return "", &fs.PathError{Op: "read", Path: e.path, Err: ErrNotFound}
	}
	return f.content, nil
}

// WriteText replaces the content of a file entry.
func (m *MemProvider) WriteText(ctx context.Context, file Entry, text string) error {
	e, err := m.own(file)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e.dir {
		return &fs.PathError{Op: "write", Path: e.path, Err: ErrNotFile}
	}
	f, ok := m.files[e.path]
	if !ok {
		return &fs.PathError{Op: "write", Path: e.path, Err: ErrNotFound}
	}
	f.content = text
	f.modTime = time.Now()
	return nil
}

// CreateDirectory creates a directory named name under parent.
func (m *MemProvider) CreateDirectory(ctx context.Context, parent Entry, name string, exclusive bool) (Entry, error) {
	e, err := m.own(parent)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !e.dir {
		return nil, &fs.PathError{Op: "mkdir", Path: e.path, Err: ErrNotDirectory}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	target := path.Join(e.path, name)
	if m.dirs[target] || m.files[target] != nil {
		if exclusive {
			return nil, &fs.PathError{Op: "mkdir", Path: target, Err: ErrExists}
		}
		if m.files[target] != nil {
			return nil, &fs.PathError{Op: "mkdir", Path: target, Err: ErrNotDirectory}
		}
		return &memEntry{owner: m, path: target, dir: true}, nil
	}
	m.dirs[target] = true
	return &memEntry{owner: m, path: target, dir: true}, nil
}

// Stat returns metadata for an entry.
func (m *MemProvider) Stat(ctx context.Context, entry Entry) (Metadata, error) {
	e, err := m.own(entry)
	if err != nil {
		return Metadata{}, err
	}
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if f, ok := m.files[e.path]; ok && !e.dir {
		return Metadata{Size: int64(len(f.content)), ModTime: f.modTime}, nil
	}
	if e.dir && m.dirs[e.path] {
		return Metadata{}, nil
	}
	return Metadata{}, &fs.PathError{Op: "stat", Path: e.path, Err: ErrNotFound}
}

// Retain returns a persistable token for an entry.
func (m *MemProvider) Retain(ctx context.Context, entry Entry) (string, error) {
	e, err := m.own(entry)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	token := uuid.NewString()
	m.retained[token] = memRef{path: e.path, dir: e.dir}
	return token, nil
}

// Restore exchanges a retained token for a live entry. Unknown tokens and
// tokens whose target has been removed fail with ErrInvalidToken.
func (m *MemProvider) Restore(ctx context.Context, token string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ref, ok := m.retained[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	if ref.dir && !m.dirs[ref.path] {
		return nil, ErrInvalidToken
	}
	if !ref.dir && m.files[ref.path] == nil {
		return nil, ErrInvalidToken
	}
	return &memEntry{owner: m, path: ref.path, dir: ref.dir}, nil
}

// DisplayPath returns the in-memory path of an entry.
func (m *MemProvider) DisplayPath(ctx context.Context, entry Entry) (string, error) {
	e, err := m.own(entry)
	if err != nil {
		return "", err
	}
	return e.path, nil
}

// SyncBacked reports false; wrap with Synced for sync semantics.
func (m *MemProvider) SyncBacked() bool { return false }

func (m *MemProvider) own(entry Entry) (*memEntry, error) {
	e, ok := entry.(*memEntry)
	if !ok || e.owner != m {
		return nil, ErrForeignEntry
	}
	return e, nil
}

func (m *MemProvider) mkdirAllLocked(dirPath string) {
	for p := cleanMemPath(dirPath); !m.dirs[p]; p = parentOf(p) {
		m.dirs[p] = true
	}
}

func cleanMemPath(p string) string {
	p = path.Clean("/" + p)
	return p
}

func parentOf(p string) string {
	return path.Dir(p)
}
