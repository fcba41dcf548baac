package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalProvider is a storage provider rooted at an OS directory. Entries
// outside the root are never handed out; retained tokens are root-relative
// paths, so they survive moving the root as a whole.
type LocalProvider struct {
	root string
}

type localEntry struct {
	owner *LocalProvider
	path  string // absolute
	dir   bool
}

func (e *localEntry) Name() string { return filepath.Base(e.path) }
func (e *localEntry) IsDir() bool  { return e.dir }
func (e *localEntry) IsFile() bool { return !e.dir }

// Path returns the absolute filesystem path of the entry.
func (e *localEntry) Path() string { return e.path }

// NewLocalProvider creates a provider rooted at the given directory.
func NewLocalProvider(root string) (*LocalProvider, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "open", Path: abs, Err: ErrNotDirectory}
	}
	return &LocalProvider{root: abs}, nil
}

// Ensure LocalProvider implements Provider and its entries expose paths.
var (
	_ Provider = (*LocalProvider)(nil)
	_ Pather   = (*localEntry)(nil)
)

// Root returns the root directory entry.
func (l *LocalProvider) Root() Entry {
	return &localEntry{owner: l, path: l.root, dir: true}
}

// EntryAt returns the entry at an absolute or root-relative path, if it
// exists under the root.
func (l *LocalProvider) EntryAt(p string) (Entry, bool) {
	abs := p
	if !filepath.IsAbs(p) {
		abs = filepath.Join(l.root, p)
	}
	if !l.inRoot(abs) {
		return nil, false
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, false
	}
	return &localEntry{owner: l, path: abs, dir: info.IsDir()}, true
}

// List returns the immediate children of a directory in directory order.
func (l *LocalProvider) List(ctx context.Context, dir Entry) ([]Entry, error) {
	e, err := l.own(dir)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !e.dir {
		return nil, &fs.PathError{Op: "list", Path: e.path, Err: ErrNotDirectory}
	}

	entries, err := os.ReadDir(e.path)
	if err != nil {
		return nil, err
	}

	result := make([]Entry, 0, len(entries))
	for _, de := range entries {
		// Symlinks and specials are skipped rather than followed.
		if !de.IsDir() && !de.Type().IsRegular() {
			continue
		}
		result = append(result, &localEntry{
			owner: l,
			path:  filepath.Join(e.path, de.Name()),
			dir:   de.IsDir(),
		})
	}
	return result, nil
}

// ReadText reads the full content of a file entry.
func (l *LocalProvider) ReadText(ctx context.Context, file Entry) (string, error) {
	e, err := l.own(file)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if e.dir {
		return "", &fs.PathError{Op: "read", Path: e.path, Err: ErrNotFile}
	}
	data, err := os.ReadFile(e.path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteText replaces the content of a file entry.
func (l *LocalProvider) WriteText(ctx context.Context, file Entry, text string) error {
	e, err := l.own(file)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.dir {
		return &fs.PathError{Op: "write", Path: e.path, Err: ErrNotFile}
	}
	return os.WriteFile(e.path, []byte(text), 0644)
}

// CreateDirectory creates a directory named name under parent.
func (l *LocalProvider) CreateDirectory(ctx context.Context, parent Entry, name string, exclusive bool) (Entry, error) {
	e, err := l.own(parent)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !e.dir {
		return nil, &fs.PathError{Op: "mkdir", Path: e.path, Err: ErrNotDirectory}
	}

	target := filepath.Join(e.path, name)
	if err := os.Mkdir(target, 0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			if exclusive {
				return nil, &fs.PathError{Op: "mkdir", Path: target, Err: ErrExists}
			}
			info, statErr := os.Stat(target)
			if statErr != nil {
				return nil, statErr
			}
			if !info.IsDir() {
				return nil, &fs.PathError{Op: "mkdir", Path: target, Err: ErrNotDirectory}
			}
			return &localEntry{owner: l, path: target, dir: true}, nil
		}
		return nil, err
	}
	return &localEntry{owner: l, path: target, dir: true}, nil
}

// Stat returns metadata for an entry.
func (l *LocalProvider) Stat(ctx context.Context, entry Entry) (Metadata, error) {
	e, err := l.own(entry)
	if err != nil {
		return Metadata{}, err
	}
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}
	info, err := os.Stat(e.path)
	if err != nil {
		return Metadata{}, err
	}
	if info.IsDir() != e.dir {
		return Metadata{}, &fs.PathError{Op: "stat", Path: e.path, Err: ErrNotFound}
	}
	return Metadata{Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Retain returns the root-relative path of an entry as its token.
func (l *LocalProvider) Retain(ctx context.Context, entry Entry) (string, error) {
	e, err := l.own(entry)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel, err := filepath.Rel(l.root, e.path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// Restore resolves a root-relative token back to a live entry.
func (l *LocalProvider) Restore(ctx context.Context, token string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel := filepath.FromSlash(token)
	if rel == "" || filepath.IsAbs(rel) ||
		rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, ErrInvalidToken
	}
	abs := filepath.Join(l.root, rel)
	if !l.inRoot(abs) {
		return nil, ErrInvalidToken
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return &localEntry{owner: l, path: abs, dir: info.IsDir()}, nil
}

// DisplayPath returns the absolute filesystem path.
func (l *LocalProvider) DisplayPath(ctx context.Context, entry Entry) (string, error) {
	e, err := l.own(entry)
	if err != nil {
		return "", err
	}
	return e.path, nil
}

// SyncBacked reports false; wrap with Synced for sync semantics.
func (l *LocalProvider) SyncBacked() bool { return false }

func (l *LocalProvider) own(entry Entry) (*localEntry, error) {
	e, ok := entry.(*localEntry)
	if !ok || e.owner != l {
		return nil, ErrForeignEntry
	}
	return e, nil
}

func (l *LocalProvider) inRoot(abs string) bool {
	if abs == l.root {
		return true
	}
	return strings.HasPrefix(abs, l.root+string(filepath.Separator))
}
