// Package storage provides the storage provider abstraction backing the
// workspace model.
//
// A Provider hands out opaque Entry handles for files and directories and
// performs all I/O against them. Entries can be retained as persistable
// string tokens and restored in a later session, which is how the location
// manager survives restarts. Implementations exist for an in-memory tree
// (testing, staging) and an OS directory; Synced wraps any provider whose
// contents are assumed always present.
package storage

import (
	"context"
	"errors"
	"time"
)

// Common errors returned by providers.
var (
	// ErrExists is returned by exclusive directory creation when the name
	// is already taken.
	ErrExists = errors.New("entry already exists")

	// ErrNotFound is returned when an entry no longer exists.
	ErrNotFound = errors.New("entry not found")

	// ErrInvalidToken is returned by Restore for tokens that cannot be
	// resolved to a live entry.
	ErrInvalidToken = errors.New("invalid entry token")

	// ErrNotDirectory is returned when a directory operation is applied
	// to a file entry.
	ErrNotDirectory = errors.New("entry is not a directory")

	// ErrNotFile is returned when a file operation is applied to a
	// directory entry.
	ErrNotFile = errors.New("entry is not a file")

	// ErrForeignEntry is returned when an entry from a different provider
	// is passed in.
	ErrForeignEntry = errors.New("entry belongs to a different provider")
)

// Entry is an opaque handle to a file or directory owned by a Provider.
// Entries are only meaningful to the provider that created them.
type Entry interface {
	// Name returns the base name of the entry.
	Name() string

	// IsDir reports whether the entry is a directory.
	IsDir() bool

	// IsFile reports whether the entry is a regular file.
	IsFile() bool
}

// Pather is implemented by entries that expose a real filesystem path.
// The watcher uses it to map filesystem notifications back to entries.
type Pather interface {
	Path() string
}

// Metadata describes an entry at a point in time.
type Metadata struct {
	Size    int64
	ModTime time.Time
}

// Provider is the storage backend contract consumed by the workspace model
// and the location manager. All I/O methods honor context cancellation.
type Provider interface {
	// Root returns the provider's root directory entry.
	Root() Entry

	// List returns the immediate children of a directory entry.
	// Order is deterministic for a given provider but not specified.
	List(ctx context.Context, dir Entry) ([]Entry, error)

	// ReadText reads the full content of a file entry.
	ReadText(ctx context.Context, file Entry) (string, error)

	// WriteText replaces the content of a file entry.
	WriteText(ctx context.Context, file Entry, text string) error

	// CreateDirectory creates a directory named name under parent.
	// With exclusive set it fails with ErrExists when the name is taken;
	// otherwise an existing directory is returned as-is.
	CreateDirectory(ctx context.Context, parent Entry, name string, exclusive bool) (Entry, error)

	// Stat returns metadata for an entry. Callers treat any failure as
	// non-existence.
	Stat(ctx context.Context, e Entry) (Metadata, error)

	// Retain returns an opaque persistable token for an entry.
	Retain(ctx context.Context, e Entry) (string, error)

	// Restore exchanges a previously retained token for a live entry.
	// It fails with ErrInvalidToken when the token is unknown or the
	// entry no longer exists.
	Restore(ctx context.Context, token string) (Entry, error)

	// DisplayPath returns a human-readable path for UI display.
	DisplayPath(ctx context.Context, e Entry) (string, error)

	// SyncBacked reports whether the provider is a host-sync filesystem
	// whose contents are assumed always present.
	SyncBacked() bool
}

// Child returns the immediate child of dir with the given name, using only
// the List contract. The boolean reports whether it was found.
func Child(ctx context.Context, p Provider, dir Entry, name string) (Entry, bool, error) {
	entries, err := p.List(ctx, dir)
	if err != nil {
		return nil, false, err
	}
	for _, e := range entries {
		if e.Name() == name {
			return e, true, nil
		}
	}
	return nil, false, nil
}
