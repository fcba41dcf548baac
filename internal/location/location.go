// Package location resolves, persists and disambiguates the default
// directory under which new projects are created.
//
// The manager survives restarts by retaining the chosen directory as an
// opaque provider token in the preference store. Stale tokens and
// externally deleted locations are recovered locally; the caller only ever
// sees a fresh prompt, never an error, for those cases.
package location

import (
	"context"

	"github.com/sparklabs/sparkfs/internal/storage"
)

// Location is a resolved filesystem location for project creation.
type Location struct {
	// Parent is the containing directory handle. A location chosen
	// directly by the user is its own parent.
	Parent storage.Entry

	// Entry is the location's directory handle.
	Entry storage.Entry

	// Sync marks locations on a sync-backed provider, which are assumed
	// to always exist.
	Sync bool

	provider storage.Provider
}

// NewLocation builds a location over the given provider, deriving the Sync
// flag from the provider.
func NewLocation(p storage.Provider, parent, entry storage.Entry) *Location {
	return &Location{
		Parent:   parent,
		Entry:    entry,
		Sync:     p.SyncBacked(),
		provider: p,
	}
}

// Name returns the location's directory name.
func (l *Location) Name() string {
	return l.Entry.Name()
}

// Exists reports whether the location still exists. Sync-backed locations
// always report true without a storage round-trip; for others any metadata
// failure reads as non-existence.
func (l *Location) Exists(ctx context.Context) bool {
	if l.Sync {
		return true
	}
	_, err := l.provider.Stat(ctx, l.Entry)
	return err == nil
}

// DisplayPath returns a human-readable path for UI display.
func (l *Location) DisplayPath(ctx context.Context) (string, error) {
	return l.provider.DisplayPath(ctx, l.Entry)
}
