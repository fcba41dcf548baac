package location

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sparklabs/sparkfs/internal/dialog"
	"github.com/sparklabs/sparkfs/internal/flags"
	"github.com/sparklabs/sparkfs/internal/prefs"
	"github.com/sparklabs/sparkfs/internal/storage"
)

// PrefProjectFolder is the preference key holding the retained token of
// the chosen project location.
const PrefProjectFolder = "projectFolder"

// DefaultFolderName is the name suggested when the user picks a new
// project location.
const DefaultFolderName = "projects"

// maxNameSuffix bounds the collision-suffix search in CreateFolder.
const maxNameSuffix = 50

const confirmMessage = "Choose a folder to store your projects in. " +
	"New projects will be created inside it."

// State describes the manager's resolution state.
type State int

const (
	// StateUninitialized means no location is cached.
	StateUninitialized State = iota
	// StateRestoring means a persisted token is being resolved.
	StateRestoring
	// StateResolved means a validated location is cached.
	StateResolved
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRestoring:
		return "restoring"
	case StateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Manager resolves and persists the default project-creation location.
type Manager struct {
	mu       sync.Mutex
	provider storage.Provider
	prefs    prefs.Store
	ui       dialog.Prompter
	flags    *flags.Flags

	state State
	loc   *Location
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithFlags sets the flag document seeded from the location's sidecar
// file on restore.
func WithFlags(f *flags.Flags) ManagerOption {
	return func(m *Manager) {
		m.flags = f
	}
}

// NewManager creates a location manager. It starts uninitialized; call
// Restore to resolve a previously persisted location.
func NewManager(provider storage.Provider, store prefs.Store, ui dialog.Prompter, opts ...ManagerOption) *Manager {
	m := &Manager{
		provider: provider,
		prefs:    store,
		ui:       ui,
		state:    StateUninitialized,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.flags == nil {
		m.flags = flags.New()
	}
	return m
}

// State returns the current resolution state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Flags returns the manager's flag document.
func (m *Manager) Flags() *flags.Flags {
	return m.flags
}

// Restore attempts to resolve the persisted location token. An absent or
// stale token leaves the manager uninitialized without error; only
// preference-store I/O failures are surfaced. On success the optional
// sidecar flag file in the location directory seeds the flag document;
// its absence is ignored.
func (m *Manager) Restore(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateRestoring

	token, ok, err := m.prefs.Get(ctx, PrefProjectFolder)
	if err != nil {
		m.state = StateUninitialized
		return fmt.Errorf("reading %s preference: %w", PrefProjectFolder, err)
	}
	if !ok {
		m.state = StateUninitialized
		return nil
	}

	entry, err := m.provider.Restore(ctx, token)
	if err != nil {
		// Token revoked or target gone; start over.
		m.state = StateUninitialized
		return nil
	}

	if loaded, err := flags.Load(ctx, m.provider, entry); err == nil {
		_ = m.flags.Merge(loaded)
	}

	m.loc = NewLocation(m.provider, entry, entry)
	m.state = StateResolved
	return nil
}

// ProjectLocation returns the directory new projects are created under.
// A cached location is re-validated on every call; one that vanished
// externally is discarded and the user is prompted again. A nil location
// with nil error means the user cancelled.
func (m *Manager) ProjectLocation(ctx context.Context) (*Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.projectLocationLocked(ctx)
}

func (m *Manager) projectLocationLocked(ctx context.Context) (*Location, error) {
	for {
		if m.state != StateResolved {
			return m.chooseLocked(ctx)
		}
		if m.loc.Exists(ctx) {
			return m.loc, nil
		}
		// Deleted out from under us; forget it and re-resolve.
		m.loc = nil
		m.state = StateUninitialized
	}
}

// ChooseNewLocation prompts the user for a new project location and
// persists it. Cancellation at either step yields (nil, nil) and persists
// nothing.
func (m *Manager) ChooseNewLocation(ctx context.Context) (*Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chooseLocked(ctx)
}

func (m *Manager) chooseLocked(ctx context.Context) (*Location, error) {
	ok, err := m.ui.Confirm(ctx, confirmMessage, "Choose folder", "Project location")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	entry, err := m.ui.PickDirectory(ctx, DefaultFolderName)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	token, err := m.provider.Retain(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("retaining project location: %w", err)
	}
	if err := m.prefs.Set(ctx, PrefProjectFolder, token); err != nil {
		return nil, fmt.Errorf("persisting project location: %w", err)
	}

	m.loc = NewLocation(m.provider, entry, entry)
	m.state = StateResolved
	return m.loc, nil
}

// CreateFolder creates a directory for a new project under the resolved
// location. On a name collision it retries sequentially with suffixes
// ("demo", "demo-1", "demo-2", ...) up to a bound; exhausting the bound is
// a fatal error naming the base. A nil location with nil error means the
// user declined to choose a location.
func (m *Manager) CreateFolder(ctx context.Context, baseName string) (*Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	loc, err := m.projectLocationLocked(ctx)
	if err != nil || loc == nil {
		return nil, err
	}

	for i := 0; ; i++ {
		if i > maxNameSuffix {
			return nil, &NameExhaustedError{Base: baseName, Attempts: i}
		}
		name := baseName
		if i > 0 {
			name = fmt.Sprintf("%s-%d", baseName, i)
		}

		entry, err := m.provider.CreateDirectory(ctx, loc.Entry, name, true)
		if errors.Is(err, storage.ErrExists) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("creating folder %q: %w", name, err)
		}
		return &Location{
			Parent:   loc.Entry,
			Entry:    entry,
			Sync:     loc.Sync,
			provider: m.provider,
		}, nil
	}
}
