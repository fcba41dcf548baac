package prefs

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// FileStore is a Store persisted as a TOML file. A missing file reads as an
// empty store; the file is created on first Set.
//
// FileStore is safe for concurrent use within one process. It does not
// coordinate with other processes writing the same file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by the TOML file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)

// Get returns the value for key.
func (f *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Set stores a value for key and rewrites the file.
func (f *FileStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}
	values[key] = value

	data, err := toml.Marshal(values)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0644); err != nil {
		return fmt.Errorf("writing preferences %s: %w", f.path, err)
	}
	return nil
}

func (f *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("reading preferences %s: %w", f.path, err)
	}

	values := make(map[string]string)
	if err := toml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parsing preferences %s: %w", f.path, err)
	}
	return values, nil
}
