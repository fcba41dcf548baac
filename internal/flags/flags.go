// Package flags manages the optional ".spark.json" sidecar document that
// seeds process-wide flag overrides from the project location directory.
//
// The sidecar is owned by whoever administers the project folder; on the
// consuming side a missing or unreadable sidecar simply yields an empty
// document, never an error.
package flags

import (
	"context"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/sparklabs/sparkfs/internal/storage"
)

// Sidecar is the name of the flag file looked up in the project location.
const Sidecar = ".spark.json"

// Flags is a mutable JSON flag document.
//
// Flags is safe for concurrent use.
type Flags struct {
	mu  sync.RWMutex
	doc string
}

// New returns an empty flag document.
func New() *Flags {
	return &Flags{doc: "{}"}
}

// Load reads the sidecar file from a directory entry into a new document.
// A missing sidecar yields an empty document and no error; read failures
// and invalid JSON are reported but callers typically ignore them.
func Load(ctx context.Context, p storage.Provider, dir storage.Entry) (*Flags, error) {
	f := New()

	entry, ok, err := storage.Child(ctx, p, dir, Sidecar)
	if err != nil {
		return f, err
	}
	if !ok || !entry.IsFile() {
		return f, nil
	}

	text, err := p.ReadText(ctx, entry)
	if err != nil {
		return f, err
	}
	if !gjson.Valid(text) {
		return f, &ParseError{Name: Sidecar}
	}
	f.doc = text
	return f, nil
}

// Bool returns the named flag as a boolean.
func (f *Flags) Bool(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return gjson.Get(f.doc, name).Bool()
}

// String returns the named flag as a string.
func (f *Flags) String(name string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return gjson.Get(f.doc, name).String()
}

// Int returns the named flag as an integer.
func (f *Flags) Int(name string) int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return gjson.Get(f.doc, name).Int()
}

// Has reports whether the named flag is present.
func (f *Flags) Has(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return gjson.Get(f.doc, name).Exists()
}

// Set stores an override in the document.
func (f *Flags) Set(name string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := sjson.Set(f.doc, name, value)
	if err != nil {
		return err
	}
	f.doc = doc
	return nil
}

// JSON returns the current document text.
func (f *Flags) JSON() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.doc
}

// Merge copies all flags from other into f, seeding process defaults from a
// freshly loaded sidecar.
func (f *Flags) Merge(other *Flags) error {
	if other == nil {
		return nil
	}

	var firstErr error
	gjson.Parse(other.JSON()).ForEach(func(key, value gjson.Result) bool {
		if err := f.Set(key.String(), value.Value()); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// ParseError reports an unparseable flag document.
type ParseError struct {
	Name string
}

func (e *ParseError) Error() string {
	return "invalid flag document " + e.Name
}
