package prefs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMemStore(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if ok {
		t.Error("missing key should report ok=false")
	}

	if err := s.Set(ctx, "theme", "dark"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	v, ok, err := s.Get(ctx, "theme")
	if err != nil || !ok {
		t.Fatalf("Get = %v, ok=%v", err, ok)
	}
	if v != "dark" {
		t.Errorf("Get = %q, want %q", v, "dark")
	}

	if err := s.Set(ctx, "theme", "light"); err != nil {
		t.Fatal(err)
	}
	v, _, _ = s.Get(ctx, "theme")
	if v != "light" {
		t.Errorf("overwrite = %q, want %q", v, "light")
	}
}

func TestFileStore_MissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "prefs.toml"))

	_, ok, err := s.Get(context.Background(), "anything")
	if err != nil {
		t.Fatalf("missing file should not be an error, got %v", err)
	}
	if ok {
		t.Error("missing file should report ok=false")
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	s := NewFileStore(path)
	ctx := context.Background()

	if err := s.Set(ctx, "projectFolder", "tok-123"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := s.Set(ctx, "theme", "dark"); err != nil {
		t.Fatal(err)
	}

	// A fresh store over the same file sees both values.
	reopened := NewFileStore(path)
	v, ok, err := reopened.Get(ctx, "projectFolder")
	if err != nil || !ok || v != "tok-123" {
		t.Errorf("Get(projectFolder) = %q, %v, %v", v, ok, err)
	}
	v, ok, _ = reopened.Get(ctx, "theme")
	if !ok || v != "dark" {
		t.Errorf("Get(theme) = %q, %v", v, ok)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "projectFolder") {
		t.Errorf("file should contain the key, got:\n%s", data)
	}
}

func TestFileStore_ParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	if err := os.WriteFile(path, []byte("not = [valid toml"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewFileStore(path)
	if _, _, err := s.Get(context.Background(), "k"); err == nil {
		t.Error("corrupt file should surface a parse error")
	}
}

func TestStore_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewFileStore(filepath.Join(t.TempDir(), "prefs.toml"))
	if _, _, err := s.Get(ctx, "k"); err == nil {
		t.Error("cancelled context should be an error")
	}
	if err := s.Set(ctx, "k", "v"); err == nil {
		t.Error("cancelled context should be an error")
	}
}
