package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	dir, err := NewDirectory(filepath.Join(t.TempDir(), "nested", "results"))
	if err != nil {
		t.Fatalf("NewDirectory error: %v", err)
	}
	return dir
}

func TestNewDirectory_EmptyRoot(t *testing.T) {
	if _, err := NewDirectory("  "); err == nil {
		t.Fatal("expected error for empty root, got nil")
	}
}

func TestDirectory_WriteReadRemove(t *testing.T) {
	dir := newTestDirectory(t)
	content := []byte("payload")

	path, n, err := dir.Write("a_result.png", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if n != int64(len(content)) {
		t.Errorf("expected %d bytes written, got %d", len(content), n)
	}
	if filepath.Dir(path) != dir.Root() {
		t.Errorf("expected file inside %s, got %s", dir.Root(), path)
	}

	got, err := dir.Read("a_result.png")
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("Read returned %q, want %q", got, content)
	}

	if err := dir.Remove("a_result.png"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected file to be gone, stat error: %v", err)
	}

	// Removing twice is not an error
	if err := dir.Remove("a_result.png"); err != nil {
		t.Errorf("second Remove error: %v", err)
	}
}

func TestDirectory_PathRejectsEscapes(t *testing.T) {
	dir := newTestDirectory(t)
	for _, name := range []string{"", ".", "..", "../secret", "a/b", `a\b`, "/etc/passwd"} {
		if _, err := dir.Path(name); !errors.Is(err, ErrOutsideDirectory) {
			t.Errorf("Path(%q) error = %v, want ErrOutsideDirectory", name, err)
		}
	}
}

func TestDirectory_StatDirectoryIsNotFound(t *testing.T) {
	dir := newTestDirectory(t)
	if err := os.Mkdir(filepath.Join(dir.Root(), "sub"), 0o755); err != nil {
		t.Fatalf("Mkdir error: %v", err)
	}
	if _, err := dir.Stat("sub"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Stat(sub) error = %v, want os.ErrNotExist", err)
	}
	if _, err := dir.Stat("missing.png"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Stat(missing.png) error = %v, want os.ErrNotExist", err)
	}
}

func TestDirectory_List(t *testing.T) {
	dir := newTestDirectory(t)
	for _, name := range []string{"b.png", "a.png"} {
		if _, _, err := dir.Write(name, bytes.NewReader([]byte(name))); err != nil {
			t.Fatalf("Write(%s) error: %v", name, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir.Root(), ".write-123"), []byte("partial"), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	names, err := dir.List()
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "a.png" || names[1] != "b.png" {
		t.Errorf("List returned %v, want [a.png b.png]", names)
	}
}
