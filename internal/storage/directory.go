package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideDirectory is returned when a name would resolve outside of its directory
var ErrOutsideDirectory = errors.New("path escapes storage directory")

// Directory is a flat file directory. Names handed to it are single path elements,
// every resolved path is confined to the root.
type Directory struct {
	root string
}

// NewDirectory creates root (and parents) when missing and returns a Directory for it
func NewDirectory(root string) (*Directory, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", abs, err)
	}
	return &Directory{root: abs}, nil
}

// Root returns the absolute directory path
func (d *Directory) Root() string {
	return d.root
}

// Path resolves name inside the directory. Names containing separators or resolving
// to the directory itself or above it are rejected.
func (d *Directory) Path(name string) (string, error) {
	if name == "" || name == "." || name == ".." {
		return "", ErrOutsideDirectory
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", ErrOutsideDirectory
	}
	path := filepath.Join(d.root, name)
	rel, err := filepath.Rel(d.root, path)
	if err != nil || rel != name {
		return "", ErrOutsideDirectory
	}
	return path, nil
}

// Write streams r into name via a temp file and rename, so readers never see partial files.
// It returns the written path and size.
func (d *Directory) Write(name string, r io.Reader) (string, int64, error) {
	path, err := d.Path(name)
	if err != nil {
		return "", 0, err
	}

	tmp, err := os.CreateTemp(d.root, ".write-*")
	if err != nil {
		return "", 0, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	n, err := io.Copy(tmp, r)
	if err != nil {
		cleanup()
		return "", 0, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", 0, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return "", 0, err
	}
	return path, n, nil
}

// Read returns the full content of name
func (d *Directory) Read(name string) ([]byte, error) {
	path, err := d.Path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Stat returns file info for name. Directories are reported as os.ErrNotExist.
func (d *Directory) Stat(name string) (os.FileInfo, error) {
	path, err := d.Path(name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file: %w", name, os.ErrNotExist)
	}
	return info, nil
}

// Remove deletes name. Missing files are ignored.
func (d *Directory) Remove(name string) error {
	path, err := d.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// List returns the names of the regular files in the directory, skipping in-flight writes
func (d *Directory) List() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".write-") {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}
