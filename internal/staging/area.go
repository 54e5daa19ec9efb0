// Package staging materialises uploaded bytes on local scratch storage so the
// document store can import them from a file path.
package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Area is a scratch directory holding staged import files.
type Area struct {
	root string // absolute path to the staging directory
}

// NewArea creates an Area rooted at dir, creating the directory if needed.
func NewArea(dir string) (*Area, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("staging: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("staging: mkdir root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("staging: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("staging: root is not a directory: %s", abs)
	}
	return &Area{root: abs}, nil
}

// Root returns the absolute staging directory.
func (a *Area) Root() string {
	return a.root
}

// File is one staged upload. It is owned by a single import call and must be
// released on every exit path.
type File struct {
	dir  string
	path string
	once sync.Once
	err  error
}

// Path returns the absolute path of the staged content.
func (f *File) Path() string {
	return f.path
}

// Release removes the staged file and its private directory. It is safe to
// call more than once; later calls return the first result.
func (f *File) Release() error {
	f.once.Do(func() {
		if err := os.RemoveAll(f.dir); err != nil {
			f.err = fmt.Errorf("staging: release %s: %w", f.path, err)
		}
	})
	return f.err
}

// Stage writes content under name inside a fresh private directory so that
// concurrent imports of the same file name never collide.
// The write is atomic: tmp file → fsync → rename.
func (a *Area) Stage(name string, content []byte) (*File, error) {
	base, err := safeName(name)
	if err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(a.root, "import-*")
	if err != nil {
		return nil, fmt.Errorf("staging: create dir: %w", err)
	}
	f := &File{dir: dir, path: filepath.Join(dir, base)}

	tmp, err := os.CreateTemp(dir, ".rstweb-tmp-*")
	if err != nil {
		_ = f.Release()
		return nil, fmt.Errorf("staging: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = f.Release()
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return nil, fmt.Errorf("staging: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return nil, fmt.Errorf("staging: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("staging: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return nil, fmt.Errorf("staging: rename: %w", err)
	}
	success = true
	return f, nil
}

// Close removes the whole staging directory.
func (a *Area) Close() error {
	return os.RemoveAll(a.root)
}

// safeName rejects anything that is not a plain file name.
func safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("staging: file name is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || cleaned == "." || cleaned == ".." || strings.ContainsAny(cleaned, `/\`) {
		return "", fmt.Errorf("staging: invalid file name: %s", name)
	}
	return cleaned, nil
}
