package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsafeName is returned when a filename could escape the store root.
	ErrUnsafeName = errors.New("unsafe filename")

	// ErrExists is returned when writing a filename that is already stored.
	ErrExists = errors.New("file already stored")
)

// FileStore keeps uploaded files as a flat directory of generated names.
// Every operation validates the name before touching the filesystem, so a
// crafted filename can never reach outside the root.
type FileStore struct {
	root string
}

// NewFileStore ensures root exists and returns a store over it.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating media root %s: %w", root, err)
	}
	return &FileStore{root: root}, nil
}

// safeName reports whether name is a plain filename: non-empty, not
// dot-prefixed, and free of separators and traversal sequences.
func safeName(name string) bool {
	switch {
	case name == "", strings.HasPrefix(name, "."):
		return false
	case strings.Contains(name, ".."):
		return false
	case strings.ContainsAny(name, `/\`), filepath.IsAbs(name):
		return false
	}
	return true
}

// Write stores data under name. Names are generated server-side and never
// reused, so an existing file means a collision and the write is refused.
func (fs *FileStore) Write(name string, data []byte) error {
	path, err := fs.Path(name)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrExists, name)
		}
		return fmt.Errorf("creating %s: %w", path, err)
	}

	_, writeErr := f.Write(data)
	closeErr := f.Close()
	if writeErr != nil {
		_ = os.Remove(path)
		return fmt.Errorf("writing %s: %w", path, writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing %s: %w", path, closeErr)
	}
	return nil
}

// Remove deletes the named file. A missing file is not an error, so removal
// retries and cleanup paths stay idempotent.
func (fs *FileStore) Remove(name string) error {
	path, err := fs.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

// Path resolves name to its location under the store root.
func (fs *FileStore) Path(name string) (string, error) {
	if !safeName(name) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	return filepath.Join(fs.root, name), nil
}
