package media

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return fs
}

func TestFileStoreWriteAndPath(t *testing.T) {
	fs := newTestStore(t)

	if err := fs.Write("a1b2.txt", []byte("stored payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	path, err := fs.Path("a1b2.txt")
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	if string(got) != "stored payload" {
		t.Errorf("stored content = %q, want %q", got, "stored payload")
	}
}

func TestFileStoreWriteRefusesCollision(t *testing.T) {
	fs := newTestStore(t)

	if err := fs.Write("dup.txt", []byte("first")); err != nil {
		t.Fatalf("first Write: %v", err)
	}

	err := fs.Write("dup.txt", []byte("second"))
	if !errors.Is(err, ErrExists) {
		t.Fatalf("second Write error = %v, want ErrExists", err)
	}

	path, _ := fs.Path("dup.txt")
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if string(got) != "first" {
		t.Errorf("collision overwrote content: got %q", got)
	}
}

func TestFileStoreRemoveIsIdempotent(t *testing.T) {
	fs := newTestStore(t)

	if err := fs.Write("gone.txt", []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := fs.Remove("gone.txt"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	path, _ := fs.Path("gone.txt")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file still present after Remove: %v", err)
	}

	if err := fs.Remove("gone.txt"); err != nil {
		t.Errorf("second Remove should be a no-op, got %v", err)
	}
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"generated name", "3f8a91bc20d34e55a6b7c8d9e0f11223.png", true},
		{"plain name", "report.pdf", true},
		{"dashes and underscores", "my-file_v2.txt", true},
		{"empty", "", false},
		{"hidden", ".htaccess", false},
		{"parent traversal", "../secrets.yaml", false},
		{"embedded dots", "a..b", false},
		{"subpath", "nested/file.jpg", false},
		{"windows subpath", `nested\file.jpg`, false},
		{"absolute", "/etc/passwd", false},
		{"relative current", "./file.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := safeName(tt.in); got != tt.want {
				t.Errorf("safeName(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFileStoreRejectsUnsafeNames(t *testing.T) {
	fs := newTestStore(t)

	for _, name := range []string{"../../etc/passwd", ".hidden", "a/b.txt", ""} {
		if err := fs.Write(name, []byte("x")); !errors.Is(err, ErrUnsafeName) {
			t.Errorf("Write(%q) error = %v, want ErrUnsafeName", name, err)
		}
		if err := fs.Remove(name); !errors.Is(err, ErrUnsafeName) {
			t.Errorf("Remove(%q) error = %v, want ErrUnsafeName", name, err)
		}
		if _, err := fs.Path(name); !errors.Is(err, ErrUnsafeName) {
			t.Errorf("Path(%q) error = %v, want ErrUnsafeName", name, err)
		}
	}
}
