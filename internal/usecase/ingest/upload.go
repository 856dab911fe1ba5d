package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileUpload is an Upload backed by a file on local disk.
type FileUpload struct {
	path string
}

// NewFileUpload creates an upload for the file at path.
func NewFileUpload(path string) *FileUpload {
	return &FileUpload{path: path}
}

// Filename returns the base name of the file.
func (f *FileUpload) Filename() string { return filepath.Base(f.path) }

// Save copies the file to path.
func (f *FileUpload) Save(path string) error {
	src, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.path, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("copy %s: %w", f.path, err)
	}
	return dst.Close()
}
