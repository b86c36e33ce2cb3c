// Package storage keeps uploaded attachment payloads on the local filesystem.
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Hamxay/-WhatsApp-API-server/internal/observability"
)

var (
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrInvalidFilename    = errors.New("invalid attachment filename")
)

// AttachmentStore stores blobs under a single directory, addressed by filename.
// A later Put with the same name replaces the earlier payload.
type AttachmentStore struct {
	dir string
}

// NewAttachmentStore creates a store rooted at dir. The directory is created on the
// first write, not here.
func NewAttachmentStore(dir string) *AttachmentStore {
	return &AttachmentStore{dir: dir}
}

// Dir returns the directory backing the store
func (s *AttachmentStore) Dir() string {
	return s.dir
}

// ValidateFilename rejects names that are empty or could resolve outside the store
func ValidateFilename(filename string) error {
	switch {
	case filename == "", filename == ".", filename == "..":
		return ErrInvalidFilename
	case strings.ContainsAny(filename, `/\`), strings.ContainsRune(filename, 0):
		return ErrInvalidFilename
	}
	return nil
}

// Put writes data under filename, overwriting any existing payload. The bytes land in
// a temp file first and are renamed into place, so readers never see a partial file.
func (s *AttachmentStore) Put(filename string, data []byte) error {
	if err := ValidateFilename(filename); err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create attachment directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write attachment: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close attachment: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, filename)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to store attachment: %w", err)
	}

	observability.AttachmentBytesStored.Add(float64(len(data)))
	return nil
}

// PutReader streams r into the store under filename
func (s *AttachmentStore) PutReader(filename string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read attachment: %w", err)
	}
	return s.Put(filename, data)
}

// Get returns the stored payload for filename
func (s *AttachmentStore) Get(filename string) ([]byte, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, filename))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrAttachmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	return data, nil
}

// Open returns a handle for streaming the payload of filename. The caller closes it.
func (s *AttachmentStore) Open(filename string) (*os.File, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.dir, filename))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrAttachmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open attachment: %w", err)
	}
	return f, nil
}
