// Package blob stores raw uploaded file bytes on the local filesystem.
package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/interfaces"
)

// FileStore persists blobs under a root directory. Blob paths use forward
// slashes and are confined to the root.
type FileStore struct {
	root   string
	logger arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.BlobStorage = (*FileStore)(nil)

// NewFileStore creates a blob store rooted at dir
func NewFileStore(logger arbor.ILogger, dir string) (*FileStore, error) {
	if dir == "" {
		dir = "./data/blobs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve blob directory: %w", err)
	}

	logger.Debug().Str("dir", abs).Msg("Blob store initialized")

	return &FileStore{
		root:   abs,
		logger: logger,
	}, nil
}

// resolve maps a blob path to a filesystem path, rejecting escapes from
// the root
func (s *FileStore) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("blob path is required")
	}

	clean := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob path: %s", path)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *FileStore) Upload(path string, data []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create blob subdirectory: %w", err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}
	return nil
}

func (s *FileStore) Download(path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

func (s *FileStore) Remove(path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove blob: %w", err)
	}
	return nil
}
